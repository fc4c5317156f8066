package models

import (
	"log"

	"github.com/mmdatafocus/retail_backend/config"
)

// AllModels lists every table in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&Store{}, &ProductVariant{}, &StockLevel{},
		&SequenceCounter{},
		&Order{}, &OrderLine{},
		&Transfer{},
		&Purchase{}, &PurchaseItem{},
		&InventoryEvent{},
		&IdempotencyKey{},
	}
}

func MigrateTable() {
	db := config.GetDB()

	if err := db.AutoMigrate(AllModels()...); err != nil {
		log.Fatal(err)
	}
}
