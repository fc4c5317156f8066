package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
)

type Store struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Code      string    `gorm:"size:20;uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Address   string    `gorm:"type:text" json:"address"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStore struct {
	Code    string `json:"code" validate:"required,max=20"`
	Name    string `json:"name" validate:"required,max=100"`
	Address string `json:"address"`
}

func validateInput(input any) error {
	fields, err := utils.ValidateStruct(input)
	if err != nil {
		return err
	}
	if len(fields) > 0 {
		return &InvariantError{Message: "invalid input", Fields: fields}
	}
	return nil
}

// CreateStore creates a store and a zero stock row for every active variant.
func CreateStore(ctx context.Context, input *NewStore) (*Store, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	store := Store{
		Code:     input.Code,
		Name:     input.Name,
		Address:  input.Address,
		IsActive: utils.NewTrue(),
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&store).Error; err != nil {
			return err
		}
		if !config.SeedStockLevelsOnVariantCreate() {
			return nil
		}
		var variantIds []int
		if err := tx.Model(&ProductVariant{}).Where("is_active = ?", true).Pluck("id", &variantIds).Error; err != nil {
			return err
		}
		return seedStockLevels(tx, []int{store.ID}, variantIds, 0)
	})
	if err != nil {
		config.LogError(config.GetLogger(), "store.go", "CreateStore", "creating store", input, err)
		return nil, utils.TranslateDBError(err)
	}
	return &store, nil
}

func GetStore(ctx context.Context, id int) (*Store, error) {
	db := config.GetDB()
	var store Store
	if err := db.WithContext(ctx).First(&store, id).Error; err != nil {
		return nil, dbErr(err, "store", id)
	}
	return &store, nil
}

// ensureStoresExist fails with NotFoundError for the first unknown or inactive store id.
func ensureStoresExist(tx *gorm.DB, storeIds []int) error {
	ids := utils.UniqueSlice(storeIds)
	if len(ids) == 0 {
		return nil
	}
	var found []int
	if err := tx.Model(&Store{}).Where("id IN ? AND is_active = ?", ids, true).Pluck("id", &found).Error; err != nil {
		return utils.TranslateDBError(err)
	}
	known := make(map[int]bool, len(found))
	for _, id := range found {
		known[id] = true
	}
	for _, id := range ids {
		if !known[id] {
			return &NotFoundError{Entity: "store", Id: id}
		}
	}
	return nil
}
