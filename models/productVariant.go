package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductVariant is the sellable unit. The cost accumulator lives on this row and is
// only written by purchase receipt (and the administrative recompute).
type ProductVariant struct {
	ID                int          `gorm:"primary_key" json:"id"`
	Name              string       `gorm:"size:255;not null" json:"name"`
	Sku               string       `gorm:"size:100;uniqueIndex;not null" json:"sku"`
	Barcode           string       `gorm:"index;size:100" json:"barcode"`
	SalesPrice        int64        `gorm:"not null;default:0" json:"sales_price"`
	IsActive          *bool        `gorm:"not null;default:true" json:"is_active"`
	TotalPurchasedQty int64        `gorm:"not null;default:0;check:chk_product_variants_total_qty,total_purchased_qty >= 0" json:"total_purchased_qty"`
	TotalCostAmount   int64        `gorm:"not null;default:0;check:chk_product_variants_total_cost,total_cost_amount >= 0" json:"total_cost_amount"`
	AverageCost       int64        `gorm:"not null;default:0" json:"average_cost"`
	StockLevels       []StockLevel `gorm:"foreignKey:VariantId;constraint:OnDelete:CASCADE" json:"stock_levels,omitempty"`
	CreatedAt         time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductVariant struct {
	Name              string `json:"name" validate:"required,max=255"`
	Sku               string `json:"sku" validate:"required,max=100"`
	Barcode           string `json:"barcode" validate:"max=100"`
	SalesPrice        int64  `json:"sales_price" validate:"gte=0"`
	LowStockThreshold int    `json:"low_stock_threshold" validate:"gte=0"`
}

// CostAccumulator is the read view of the variant's running cost totals.
func (pv *ProductVariant) CostAccumulator() CostAccumulator {
	return CostAccumulator{
		TotalQuantity: pv.TotalPurchasedQty,
		TotalCost:     pv.TotalCostAmount,
	}
}

// AverageCostDecimal presents the stored minor-unit average as a currency amount.
func (pv *ProductVariant) AverageCostDecimal() decimal.Decimal {
	return MinorToDecimal(pv.AverageCost)
}

// CreateProductVariant creates the variant and, unless disabled, a zero stock row in every
// active store, in one transaction.
func CreateProductVariant(ctx context.Context, input *NewProductVariant) (*ProductVariant, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	productVariant := ProductVariant{
		Name:       input.Name,
		Sku:        input.Sku,
		Barcode:    input.Barcode,
		SalesPrice: input.SalesPrice,
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&productVariant).Error; err != nil {
			return err
		}
		if !config.SeedStockLevelsOnVariantCreate() {
			return nil
		}
		var storeIds []int
		if err := tx.Model(&Store{}).Where("is_active = ?", true).Pluck("id", &storeIds).Error; err != nil {
			return err
		}
		return seedStockLevels(tx, storeIds, []int{productVariant.ID}, input.LowStockThreshold)
	})
	if err != nil {
		config.LogError(config.GetLogger(), "productVariant.go", "CreateProductVariant", "creating variant", input, err)
		return nil, utils.TranslateDBError(err)
	}
	return &productVariant, nil
}

func UpdateProductVariant(ctx context.Context, id int, input *NewProductVariant) (*ProductVariant, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	productVariant, err := GetProductVariant(ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	// cost fields are owned by purchase receipt
	err = db.WithContext(ctx).Model(productVariant).Updates(map[string]interface{}{
		"Name":       input.Name,
		"Sku":        input.Sku,
		"Barcode":    input.Barcode,
		"SalesPrice": input.SalesPrice,
	}).Error
	if err != nil {
		return nil, utils.TranslateDBError(err)
	}
	return productVariant, nil
}

// validateTransactions blocks deleting a variant that documents still reference.
func (v ProductVariant) validateTransactions(tx *gorm.DB) error {
	var count int64
	if err := tx.Model(&PurchaseItem{}).Where("variant_id = ?", v.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return invariantErr(0, "variant is used by purchases")
	}
	if err := tx.Model(&OrderLine{}).Where("variant_id = ?", v.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return invariantErr(0, "variant is used by orders")
	}
	if err := tx.Model(&Transfer{}).Where("variant_id = ?", v.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return invariantErr(0, "variant is used by transfers")
	}
	return nil
}

// DeleteProductVariant deletes an unused variant; its stock levels go with it.
func DeleteProductVariant(ctx context.Context, id int) (*ProductVariant, error) {
	var result ProductVariant
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&result, id).Error; err != nil {
			return dbErr(err, "variant", id)
		}
		if err := result.validateTransactions(tx); err != nil {
			return err
		}
		// the FK cascade covers this; deleting explicitly keeps the order of row locks fixed
		if err := tx.Where("variant_id = ?", id).Delete(&StockLevel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&result).Error
	})
	if err != nil {
		return nil, utils.TranslateDBError(err)
	}
	invalidateStockCache(ctx, id)
	return &result, nil
}

func GetProductVariant(ctx context.Context, id int) (*ProductVariant, error) {
	db := config.GetDB()
	var productVariant ProductVariant
	if err := db.WithContext(ctx).First(&productVariant, id).Error; err != nil {
		return nil, dbErr(err, "variant", id)
	}
	return &productVariant, nil
}

// ensureVariantsExist fails with NotFoundError for the first unknown variant id.
func ensureVariantsExist(tx *gorm.DB, variantIds []int) error {
	ids := utils.UniqueSlice(variantIds)
	if len(ids) == 0 {
		return nil
	}
	var found []int
	if err := tx.Model(&ProductVariant{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return utils.TranslateDBError(err)
	}
	known := make(map[int]bool, len(found))
	for _, id := range found {
		known[id] = true
	}
	for _, id := range ids {
		if !known[id] {
			return &NotFoundError{Entity: "variant", Id: id}
		}
	}
	return nil
}
