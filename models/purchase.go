package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Purchase struct {
	ID             int            `gorm:"primary_key" json:"id"`
	PurchaseNumber string         `gorm:"size:30;uniqueIndex;not null" json:"purchase_number"`
	StoreId        int            `gorm:"not null;index" json:"store_id"`
	SupplierName   string         `gorm:"size:255" json:"supplier_name"`
	PurchaseDate   time.Time      `gorm:"not null" json:"purchase_date"`
	Status         PurchaseStatus `gorm:"type:enum('pending','confirmed','received','completed','cancelled');not null;default:'pending';index" json:"status"`
	ShippingCost   int64          `gorm:"not null;default:0;check:chk_purchases_shipping_cost,shipping_cost >= 0" json:"shipping_cost"`
	Subtotal       int64          `gorm:"not null;default:0" json:"subtotal"`
	TotalAmount    int64          `gorm:"not null;default:0" json:"total_amount"`
	Notes          string         `gorm:"type:text" json:"notes"`
	CreatedBy      int            `json:"created_by"`
	CompletedAt    *time.Time     `json:"completed_at"`
	Items          []PurchaseItem `gorm:"foreignKey:PurchaseId" json:"items"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseItem struct {
	ID                    int       `gorm:"primary_key" json:"id"`
	PurchaseId            int       `gorm:"not null;index" json:"purchase_id"`
	LineNo                int       `gorm:"not null" json:"line_no"`
	VariantId             int       `gorm:"not null;index" json:"variant_id"`
	Quantity              int       `gorm:"not null;check:chk_purchase_items_quantity,quantity > 0" json:"quantity"`
	UnitCost              int64     `gorm:"not null;default:0;check:chk_purchase_items_unit_cost,unit_cost >= 0" json:"unit_cost"`
	AllocatedShippingCost int64     `gorm:"not null;default:0;check:chk_purchase_items_shipping,allocated_shipping_cost >= 0" json:"allocated_shipping_cost"`
	LineCost              int64     `gorm:"not null;default:0" json:"line_cost"`
	CreatedAt             time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPurchaseItem struct {
	VariantId int   `json:"variant_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"gt=0"`
	UnitCost  int64 `json:"unit_cost" validate:"gte=0"`
}

type NewPurchase struct {
	StoreId      int               `json:"store_id" validate:"required,gt=0"`
	SupplierName string            `json:"supplier_name" validate:"max=255"`
	PurchaseDate time.Time         `json:"purchase_date"`
	ShippingCost int64             `json:"shipping_cost" validate:"gte=0"`
	Notes        string            `json:"notes"`
	Items        []NewPurchaseItem `json:"items" validate:"required,min=1,dive"`
	// RequestKey makes create retries safe; it is ignored on update.
	RequestKey string `json:"request_key" validate:"max=255"`
}

// LandedUnitCost is the item's unit cost including its share of shipping.
func (item PurchaseItem) LandedUnitCost() string {
	return LandedUnitCost(item.UnitCost, item.AllocatedShippingCost, int64(item.Quantity)).StringFixed(4)
}

// buildPurchaseItems prices the items and spreads shipping over them by quantity.
func buildPurchaseItems(input *NewPurchase) ([]PurchaseItem, int64, error) {
	quantities := make([]int64, 0, len(input.Items))
	for _, item := range input.Items {
		quantities = append(quantities, int64(item.Quantity))
	}
	shares, err := AllocateShippingCost(input.ShippingCost, quantities)
	if err != nil {
		return nil, 0, err
	}

	items := make([]PurchaseItem, 0, len(input.Items))
	var subtotal int64
	for i, in := range input.Items {
		lineCost := int64(in.Quantity) * in.UnitCost
		subtotal += lineCost
		items = append(items, PurchaseItem{
			LineNo:                i + 1,
			VariantId:             in.VariantId,
			Quantity:              in.Quantity,
			UnitCost:              in.UnitCost,
			AllocatedShippingCost: shares[i],
			LineCost:              lineCost,
		})
	}
	return items, subtotal, nil
}

func purchaseVariantIds(items []NewPurchaseItem) []int {
	ids := make([]int, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.VariantId)
	}
	return ids
}

// CreatePurchase stores a pending purchase. Its number is drawn in the same transaction,
// so a failed create leaves no gap in the day's sequence.
func CreatePurchase(ctx context.Context, input *NewPurchase) (*Purchase, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	items, subtotal, err := buildPurchaseItems(input)
	if err != nil {
		return nil, err
	}
	purchaseDate := input.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = time.Now()
	}
	createdBy, _ := utils.GetUserIdFromContext(ctx)

	purchase := Purchase{
		StoreId:      input.StoreId,
		SupplierName: input.SupplierName,
		PurchaseDate: purchaseDate,
		Status:       PurchaseStatusPending,
		ShippingCost: input.ShippingCost,
		Subtotal:     subtotal,
		TotalAmount:  subtotal + input.ShippingCost,
		Notes:        input.Notes,
		CreatedBy:    createdBy,
		Items:        items,
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, utils.TranslateDBError(tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	if err := ensureStoresExist(tx, []int{input.StoreId}); err != nil {
		return nil, err
	}
	if err := ensureVariantsExist(tx, purchaseVariantIds(input.Items)); err != nil {
		return nil, err
	}
	if input.RequestKey != "" {
		existingId, err := claimIdempotencyKey(tx, IdempotencyScopePurchase, input.RequestKey)
		if err != nil {
			return nil, err
		}
		if existingId > 0 {
			_ = tx.Rollback().Error
			return GetPurchase(ctx, existingId)
		}
	}
	purchase.PurchaseNumber, _, err = nextDocumentNumberInTx(tx, SequenceDomainPurchase, purchaseDate)
	if err != nil {
		return nil, utils.TranslateDBError(err)
	}
	if err := tx.Create(&purchase).Error; err != nil {
		config.LogError(config.GetLogger(), "purchase.go", "CreatePurchase", "creating purchase", input, err)
		return nil, utils.TranslateDBError(err)
	}
	if input.RequestKey != "" {
		if err := bindIdempotencyKey(tx, IdempotencyScopePurchase, input.RequestKey, purchase.ID); err != nil {
			return nil, utils.TranslateDBError(err)
		}
	}
	if err := tx.Commit().Error; err != nil {
		return nil, utils.TranslateDBError(err)
	}
	return &purchase, nil
}

// lockPurchase loads a purchase with its items, holding the purchase row FOR UPDATE.
func lockPurchase(tx *gorm.DB, id int) (*Purchase, error) {
	var purchase Purchase
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&purchase, id).Error; err != nil {
		return nil, dbErr(err, "purchase", id)
	}
	if err := tx.Where("purchase_id = ?", id).Order("line_no").Find(&purchase.Items).Error; err != nil {
		return nil, utils.TranslateDBError(err)
	}
	return &purchase, nil
}

// UpdatePurchase replaces header and items of a pending or confirmed purchase and
// reallocates shipping. The purchase number does not change.
func UpdatePurchase(ctx context.Context, id int, input *NewPurchase) (*Purchase, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	items, subtotal, err := buildPurchaseItems(input)
	if err != nil {
		return nil, err
	}

	var purchase *Purchase
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		purchase, err = lockPurchase(tx, id)
		if err != nil {
			return err
		}
		if !purchase.Status.IsEditable() {
			return &InvariantError{Message: "purchase can no longer be edited", Fields: map[string]string{"status": string(purchase.Status)}}
		}
		if err := ensureStoresExist(tx, []int{input.StoreId}); err != nil {
			return err
		}
		if err := ensureVariantsExist(tx, purchaseVariantIds(input.Items)); err != nil {
			return err
		}

		if err := tx.Where("purchase_id = ?", id).Delete(&PurchaseItem{}).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].PurchaseId = id
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}

		purchaseDate := input.PurchaseDate
		if purchaseDate.IsZero() {
			purchaseDate = purchase.PurchaseDate
		}
		if err := tx.Model(&Purchase{}).Where("id = ?", id).Updates(map[string]interface{}{
			"store_id":      input.StoreId,
			"supplier_name": input.SupplierName,
			"purchase_date": purchaseDate,
			"shipping_cost": input.ShippingCost,
			"subtotal":      subtotal,
			"total_amount":  subtotal + input.ShippingCost,
			"notes":         input.Notes,
		}).Error; err != nil {
			return err
		}
		purchase.StoreId = input.StoreId
		purchase.SupplierName = input.SupplierName
		purchase.PurchaseDate = purchaseDate
		purchase.ShippingCost = input.ShippingCost
		purchase.Subtotal = subtotal
		purchase.TotalAmount = subtotal + input.ShippingCost
		purchase.Notes = input.Notes
		purchase.Items = items
		return nil
	})
	if err != nil {
		return nil, utils.TranslateDBError(err)
	}
	return purchase, nil
}

// TransitionPurchaseStatus moves a purchase to status. Entering completed receives every
// item into the purchase's store and folds its landed cost into the variant's accumulator,
// all in the same transaction as the status change.
func TransitionPurchaseStatus(ctx context.Context, id int, status PurchaseStatus) (purchase *Purchase, err error) {
	ctx, span := tracer.Start(ctx, "TransitionPurchaseStatus")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("purchase.id", id), attribute.String("purchase.to", string(status)))

	var variantIds []int
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		purchase, err = lockPurchase(tx, id)
		if err != nil {
			return err
		}
		from := purchase.Status
		if err := checkPurchaseTransition(id, from, status); err != nil {
			return err
		}

		updates := map[string]interface{}{"status": status}
		if status == PurchaseStatusCompleted {
			if err := receivePurchase(tx, purchase); err != nil {
				return err
			}
			now := time.Now().UTC()
			updates["completed_at"] = now
			purchase.CompletedAt = &now
			for _, item := range purchase.Items {
				variantIds = append(variantIds, item.VariantId)
			}
		}
		if err := tx.Model(&Purchase{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		purchase.Status = status
		return nil
	})
	if err != nil {
		return nil, utils.TranslateDBError(err)
	}
	invalidateStockCache(ctx, variantIds...)
	return purchase, nil
}

type purchaseReceiptPayload struct {
	PurchaseNumber        string `json:"purchase_number"`
	Quantity              int    `json:"quantity"`
	UnitCost              int64  `json:"unit_cost"`
	AllocatedShippingCost int64  `json:"allocated_shipping_cost"`
	AverageCost           int64  `json:"average_cost"`
}

// receivePurchase applies a purchase's items to the ledger and cost accumulators.
// Variant rows are locked in id order before the stock rows, which are locked in
// (store, variant) order. Inserting a missing stock row takes a shared lock on its variant,
// so the variant must already be held exclusively.
func receivePurchase(tx *gorm.DB, purchase *Purchase) error {
	if len(purchase.Items) == 0 {
		return invariantErr(0, "purchase %d has no items", purchase.ID)
	}
	keys := make([]stockKey, 0, len(purchase.Items))
	variantIds := make([]int, 0, len(purchase.Items))
	for _, item := range purchase.Items {
		keys = append(keys, stockKey{StoreId: purchase.StoreId, VariantId: item.VariantId})
		variantIds = append(variantIds, item.VariantId)
	}

	variants, err := lockVariants(tx, variantIds)
	if err != nil {
		return err
	}
	levels, err := lockStockLevels(tx, keys, true)
	if err != nil {
		return err
	}

	for _, item := range purchase.Items {
		level := levels[stockKey{StoreId: purchase.StoreId, VariantId: item.VariantId}]
		if err := incrementLockedStock(tx, level, item.Quantity); err != nil {
			return err
		}
		variant := variants[item.VariantId]
		if err := applyReceiptCost(tx, variant, int64(item.Quantity), item.UnitCost, item.AllocatedShippingCost); err != nil {
			var ie *InvariantError
			if errors.As(err, &ie) {
				ie.LineNo = item.LineNo
			}
			return err
		}
		payload := purchaseReceiptPayload{
			PurchaseNumber:        purchase.PurchaseNumber,
			Quantity:              item.Quantity,
			UnitCost:              item.UnitCost,
			AllocatedShippingCost: item.AllocatedShippingCost,
			AverageCost:           variant.AverageCost,
		}
		if err := writeInventoryEvent(tx, InventoryEventPurchaseCompleted, InventoryReferencePurchase, purchase.ID, purchase.StoreId, item.VariantId, payload); err != nil {
			return err
		}
	}
	return nil
}

func GetPurchase(ctx context.Context, id int) (*Purchase, error) {
	db := config.GetDB()
	var purchase Purchase
	if err := db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("line_no")
	}).First(&purchase, id).Error; err != nil {
		return nil, dbErr(err, "purchase", id)
	}
	return &purchase, nil
}
