package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Transfer moves units of one variant between stores. The origin is deducted when the
// transfer is created; the destination is credited on completion (standalone transfers only).
type Transfer struct {
	ID              int            `gorm:"primary_key" json:"id"`
	FromStoreId     int            `gorm:"not null;index" json:"from_store_id"`
	ToStoreId       int            `gorm:"not null;index" json:"to_store_id"`
	VariantId       int            `gorm:"not null;index" json:"variant_id"`
	Quantity        int            `gorm:"not null;check:chk_transfers_quantity,quantity > 0" json:"quantity"`
	Status          TransferStatus `gorm:"type:enum('pending','in_transit','completed','cancelled');not null;default:'pending';index" json:"status"`
	InitiatedBy     int            `gorm:"index" json:"initiated_by"`
	InitiatedByName string         `gorm:"size:100" json:"initiated_by_name"`
	OrderId         *int           `gorm:"index" json:"order_id"`
	OrderLineId     *int           `gorm:"index" json:"order_line_id"`
	Note            string         `gorm:"type:text" json:"note"`
	CompletedAt     *time.Time     `json:"completed_at"`
	CancelledAt     *time.Time     `json:"cancelled_at"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTransfer struct {
	FromStoreId int    `json:"from_store_id" validate:"required,gt=0"`
	ToStoreId   int    `json:"to_store_id" validate:"required,gt=0,nefield=FromStoreId"`
	VariantId   int    `json:"variant_id" validate:"required,gt=0"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
	Note        string `json:"note"`
}

// IsOrderBound reports whether the transfer was initiated by an order line.
func (t *Transfer) IsOrderBound() bool {
	return t.OrderLineId != nil
}

var transferTransitions = map[TransferStatus][]TransferStatus{
	TransferStatusPending:   {TransferStatusInTransit, TransferStatusCancelled},
	TransferStatusInTransit: {TransferStatusCompleted, TransferStatusCancelled},
}

func canTransitionTransfer(from, to TransferStatus) bool {
	for _, next := range transferTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type transferStatusPayload struct {
	From     TransferStatus `json:"from"`
	To       TransferStatus `json:"to"`
	Quantity int            `json:"quantity"`
}

// newTransferInTx creates a pending transfer whose origin has already been deducted by tx.
func newTransferInTx(tx *gorm.DB, t *Transfer) error {
	t.Status = TransferStatusPending
	if ctx := tx.Statement.Context; ctx != nil {
		t.InitiatedBy, _ = utils.GetUserIdFromContext(ctx)
		t.InitiatedByName, _ = utils.GetUserNameFromContext(ctx)
	}
	if err := tx.Create(t).Error; err != nil {
		return err
	}
	return writeInventoryEvent(tx, InventoryEventTransferCreated, InventoryReferenceTransfer, t.ID, t.FromStoreId, t.VariantId, t)
}

// CreateTransfer starts a standalone transfer: the origin is deducted now, atomically with
// the transfer row.
func CreateTransfer(ctx context.Context, input *NewTransfer) (*Transfer, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	transfer := Transfer{
		FromStoreId: input.FromStoreId,
		ToStoreId:   input.ToStoreId,
		VariantId:   input.VariantId,
		Quantity:    input.Quantity,
		Note:        input.Note,
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureStoresExist(tx, []int{input.FromStoreId, input.ToStoreId}); err != nil {
			return err
		}
		if err := ensureVariantsExist(tx, []int{input.VariantId}); err != nil {
			return err
		}
		level, err := DeductStockInTx(tx, input.FromStoreId, input.VariantId, input.Quantity)
		if err != nil {
			return err
		}
		if err := newTransferInTx(tx, &transfer); err != nil {
			return err
		}
		return writeLowStockEvents(tx, []*StockLevel{level})
	})
	if err != nil {
		config.LogError(config.GetLogger(), "transfer.go", "CreateTransfer", "creating transfer", input, err)
		return nil, utils.TranslateDBError(err)
	}
	invalidateStockCache(ctx, input.VariantId)
	return &transfer, nil
}

// TransitionTransferStatus moves a transfer along pending -> in_transit -> completed, or to
// cancelled from pending/in_transit.
//
// Completing a standalone transfer credits the destination. Completing an order-bound one
// does not: the units are consumed by the order. Cancelling credits the origin back, and an
// order-bound cancellation turns the quantity into a backorder on its line.
func TransitionTransferStatus(ctx context.Context, id int, status TransferStatus) (*Transfer, error) {
	if !status.IsValid() {
		return nil, &InvariantError{Message: "unknown transfer status", Fields: map[string]string{"status": string(status)}}
	}
	var transfer Transfer
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&transfer, id).Error; err != nil {
			return dbErr(err, "transfer", id)
		}
		from := transfer.Status
		if !canTransitionTransfer(from, status) {
			return &StatusTransitionError{Entity: "transfer", Id: id, From: string(from), To: string(status)}
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{"status": status}
		var touched *StockLevel
		switch status {
		case TransferStatusCompleted:
			updates["completed_at"] = now
			if !transfer.IsOrderBound() {
				level, err := IncrementStockInTx(tx, transfer.ToStoreId, transfer.VariantId, transfer.Quantity)
				if err != nil {
					return err
				}
				touched = level
			}
		case TransferStatusCancelled:
			updates["cancelled_at"] = now
			level, err := IncrementStockInTx(tx, transfer.FromStoreId, transfer.VariantId, transfer.Quantity)
			if err != nil {
				return err
			}
			touched = level
			if transfer.IsOrderBound() {
				if err := backorderOrderLine(tx, *transfer.OrderLineId, transfer.Quantity); err != nil {
					return err
				}
			}
		}

		if err := tx.Model(&Transfer{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		transfer.Status = status
		if status == TransferStatusCompleted {
			transfer.CompletedAt = &now
		} else if status == TransferStatusCancelled {
			transfer.CancelledAt = &now
		}

		payload := transferStatusPayload{From: from, To: status, Quantity: transfer.Quantity}
		storeId := transfer.FromStoreId
		if touched != nil {
			storeId = touched.StoreId
		}
		return writeInventoryEvent(tx, InventoryEventTransferStatus, InventoryReferenceTransfer, transfer.ID, storeId, transfer.VariantId, payload)
	})
	if err != nil {
		return nil, utils.TranslateDBError(err)
	}
	invalidateStockCache(ctx, transfer.VariantId)
	return &transfer, nil
}

func GetTransfer(ctx context.Context, id int) (*Transfer, error) {
	db := config.GetDB()
	var transfer Transfer
	if err := db.WithContext(ctx).First(&transfer, id).Error; err != nil {
		return nil, dbErr(err, "transfer", id)
	}
	return &transfer, nil
}

// ListOrderTransfers returns the transfers initiated by one order.
func ListOrderTransfers(ctx context.Context, orderId int) ([]Transfer, error) {
	db := config.GetDB()
	var transfers []Transfer
	if err := db.WithContext(ctx).Where("order_id = ?", orderId).Order("id").Find(&transfers).Error; err != nil {
		return nil, err
	}
	return transfers, nil
}
