package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
)

// Outbox publish statuses for InventoryEvent.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// InventoryEvent is an outbox row written in the same transaction as the inventory change
// it describes. The dispatcher publishes it after commit.
type InventoryEvent struct {
	ID            int                    `gorm:"primary_key;index:idx_inventory_outbox_dispatch,priority:3" json:"id"`
	EventType     InventoryEventType     `gorm:"size:40;not null;index" json:"event_type"`
	ReferenceType InventoryReferenceType `gorm:"size:20;not null;index:idx_inventory_event_reference,priority:1" json:"reference_type"`
	ReferenceId   int                    `gorm:"not null;index:idx_inventory_event_reference,priority:2" json:"reference_id"`
	StoreId       int                    `gorm:"index" json:"store_id"`
	VariantId     int                    `gorm:"index" json:"variant_id"`
	Payload       []byte                 `gorm:"type:blob" json:"payload"`
	OccurredAt    time.Time              `gorm:"not null" json:"occurred_at"`
	CorrelationId string                 `gorm:"size:64;index" json:"correlation_id"`

	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_inventory_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_inventory_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToInventoryEventMessage(record InventoryEvent) config.InventoryEventMessage {
	return config.InventoryEventMessage{
		ID:            record.ID,
		EventType:     string(record.EventType),
		ReferenceType: string(record.ReferenceType),
		ReferenceId:   record.ReferenceId,
		StoreId:       record.StoreId,
		VariantId:     record.VariantId,
		OccurredAt:    record.OccurredAt,
		Payload:       json.RawMessage(record.Payload),
		CorrelationId: record.CorrelationId,
	}
}

// writeInventoryEvent inserts one outbox row inside tx.
func writeInventoryEvent(tx *gorm.DB, eventType InventoryEventType, refType InventoryReferenceType, refId int, storeId int, variantId int, payload any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}
	correlationId := ""
	if ctx := tx.Statement.Context; ctx != nil {
		correlationId, _ = utils.GetCorrelationIdFromContext(ctx)
	}
	now := time.Now().UTC()
	event := InventoryEvent{
		EventType:     eventType,
		ReferenceType: refType,
		ReferenceId:   refId,
		StoreId:       storeId,
		VariantId:     variantId,
		Payload:       body,
		OccurredAt:    now,
		CorrelationId: correlationId,
		PublishStatus: OutboxPublishStatusPending,
		NextAttemptAt: &now,
	}
	return tx.Create(&event).Error
}

type lowStockPayload struct {
	Quantity          int `json:"quantity"`
	LowStockThreshold int `json:"low_stock_threshold"`
}

// writeLowStockEvents records a LOW_STOCK event for every level at or below its threshold.
func writeLowStockEvents(tx *gorm.DB, levels []*StockLevel) error {
	for _, level := range levels {
		if level == nil || !level.IsLowStock() {
			continue
		}
		payload := lowStockPayload{Quantity: level.Quantity, LowStockThreshold: level.LowStockThreshold}
		if err := writeInventoryEvent(tx, InventoryEventLowStock, InventoryReferenceStock, level.ID, level.StoreId, level.VariantId, payload); err != nil {
			return err
		}
	}
	return nil
}

// ListInventoryEvents returns the events recorded for one document, oldest first.
func ListInventoryEvents(ctx context.Context, refType InventoryReferenceType, refId int) ([]InventoryEvent, error) {
	db := config.GetDB()
	var events []InventoryEvent
	if err := db.WithContext(ctx).Where("reference_type = ? AND reference_id = ?", refType, refId).
		Order("id").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
