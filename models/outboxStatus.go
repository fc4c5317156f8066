package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"gorm.io/gorm"
)

// InventoryEventStatus is the publish state of one document's outbox rows.
type InventoryEventStatus struct {
	ReferenceType    InventoryReferenceType `json:"reference_type"`
	ReferenceId      int                    `json:"reference_id"`
	Pending          int                    `json:"pending"`
	Processing       int                    `json:"processing"`
	Sent             int                    `json:"sent"`
	Failed           int                    `json:"failed"`
	Dead             int                    `json:"dead"`
	LastPublishError *string                `json:"last_publish_error"`
}

func GetInventoryEventStatus(ctx context.Context, refType InventoryReferenceType, refId int) (*InventoryEventStatus, error) {
	events, err := ListInventoryEvents(ctx, refType, refId)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, &NotFoundError{Entity: "inventory event for " + string(refType), Id: refId}
	}
	status := &InventoryEventStatus{ReferenceType: refType, ReferenceId: refId}
	for _, e := range events {
		switch e.PublishStatus {
		case OutboxPublishStatusPending:
			status.Pending++
		case OutboxPublishStatusProcessing:
			status.Processing++
		case OutboxPublishStatusSent:
			status.Sent++
		case OutboxPublishStatusFailed:
			status.Failed++
		case OutboxPublishStatusDead:
			status.Dead++
		}
		if e.LastPublishError != nil {
			status.LastPublishError = e.LastPublishError
		}
	}
	return status, nil
}

// ReprocessInventoryEvents puts a document's FAILED and DEAD events back in the queue with a
// fresh attempt budget. Sent events are never republished.
func ReprocessInventoryEvents(ctx context.Context, refType InventoryReferenceType, refId int) (*InventoryEventStatus, error) {
	res := requeueInventoryEvents(config.GetDB().WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", refType, refId))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &NotFoundError{Entity: "failed inventory event for " + string(refType), Id: refId}
	}
	return GetInventoryEventStatus(ctx, refType, refId)
}

// RequeueDeadInventoryEvents requeues every DEAD event and returns how many were requeued.
func RequeueDeadInventoryEvents(ctx context.Context) (int64, error) {
	res := requeueInventoryEvents(config.GetDB().WithContext(ctx).
		Where("publish_status = ?", OutboxPublishStatusDead))
	return res.RowsAffected, res.Error
}

func requeueInventoryEvents(scope *gorm.DB) *gorm.DB {
	now := time.Now().UTC()
	return scope.Model(&InventoryEvent{}).
		Where("publish_status IN ?", []string{OutboxPublishStatusFailed, OutboxPublishStatusDead}).
		Updates(map[string]interface{}{
			"publish_status":   OutboxPublishStatusPending,
			"publish_attempts": 0,
			"next_attempt_at":  &now,
			"locked_at":        nil,
			"locked_by":        nil,
		})
}
