package models

import (
	"time"

	"github.com/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	IdempotencyScopeOrder    = "order"
	IdempotencyScopePurchase = "purchase"
)

// IdempotencyKey ties a client request key to the document it created. The row is written
// in the document's own transaction, so it exists exactly when the document does.
// Unique constraint: (scope, request_key).
type IdempotencyKey struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Scope       string    `gorm:"size:40;not null;uniqueIndex:uniq_idem,priority:1" json:"scope"`
	RequestKey  string    `gorm:"size:255;not null;uniqueIndex:uniq_idem,priority:2" json:"request_key"`
	ReferenceId int       `gorm:"not null;default:0" json:"reference_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// claimIdempotencyKey inserts the key inside tx. When the key was already committed by an
// earlier request it returns that request's reference id. A concurrent request with the same
// key blocks on the unique index until the first one commits or rolls back.
func claimIdempotencyKey(tx *gorm.DB, scope string, requestKey string) (existingRef int, err error) {
	key := IdempotencyKey{Scope: scope, RequestKey: requestKey}
	if err := tx.Create(&key).Error; err == nil {
		return 0, nil
	} else if !utils.IsDuplicateKeyErr(err) {
		return 0, utils.TranslateDBError(err)
	}

	// a locking read sees the committed row even when tx's snapshot predates it
	var existing IdempotencyKey
	if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Where("scope = ? AND request_key = ?", scope, requestKey).First(&existing).Error; err != nil {
		return 0, utils.TranslateDBError(err)
	}
	return existing.ReferenceId, nil
}

func bindIdempotencyKey(tx *gorm.DB, scope string, requestKey string, referenceId int) error {
	return tx.Model(&IdempotencyKey{}).
		Where("scope = ? AND request_key = ?", scope, requestKey).
		Update("reference_id", referenceId).Error
}
