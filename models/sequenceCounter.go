package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceCounter is the durable per-period counter behind order and purchase numbers.
// One row per (domain, period_key); rows are created lazily at 0.
type SequenceCounter struct {
	ID           int            `gorm:"primary_key" json:"id"`
	Domain       SequenceDomain `gorm:"type:enum('order','purchase');not null;uniqueIndex:uniq_sequence_period,priority:1" json:"domain"`
	PeriodKey    string         `gorm:"size:10;not null;uniqueIndex:uniq_sequence_period,priority:2" json:"period_key"`
	LastSequence int64          `gorm:"not null;default:0" json:"last_sequence"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderPeriodKey partitions order numbers by month (YYYY-MM).
func OrderPeriodKey(date time.Time) string {
	return date.Format("2006-01")
}

// PurchasePeriodKey partitions purchase numbers by day (YYYYMMDD).
func PurchasePeriodKey(date time.Time) string {
	return date.Format("20060102")
}

func PeriodKeyFor(domain SequenceDomain, date time.Time) string {
	if domain == SequenceDomainPurchase {
		return PurchasePeriodKey(date)
	}
	return OrderPeriodKey(date)
}

func validateSequenceKey(domain SequenceDomain, periodKey string) error {
	if !domain.IsValid() {
		return &InvariantError{Message: "unknown sequence domain", Fields: map[string]string{"domain": string(domain)}}
	}
	if periodKey == "" {
		return &InvariantError{Message: "period key is required"}
	}
	return nil
}

// lockSequenceCounter returns the counter row locked FOR UPDATE, inserting it at 0 first if absent.
//
// The insert goes first (ON DUPLICATE KEY no-op) because SELECT ... FOR UPDATE on a missing
// unique key only takes a gap lock, and two callers racing on a new period would deadlock on insert.
func lockSequenceCounter(tx *gorm.DB, domain SequenceDomain, periodKey string) (*SequenceCounter, error) {
	seed := SequenceCounter{Domain: domain, PeriodKey: periodKey}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil && !utils.IsDuplicateKeyErr(err) {
		return nil, utils.TranslateDBError(err)
	}

	var counter SequenceCounter
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("domain = ? AND period_key = ?", domain, periodKey).
		First(&counter).Error; err != nil {
		return nil, utils.TranslateDBError(err)
	}
	return &counter, nil
}

// NextSequenceInTx increments the (domain, period) counter inside tx and returns the new value.
// The increment becomes visible only when tx commits; a rollback re-issues the same value later.
func NextSequenceInTx(tx *gorm.DB, domain SequenceDomain, periodKey string) (int64, error) {
	if err := validateSequenceKey(domain, periodKey); err != nil {
		return 0, err
	}
	counter, err := lockSequenceCounter(tx, domain, periodKey)
	if err != nil {
		return 0, err
	}
	next := counter.LastSequence + 1
	if err := tx.Model(&SequenceCounter{}).Where("id = ?", counter.ID).
		Update("last_sequence", next).Error; err != nil {
		return 0, utils.TranslateDBError(err)
	}
	return next, nil
}

// NextSequence draws one value in its own transaction.
func NextSequence(ctx context.Context, domain SequenceDomain, periodKey string) (int64, error) {
	db := config.GetDB()
	var next int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		next, err = NextSequenceInTx(tx, domain, periodKey)
		return err
	})
	if err != nil {
		return 0, utils.TranslateDBError(err)
	}
	return next, nil
}

// CurrentSequence returns the last issued value without mutating it (0 for an unknown period).
func CurrentSequence(ctx context.Context, domain SequenceDomain, periodKey string) (int64, error) {
	if err := validateSequenceKey(domain, periodKey); err != nil {
		return 0, err
	}
	db := config.GetDB()
	var counter SequenceCounter
	err := db.WithContext(ctx).Where("domain = ? AND period_key = ?", domain, periodKey).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return counter.LastSequence, nil
}

// ResetSequence sets the counter to value (administrative override). Repeating it is harmless.
func ResetSequence(ctx context.Context, domain SequenceDomain, periodKey string, value int64) error {
	if err := validateSequenceKey(domain, periodKey); err != nil {
		return err
	}
	if value < 0 {
		return &InvariantError{Message: "sequence value must be >= 0"}
	}
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counter, err := lockSequenceCounter(tx, domain, periodKey)
		if err != nil {
			return err
		}
		return tx.Model(&SequenceCounter{}).Where("id = ?", counter.ID).
			Update("last_sequence", value).Error
	})
	if err != nil {
		return utils.TranslateDBError(err)
	}
	config.GetLogger().WithField("domain", domain).WithField("period_key", periodKey).
		WithField("value", value).Warn("sequence counter reset")
	return nil
}
