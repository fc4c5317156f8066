package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"gorm.io/gorm"
)

// sequence width is a minimum; values past 9999 grow instead of being truncated.
const sequenceMinWidth = 4

// FormatOrderNumber renders "YYYYMM-NNNN".
func FormatOrderNumber(date time.Time, seq int64) string {
	return fmt.Sprintf("%s-%0*d", date.Format("200601"), sequenceMinWidth, seq)
}

// FormatPurchaseNumber renders "PO-YYYYMMDD-NNNN".
func FormatPurchaseNumber(date time.Time, seq int64) string {
	return fmt.Sprintf("PO-%s-%0*d", date.Format("20060102"), sequenceMinWidth, seq)
}

func FormatDocumentNumber(domain SequenceDomain, date time.Time, seq int64) string {
	if domain == SequenceDomainPurchase {
		return FormatPurchaseNumber(date, seq)
	}
	return FormatOrderNumber(date, seq)
}

// nextDocumentNumberInTx draws and formats one number inside tx, so the counter
// increment commits or rolls back with the document that carries it.
func nextDocumentNumberInTx(tx *gorm.DB, domain SequenceDomain, date time.Time) (string, int64, error) {
	seq, err := NextSequenceInTx(tx, domain, PeriodKeyFor(domain, date))
	if err != nil {
		return "", 0, err
	}
	return FormatDocumentNumber(domain, date, seq), seq, nil
}

func NextOrderNumber(ctx context.Context, date time.Time) (string, error) {
	seq, err := NextSequence(ctx, SequenceDomainOrder, OrderPeriodKey(date))
	if err != nil {
		return "", err
	}
	return FormatOrderNumber(date, seq), nil
}

func NextPurchaseNumber(ctx context.Context, date time.Time) (string, error) {
	seq, err := NextSequence(ctx, SequenceDomainPurchase, PurchasePeriodKey(date))
	if err != nil {
		return "", err
	}
	return FormatPurchaseNumber(date, seq), nil
}

// GenerateNumberBatch reserves n consecutive numbers of one period in a single transaction.
// n <= 0 yields an empty slice.
func GenerateNumberBatch(ctx context.Context, domain SequenceDomain, date time.Time, n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}
	numbers := make([]string, 0, n)
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := 0; i < n; i++ {
			number, _, err := nextDocumentNumberInTx(tx, domain, date)
			if err != nil {
				return err
			}
			numbers = append(numbers, number)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return numbers, nil
}
