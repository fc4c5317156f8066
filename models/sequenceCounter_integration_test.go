package models_test

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
	"gorm.io/gorm"
)

func TestSequenceCounterIntegration(t *testing.T) {
	ctx := setupIntegration(t)
	june := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	t.Run("concurrent draws are gapless and unique", func(t *testing.T) {
		const workers = 40
		var wg sync.WaitGroup
		values := make([]int64, workers)
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				values[i], errs[i] = models.NextSequence(ctx, models.SequenceDomainOrder, "2025-06")
			}(i)
		}
		wg.Wait()
		for i, err := range errs {
			if err != nil {
				t.Fatalf("worker %d: %v", i, err)
			}
		}
		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
		for i, v := range values {
			if v != int64(i+1) {
				t.Fatalf("values = %v, want 1..%d", values, workers)
			}
		}
		current, err := models.CurrentSequence(ctx, models.SequenceDomainOrder, "2025-06")
		if err != nil || current != workers {
			t.Fatalf("CurrentSequence = %d, %v", current, err)
		}
	})

	t.Run("rolled back draw is issued again", func(t *testing.T) {
		errAbort := errors.New("abort")
		var drawn int64
		err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			drawn, err = models.NextSequenceInTx(tx, models.SequenceDomainPurchase, "20250615")
			if err != nil {
				return err
			}
			return errAbort
		})
		if !errors.Is(err, errAbort) || drawn != 1 {
			t.Fatalf("draw in aborted tx = %d, %v", drawn, err)
		}
		next, err := models.NextPurchaseNumber(ctx, june)
		if err != nil {
			t.Fatalf("NextPurchaseNumber: %v", err)
		}
		if next != "PO-20250615-0001" {
			t.Fatalf("number after rollback = %q", next)
		}
	})

	t.Run("width grows past 9999", func(t *testing.T) {
		if err := models.ResetSequence(ctx, models.SequenceDomainOrder, "2025-07", 9998); err != nil {
			t.Fatalf("ResetSequence: %v", err)
		}
		july := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
		first, err := models.NextOrderNumber(ctx, july)
		if err != nil {
			t.Fatalf("NextOrderNumber: %v", err)
		}
		second, err := models.NextOrderNumber(ctx, july)
		if err != nil {
			t.Fatalf("NextOrderNumber: %v", err)
		}
		if first != "202507-9999" || second != "202507-10000" {
			t.Fatalf("numbers = %q, %q", first, second)
		}
	})

	t.Run("batch reserves consecutive numbers", func(t *testing.T) {
		aug := time.Date(2025, 8, 3, 0, 0, 0, 0, time.UTC)
		numbers, err := models.GenerateNumberBatch(ctx, models.SequenceDomainPurchase, aug, 3)
		if err != nil {
			t.Fatalf("GenerateNumberBatch: %v", err)
		}
		want := []string{"PO-20250803-0001", "PO-20250803-0002", "PO-20250803-0003"}
		for i := range want {
			if numbers[i] != want[i] {
				t.Fatalf("numbers = %v, want %v", numbers, want)
			}
		}
		empty, err := models.GenerateNumberBatch(ctx, models.SequenceDomainPurchase, aug, 0)
		if err != nil || len(empty) != 0 {
			t.Fatalf("empty batch = %v, %v", empty, err)
		}
	})

	t.Run("periods are independent", func(t *testing.T) {
		a, err := models.NextSequence(ctx, models.SequenceDomainOrder, "2026-01")
		if err != nil {
			t.Fatalf("NextSequence: %v", err)
		}
		b, err := models.NextSequence(ctx, models.SequenceDomainPurchase, "2025-06")
		if err != nil {
			t.Fatalf("NextSequence: %v", err)
		}
		if a != 1 || b != 1 {
			t.Fatalf("fresh periods started at %d and %d", a, b)
		}
	})
}
