package models

import (
	"errors"
	"testing"
)

func TestNumberOrderLines(t *testing.T) {
	in := []NewOrderLine{{VariantId: 1, Quantity: 1}, {VariantId: 2, Quantity: 3}}
	out, err := numberOrderLines(in)
	if err != nil {
		t.Fatalf("numberOrderLines: %v", err)
	}
	if out[0].LineNo != 1 || out[1].LineNo != 2 {
		t.Fatalf("line numbers = %d, %d", out[0].LineNo, out[1].LineNo)
	}
	if in[0].LineNo != 0 {
		t.Fatalf("input lines were modified")
	}

	given := []NewOrderLine{{LineNo: 10, VariantId: 1, Quantity: 1}, {LineNo: 20, VariantId: 2, Quantity: 1}}
	out, err = numberOrderLines(given)
	if err != nil || out[0].LineNo != 10 || out[1].LineNo != 20 {
		t.Fatalf("explicit numbers: out=%+v err=%v", out, err)
	}

	partial := []NewOrderLine{{LineNo: 1, VariantId: 1, Quantity: 1}, {VariantId: 2, Quantity: 1}}
	if _, err := numberOrderLines(partial); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("partial numbering: err = %v", err)
	}
}

func TestTransferTransitions(t *testing.T) {
	if !canTransitionTransfer(TransferStatusPending, TransferStatusInTransit) ||
		!canTransitionTransfer(TransferStatusPending, TransferStatusCancelled) ||
		!canTransitionTransfer(TransferStatusInTransit, TransferStatusCompleted) ||
		!canTransitionTransfer(TransferStatusInTransit, TransferStatusCancelled) {
		t.Fatalf("legal transfer transition rejected")
	}
	if canTransitionTransfer(TransferStatusPending, TransferStatusCompleted) ||
		canTransitionTransfer(TransferStatusCompleted, TransferStatusCancelled) ||
		canTransitionTransfer(TransferStatusCancelled, TransferStatusPending) {
		t.Fatalf("illegal transfer transition accepted")
	}
}

func TestStockLevelHelpers(t *testing.T) {
	keys := sortStockKeys([]stockKey{{2, 1}, {1, 9}, {1, 3}, {2, 1}})
	want := []stockKey{{1, 3}, {1, 9}, {2, 1}}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}

	if (StockLevel{Quantity: 3}).IsLowStock() {
		t.Fatalf("no threshold means never low")
	}
	if !(StockLevel{Quantity: 3, LowStockThreshold: 3}).IsLowStock() {
		t.Fatalf("quantity at threshold is low")
	}
	if (StockLevel{Quantity: 4, LowStockThreshold: 3}).IsLowStock() {
		t.Fatalf("quantity above threshold is not low")
	}
}
