package models

import (
	"errors"
	"strings"
	"testing"
)

func TestCanTransitionPurchase(t *testing.T) {
	legal := [][2]PurchaseStatus{
		{PurchaseStatusPending, PurchaseStatusConfirmed},
		{PurchaseStatusPending, PurchaseStatusCancelled},
		{PurchaseStatusConfirmed, PurchaseStatusReceived},
		{PurchaseStatusConfirmed, PurchaseStatusCancelled},
		{PurchaseStatusReceived, PurchaseStatusCompleted},
		{PurchaseStatusReceived, PurchaseStatusCancelled},
	}
	for _, tr := range legal {
		if !CanTransitionPurchase(tr[0], tr[1]) {
			t.Fatalf("%s -> %s should be legal", tr[0], tr[1])
		}
	}
	illegal := [][2]PurchaseStatus{
		{PurchaseStatusPending, PurchaseStatusReceived},
		{PurchaseStatusPending, PurchaseStatusCompleted},
		{PurchaseStatusConfirmed, PurchaseStatusCompleted},
		{PurchaseStatusCompleted, PurchaseStatusPending},
		{PurchaseStatusCompleted, PurchaseStatusCancelled},
		{PurchaseStatusCancelled, PurchaseStatusPending},
		{PurchaseStatusPending, PurchaseStatusPending},
	}
	for _, tr := range illegal {
		if CanTransitionPurchase(tr[0], tr[1]) {
			t.Fatalf("%s -> %s should be illegal", tr[0], tr[1])
		}
	}
}

func TestCheckPurchaseTransition(t *testing.T) {
	err := checkPurchaseTransition(42, PurchaseStatusCompleted, PurchaseStatusPending)
	var te *StatusTransitionError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *StatusTransitionError", err)
	}
	if te.From != "completed" || te.To != "pending" || te.Entity != "purchase" || te.Id != 42 {
		t.Fatalf("transition error = %+v", te)
	}
	if !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("error does not match ErrInvalidStatusTransition")
	}
	if !strings.Contains(err.Error(), "completed -> pending") {
		t.Fatalf("message = %q", err.Error())
	}
	if err := checkPurchaseTransition(1, PurchaseStatusPending, "shipped"); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("unknown target status: err = %v", err)
	}
	if err := checkPurchaseTransition(1, PurchaseStatusReceived, PurchaseStatusCompleted); err != nil {
		t.Fatalf("legal transition rejected: %v", err)
	}
}

func TestPurchaseStatusIsEditable(t *testing.T) {
	if !PurchaseStatusPending.IsEditable() || !PurchaseStatusConfirmed.IsEditable() {
		t.Fatalf("pending and confirmed purchases are editable")
	}
	if PurchaseStatusReceived.IsEditable() || PurchaseStatusCompleted.IsEditable() || PurchaseStatusCancelled.IsEditable() {
		t.Fatalf("received, completed and cancelled purchases are frozen")
	}
}
