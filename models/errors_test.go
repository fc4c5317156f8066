package models

import (
	"errors"
	"fmt"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

func TestDbErr(t *testing.T) {
	if dbErr(nil, "order", 1) != nil {
		t.Fatalf("nil error translated to non-nil")
	}

	err := dbErr(gorm.ErrRecordNotFound, "order", 7)
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Entity != "order" || nf.Id != 7 {
		t.Fatalf("err = %v, want order 7 not found", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("not found error does not match ErrNotFound")
	}

	for _, code := range []uint16{1205, 1213, 3572} {
		lockErr := fmt.Errorf("exec: %w", &mysqlDriver.MySQLError{Number: code, Message: "lock"})
		if got := dbErr(lockErr, "stock", 1); !errors.Is(got, ErrLockTimeout) || !errors.Is(got, ErrResourceBusy) {
			t.Fatalf("mysql %d: err = %v, want ErrLockTimeout", code, got)
		}
	}

	other := errors.New("connection refused")
	if got := dbErr(other, "stock", 1); got != other {
		t.Fatalf("unrelated error changed: %v", got)
	}
}

func TestStockError(t *testing.T) {
	err := error(&StockError{LineNo: 2, StoreId: 1, VariantId: 5, Requested: 9, Available: 4})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("StockError does not match ErrInsufficientStock")
	}
	want := "insufficient stock: line 2 store 1 variant 5 requested 9 available 4"
	if err.Error() != want {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestInvariantErrorMessage(t *testing.T) {
	err := &InvariantError{LineNo: 3, Message: "bad decision", Fields: map[string]string{"b": "2", "a": "1"}}
	want := "invariant violation: line 3: bad decision (a=1, b=2)"
	if err.Error() != want {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}
	if (&InvariantError{}).Error() != "invariant violation" {
		t.Fatalf("bare message = %q", (&InvariantError{}).Error())
	}
}
