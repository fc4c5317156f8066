package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
)

var (
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvariantViolation      = errors.New("invariant violation")
	ErrNotFound                = errors.New("not found")
	// ErrLockTimeout is also reported as "resource busy"; the operation applied nothing.
	ErrLockTimeout  = utils.ErrLockTimeout
	ErrResourceBusy = utils.ErrLockTimeout
)

// StockError identifies the line and ledger row that could not cover a deduction.
type StockError struct {
	LineNo    int
	StoreId   int
	VariantId int
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock: line %d store %d variant %d requested %d available %d",
		e.LineNo, e.StoreId, e.VariantId, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

type StatusTransitionError struct {
	Entity string
	Id     int
	From   string
	To     string
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition for %s %d: %s -> %s", e.Entity, e.Id, e.From, e.To)
}

func (e *StatusTransitionError) Unwrap() error { return ErrInvalidStatusTransition }

type InvariantError struct {
	LineNo  int
	Message string
	Fields  map[string]string
}

func (e *InvariantError) Error() string {
	var b strings.Builder
	b.WriteString("invariant violation")
	if e.LineNo > 0 {
		fmt.Fprintf(&b, ": line %d", e.LineNo)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+e.Fields[k])
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}
	return b.String()
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

func invariantErr(lineNo int, format string, args ...any) error {
	return &InvariantError{LineNo: lineNo, Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Entity string
	Id     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.Id)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// dbErr normalizes errors coming back from gorm: missing rows become NotFoundError,
// lock waits and deadlocks become ErrLockTimeout.
func dbErr(err error, entity string, id int) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Entity: entity, Id: id}
	}
	return utils.TranslateDBError(err)
}
