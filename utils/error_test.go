package utils

import (
	"errors"
	"fmt"
	"testing"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

func TestTranslateDBError(t *testing.T) {
	if TranslateDBError(nil) != nil {
		t.Fatalf("nil error translated to non-nil")
	}
	for _, code := range []uint16{1205, 1213, 3572} {
		err := fmt.Errorf("update stock: %w", &mysqlDriver.MySQLError{Number: code})
		got := TranslateDBError(err)
		if !errors.Is(got, ErrLockTimeout) {
			t.Fatalf("mysql %d: got %v, want ErrLockTimeout", code, got)
		}
		if TranslateDBError(got) != got {
			t.Fatalf("mysql %d: translating twice wrapped again", code)
		}
	}
	dup := &mysqlDriver.MySQLError{Number: 1062}
	if got := TranslateDBError(dup); got != error(dup) {
		t.Fatalf("duplicate key changed: %v", got)
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	if !IsDuplicateKeyErr(fmt.Errorf("insert: %w", &mysqlDriver.MySQLError{Number: 1062})) {
		t.Fatalf("1062 not recognized")
	}
	if IsDuplicateKeyErr(&mysqlDriver.MySQLError{Number: 1205}) || IsDuplicateKeyErr(errors.New("x")) {
		t.Fatalf("non-duplicate error recognized as duplicate")
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	want := []int{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
