package utils

import (
	"errors"
	"fmt"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

// ErrLockTimeout is returned when a row lock could not be acquired in time
// (or the transaction was picked as a deadlock victim). Nothing was applied; retry is safe.
var ErrLockTimeout = errors.New("resource busy: lock wait timeout")

const (
	mysqlErrDuplicateEntry   = 1062
	mysqlErrLockWaitTimeout  = 1205
	mysqlErrLockDeadlock     = 1213
	mysqlErrLockNowaitFailed = 3572
)

func mysqlErrorNumber(err error) (uint16, bool) {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number, true
	}
	return 0, false
}

func IsLockTimeoutErr(err error) bool {
	if errors.Is(err, ErrLockTimeout) {
		return true
	}
	n, ok := mysqlErrorNumber(err)
	if !ok {
		return false
	}
	return n == mysqlErrLockWaitTimeout || n == mysqlErrLockDeadlock || n == mysqlErrLockNowaitFailed
}

func IsDuplicateKeyErr(err error) bool {
	n, ok := mysqlErrorNumber(err)
	return ok && n == mysqlErrDuplicateEntry
}

// TranslateDBError maps lock failures to ErrLockTimeout and leaves everything else untouched.
func TranslateDBError(err error) error {
	if err == nil || errors.Is(err, ErrLockTimeout) {
		return err
	}
	if IsLockTimeoutErr(err) {
		return fmt.Errorf("%w: %v", ErrLockTimeout, err)
	}
	return err
}
