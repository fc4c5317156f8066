package config

import (
	"strings"
	"testing"
)

func TestDatabaseDSN(t *testing.T) {
	t.Setenv("DB_USER", "retail")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "retail")
	t.Setenv("DB_HOST", "10.0.0.5")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_LOCK_WAIT_TIMEOUT_SECONDS", "7")

	dsn := DatabaseDSN()
	for _, part := range []string{"retail:secret@tcp(10.0.0.5:3306)/retail", "parseTime=true", "innodb_lock_wait_timeout=7"} {
		if !strings.Contains(dsn, part) {
			t.Fatalf("dsn %q missing %q", dsn, part)
		}
	}

	t.Setenv("DB_HOST", "/cloudsql/proj:region:inst")
	if dsn := DatabaseDSN(); !strings.Contains(dsn, "unix(/cloudsql/proj:region:inst)") {
		t.Fatalf("cloud sql dsn = %q", dsn)
	}
}

func TestLockWaitTimeoutSeconds(t *testing.T) {
	t.Setenv("DB_LOCK_WAIT_TIMEOUT_SECONDS", "")
	if got := LockWaitTimeoutSeconds(); got != defaultLockWaitTimeoutSeconds {
		t.Fatalf("default = %d", got)
	}
	t.Setenv("DB_LOCK_WAIT_TIMEOUT_SECONDS", "-3")
	if got := LockWaitTimeoutSeconds(); got != defaultLockWaitTimeoutSeconds {
		t.Fatalf("negative value accepted: %d", got)
	}
}
