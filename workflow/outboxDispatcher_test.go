package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestOutboxBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{7, 320 * time.Second},
		{8, maxOutboxBackoff},
		{50, maxOutboxBackoff},
	}
	for _, tc := range cases {
		if got := outboxBackoff(5*time.Second, tc.attempt); got != tc.want {
			t.Fatalf("outboxBackoff(attempt=%d) = %s, want %s", tc.attempt, got, tc.want)
		}
	}
}

func TestDispatchOnceWithoutDB(t *testing.T) {
	d := NewOutboxDispatcher(nil, nil)
	if d.DispatcherID == "" || d.Publish == nil {
		t.Fatalf("dispatcher defaults not set: %+v", d)
	}
	n, err := d.DispatchOnce(context.Background())
	if n != 0 || err != nil {
		t.Fatalf("DispatchOnce without DB = (%d, %v)", n, err)
	}
}

// unreachableDB returns a handle whose every statement fails to connect.
func unreachableDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "retail:retail@tcp(127.0.0.1:1)/retail?timeout=1s",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DisableAutomaticPing: true, Logger: logger.Discard})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return db
}

func TestMarkPublishFailedLogsUpdateErrors(t *testing.T) {
	cases := []struct {
		name    string
		attempt int
		context string
	}{
		{"retry scheduled", 1, "marking event failed"},
		{"attempts exhausted", 20, "marking event dead"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			log, hook := test.NewNullLogger()
			d := NewOutboxDispatcher(unreachableDB(t), log)
			d.markPublishFailed(context.Background(), 7, errors.New("broker unavailable"), tc.attempt)

			var found bool
			for _, e := range hook.AllEntries() {
				if e.Level == logrus.ErrorLevel && e.Data["funcName"] == "markPublishFailed" && e.Data["context"] == tc.context {
					found = e.Data["data"] == 7
				}
			}
			if !found {
				t.Fatalf("no %q log entry for record 7; entries = %d", tc.context, len(hook.AllEntries()))
			}
		})
	}
}
