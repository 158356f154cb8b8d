package store

import (
	"errors"
	"testing"
	"time"

	"github.com/raman-lab/fcpr/internal/timeutil"
)

var errBusy = errors.New("database is locked (5) (SQLITE_BUSY)")

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "database is locked", err: errBusy, expected: true},
		{name: "SQLITE_BUSY", err: errors.New("SQLITE_BUSY"), expected: true},
		{name: "other error", err: errors.New("constraint failed"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSQLiteBusy(tt.err); got != tt.expected {
				t.Errorf("isSQLiteBusy(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestRetryOnBusy(t *testing.T) {
	t.Run("success after retry", func(t *testing.T) {
		calls := 0
		clock := timeutil.NewMockClock(time.Unix(0, 0))
		err := retryOnBusy(clock, func() error {
			calls++
			if calls < 3 {
				return errBusy
			}
			return nil
		})
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
		sleeps := clock.Sleeps()
		if len(sleeps) != 2 || sleeps[0] != 10*time.Millisecond || sleeps[1] != 20*time.Millisecond {
			t.Errorf("backoff = %v, want [10ms 20ms]", sleeps)
		}
	})

	t.Run("non-busy error fails immediately", func(t *testing.T) {
		calls := 0
		testErr := errors.New("some other error")
		err := retryOnBusy(timeutil.RealClock{}, func() error {
			calls++
			return testErr
		})
		if err != testErr {
			t.Errorf("expected error %v, got %v", testErr, err)
		}
		if calls != 1 {
			t.Errorf("expected 1 call, got %d", calls)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		calls := 0
		clock := timeutil.NewMockClock(time.Unix(0, 0))
		err := retryOnBusy(clock, func() error {
			calls++
			return errBusy
		})
		if !errors.Is(err, errBusy) {
			t.Errorf("expected wrapped busy error, got %v", err)
		}
		if calls != busyMaxAttempts {
			t.Errorf("expected %d calls, got %d", busyMaxAttempts, calls)
		}
		if n := len(clock.Sleeps()); n != busyMaxAttempts-1 {
			t.Errorf("expected %d sleeps, got %d", busyMaxAttempts-1, n)
		}
	})
}
