// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/danielhkuo/quickpoll/db"
	"github.com/danielhkuo/quickpoll/testutil"
)

func setupLimiter(t *testing.T) (*Limiter, *sqlx.DB) {
	t.Helper()
	dbx := testutil.SetupTestDB(t)
	return New(dbx, db.SQLite, time.Hour), dbx
}

// shift moves the stored timestamps of a record back in time
func shift(t *testing.T, dbx *sqlx.DB, ip, action, column string, by time.Duration) {
	t.Helper()
	_, err := dbx.Exec(`UPDATE rate_limits SET `+column+` = `+column+` - $1 WHERE ip_address = $2 AND action_type = $3`,
		int64(by/time.Second), ip, action)
	if err != nil {
		t.Fatalf("Failed to shift %s: %v", column, err)
	}
}

func TestCheck_AllowsUpToLimitThenBlocks(t *testing.T) {
	l, _ := setupLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		if d := l.Check(ctx, "1.2.3.4", "vote", 10, time.Minute); !d.Allowed {
			t.Fatalf("Attempt %d should be allowed, got %q", i, d.Message)
		}
	}

	d := l.Check(ctx, "1.2.3.4", "vote", 10, time.Minute)
	if d.Allowed || d.Message != MsgBlocked {
		t.Errorf("Expected block on attempt 11, got %+v", d)
	}

	d = l.Check(ctx, "1.2.3.4", "vote", 10, time.Minute)
	if d.Allowed || d.Message != MsgTooManyRequests {
		t.Errorf("Expected lockout message afterwards, got %+v", d)
	}
}

func TestCheck_KeysAreIndependent(t *testing.T) {
	l, _ := setupLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		l.Check(ctx, "1.1.1.1", "create_poll", 2, time.Hour)
	}

	testCases := []struct {
		name   string
		ip     string
		action string
		want   bool
	}{
		{"same ip and action", "1.1.1.1", "create_poll", false},
		{"same ip other action", "1.1.1.1", "vote", true},
		{"other ip same action", "2.2.2.2", "create_poll", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := l.Check(ctx, tc.ip, tc.action, 2, time.Hour)
			if d.Allowed != tc.want {
				t.Errorf("Expected allowed=%v, got %+v", tc.want, d)
			}
		})
	}
}

func TestCheck_LockoutOutlastsWindow(t *testing.T) {
	l, dbx := setupLimiter(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		l.Check(ctx, "5.5.5.5", "create_poll", 5, time.Minute)
	}

	// The window has long passed but the lockout has not
	shift(t, dbx, "5.5.5.5", "create_poll", "last_attempt", 10*time.Minute)
	shift(t, dbx, "5.5.5.5", "create_poll", "blocked_until", 10*time.Minute)

	if d := l.Check(ctx, "5.5.5.5", "create_poll", 5, time.Minute); d.Allowed {
		t.Error("Expected lockout to still apply after the window")
	}

	// Once the lockout ends the counter starts over
	shift(t, dbx, "5.5.5.5", "create_poll", "blocked_until", time.Hour)

	if d := l.Check(ctx, "5.5.5.5", "create_poll", 5, time.Minute); !d.Allowed {
		t.Errorf("Expected access after lockout, got %+v", d)
	}

	var count int
	var blockedUntil *int64
	dbx.QueryRow(`SELECT attempt_count, blocked_until FROM rate_limits WHERE ip_address = '5.5.5.5'`).Scan(&count, &blockedUntil)
	if count != 1 || blockedUntil != nil {
		t.Errorf("Expected fresh record, got count=%d blocked_until=%v", count, blockedUntil)
	}
}

func TestCheck_StaleWindowResets(t *testing.T) {
	l, dbx := setupLimiter(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		l.Check(ctx, "7.7.7.7", "vote", 5, time.Minute)
	}
	shift(t, dbx, "7.7.7.7", "vote", "last_attempt", 2*time.Minute)

	// A full window is available again; fixed windows admit up to twice the
	// limit across a boundary.
	for i := 1; i <= 5; i++ {
		if d := l.Check(ctx, "7.7.7.7", "vote", 5, time.Minute); !d.Allowed {
			t.Fatalf("Attempt %d after reset should be allowed", i)
		}
	}
	if d := l.Check(ctx, "7.7.7.7", "vote", 5, time.Minute); d.Allowed {
		t.Error("Expected the sixth attempt in the new window to be blocked")
	}
}

func TestStartWindow_KeepsConcurrentCount(t *testing.T) {
	l, dbx := setupLimiter(t)
	ctx := context.Background()

	testCases := []struct {
		name     string
		ip       string
		age      time.Duration
		expected int
	}{
		{"window opened by another request", "8.8.8.1", 0, 4},
		{"stale window", "8.8.8.2", 2 * time.Minute, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				l.Check(ctx, tc.ip, "vote", 10, time.Minute)
			}
			shift(t, dbx, tc.ip, "vote", "last_attempt", tc.age)

			tx, err := dbx.BeginTxx(ctx, nil)
			if err != nil {
				t.Fatal(err)
			}
			if err := l.startWindow(ctx, tx, tc.ip, "vote", 60); err != nil {
				tx.Rollback()
				t.Fatalf("startWindow() error = %v", err)
			}
			if err := tx.Commit(); err != nil {
				t.Fatal(err)
			}

			var count int
			if err := dbx.Get(&count, `SELECT attempt_count FROM rate_limits WHERE ip_address = $1`, tc.ip); err != nil {
				t.Fatal(err)
			}
			if count != tc.expected {
				t.Errorf("Expected attempt_count %d, got %d", tc.expected, count)
			}
		})
	}
}

func TestCheck_Concurrent(t *testing.T) {
	l, _ := setupLimiter(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var allowed atomic.Int32

	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check(ctx, "8.8.8.8", "vote", 10, time.Minute).Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if allowed.Load() != 10 {
		t.Errorf("Expected exactly 10 allowed, got %d", allowed.Load())
	}
}

func TestCheck_FailsClosed(t *testing.T) {
	l, dbx := setupLimiter(t)
	dbx.Close()

	d := l.Check(context.Background(), "1.1.1.1", "vote", 10, time.Minute)
	if d.Allowed {
		t.Error("Expected denial when storage is unavailable")
	}
	if d.Message != MsgTooManyRequests {
		t.Errorf("Expected generic message, got %q", d.Message)
	}
}
