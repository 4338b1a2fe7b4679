// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/quickpoll/auth"
	"github.com/danielhkuo/quickpoll/cliparse"
	"github.com/danielhkuo/quickpoll/db"
)

// TestViewSecret signs view tokens in tests
const TestViewSecret = "test-view-secret"

// SetupTestDB creates a fresh SQLite database with the full schema. Each
// call gets its own file under t.TempDir().
func SetupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "quickpoll.db")
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	dbx, err := sqlx.Open(db.SQLite.DriverName, dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// SQLite allows one writer; a single connection serializes everything
	dbx.SetMaxOpenConns(1)
	t.Cleanup(func() { dbx.Close() })

	if err := db.CreateSchema(context.Background(), dbx.DB, db.SQLite); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return dbx
}

// GetTestConfig returns a standard test configuration
func GetTestConfig(t *testing.T) cliparse.Config {
	t.Helper()
	return cliparse.Config{
		Port:              3318,
		DatabaseType:      cliparse.DatabaseSQLite,
		ViewTokenSecret:   TestViewSecret,
		UploadDir:         t.TempDir(),
		MaxImageSize:      5 << 20,
		MaxPollsPerHour:   5,
		MaxVotesPerMinute: 10,
		BlockDuration:     time.Hour,
		SweepInterval:     time.Hour,
		Retention:         7 * 24 * time.Hour,
		// httptest requests come from 192.0.2.1
		TrustedProxies:    []netip.Prefix{netip.MustParsePrefix("192.0.2.0/24")},
	}
}

// TestPoll describes a poll inserted by CreateTestPoll
type TestPoll struct {
	ID        int64
	UniqueID  string
	OptionIDs []int64
}

// CreateTestPoll inserts an active poll that expires in 7 days.
// An empty password leaves the poll unprotected.
func CreateTestPoll(t *testing.T, dbx *sqlx.DB, title, password string, options ...string) TestPoll {
	t.Helper()

	uniqueID, err := auth.GenerateUniqueID()
	if err != nil {
		t.Fatalf("Failed to generate unique id: %v", err)
	}

	var hash *string
	if password != "" {
		h, err := auth.HashPassword(password)
		if err != nil {
			t.Fatalf("Failed to hash password: %v", err)
		}
		hash = &h
	}

	now := db.SQLite.Now
	var pollID int64
	err = dbx.Get(&pollID, `
		INSERT INTO polls (unique_id, title, password_hash, created_at, expires_at, expiration_type, expiration_value)
		VALUES ($1, $2, $3, `+now+`, `+now+` + 604800, 'days', 7)
		RETURNING id
	`, uniqueID, title, hash)
	if err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}

	poll := TestPoll{ID: pollID, UniqueID: uniqueID}
	for _, text := range options {
		var optionID int64
		err := dbx.Get(&optionID, `
			INSERT INTO poll_options (poll_id, option_text) VALUES ($1, $2) RETURNING id
		`, pollID, text)
		if err != nil {
			t.Fatalf("Failed to create test option: %v", err)
		}
		poll.OptionIDs = append(poll.OptionIDs, optionID)
	}

	return poll
}

// AddTestVotes records n votes for an option from distinct synthetic IPs
func AddTestVotes(t *testing.T, dbx *sqlx.DB, pollID, optionID int64, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		ip := fmt.Sprintf("10.%d.%d.%d", optionID%250, i/250, i%250)
		_, err := dbx.Exec(`
			INSERT INTO votes (poll_id, option_id, ip_address, voted_at)
			VALUES ($1, $2, $3, `+db.SQLite.Now+`)
		`, pollID, optionID, ip)
		if err != nil {
			t.Fatalf("Failed to create test vote: %v", err)
		}
		_, err = dbx.Exec(`UPDATE poll_options SET vote_count = vote_count + 1 WHERE id = $1`, optionID)
		if err != nil {
			t.Fatalf("Failed to update vote count: %v", err)
		}
	}
}

// ExpireTestPoll moves expires_at into the past without touching is_expired,
// as if the poll ran out the given duration ago.
func ExpireTestPoll(t *testing.T, dbx *sqlx.DB, pollID int64, ago time.Duration) {
	t.Helper()

	_, err := dbx.Exec(`UPDATE polls SET expires_at = `+db.SQLite.Now+` - $1 WHERE id = $2`,
		int64(ago/time.Second), pollID)
	if err != nil {
		t.Fatalf("Failed to expire test poll: %v", err)
	}
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
