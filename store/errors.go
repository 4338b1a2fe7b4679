// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// RecordVote outcomes
	ErrAlreadyVoted  = errors.New("already voted")
	ErrInvalidOption = errors.New("option does not belong to poll")
	ErrPollClosed    = errors.New("poll is closed")
)

// CastErr inspects the given error and replaces driver specific errors with
// easier to compare equivalents.
//
// See https://www.postgresql.org/docs/current/errcodes-appendix.html and
// https://www.sqlite.org/rescode.html#extrc
func CastErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrConflict
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return ErrConflict
		}
	}

	return err
}
