// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/danielhkuo/quickpoll/db"
)

// Messages returned to clients
const (
	MsgTooManyRequests = "Too many requests. Please try again later."
	MsgBlocked         = "Rate limit exceeded. You are temporarily blocked."
)

// Decision is the outcome of a rate limit check
type Decision struct {
	Allowed bool
	Message string
}

// Limiter counts attempts per (IP, action) in the rate_limits table.
// An address that reaches the limit inside the window is locked out for the
// block duration, which outlasts the window itself.
type Limiter struct {
	db      *sqlx.DB
	dialect db.Dialect
	block   time.Duration
}

func New(dbx *sqlx.DB, d db.Dialect, block time.Duration) *Limiter {
	return &Limiter{db: dbx, dialect: d, block: block}
}

// Check records an attempt and reports whether it may proceed. Storage
// failures deny the request.
func (l *Limiter) Check(ctx context.Context, ip, action string, maxAttempts int, window time.Duration) Decision {
	d, err := l.check(ctx, ip, action, maxAttempts, window)
	if err != nil {
		slog.Error("rate limit check failed",
			"ip", ip,
			"action", action,
			"error", err,
		)
		return Decision{Allowed: false, Message: MsgTooManyRequests}
	}

	if !d.Allowed {
		slog.Warn("rate limited",
			"ip", ip,
			"action", action,
			"message", d.Message,
		)
	}
	return d
}

func (l *Limiter) check(ctx context.Context, ip, action string, maxAttempts int, window time.Duration) (Decision, error) {
	now := l.dialect.Now
	windowSeconds := int64(window / time.Second)

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Live lockout
	var blocked int
	err = tx.GetContext(ctx, &blocked, `
		SELECT COUNT(*) FROM rate_limits
		WHERE ip_address = $1 AND action_type = $2
		AND blocked_until IS NOT NULL AND blocked_until > `+now,
		ip, action)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read lockout: %w", err)
	}
	if blocked > 0 {
		return Decision{Allowed: false, Message: MsgTooManyRequests}, nil
	}

	// Count the attempt if the window still has room
	res, err := tx.ExecContext(ctx, `
		UPDATE rate_limits
		SET attempt_count = attempt_count + 1, last_attempt = `+now+`
		WHERE ip_address = $1 AND action_type = $2
		AND last_attempt > `+now+` - $3 AND attempt_count < $4
	`, ip, action, windowSeconds, maxAttempts)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count attempt: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Decision{}, err
	} else if n == 1 {
		return allow(tx)
	}

	// Window is full: lock the address out
	res, err = tx.ExecContext(ctx, `
		UPDATE rate_limits
		SET blocked_until = `+now+` + $3
		WHERE ip_address = $1 AND action_type = $2
		AND last_attempt > `+now+` - $4
	`, ip, action, int64(l.block/time.Second), windowSeconds)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to set lockout: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return Decision{}, err
	} else if n == 1 {
		if err := tx.Commit(); err != nil {
			return Decision{}, fmt.Errorf("failed to commit lockout: %w", err)
		}
		return Decision{Allowed: false, Message: MsgBlocked}, nil
	}

	// No record inside the window: start a new one
	if err := l.startWindow(ctx, tx, ip, action, windowSeconds); err != nil {
		return Decision{}, err
	}
	return allow(tx)
}

// startWindow opens a fresh window for (ip, action). A concurrent request
// may have opened the same window first, in which case its count is kept
// and this attempt is added to it.
func (l *Limiter) startWindow(ctx context.Context, tx *sqlx.Tx, ip, action string, windowSeconds int64) error {
	now := l.dialect.Now
	_, err := tx.ExecContext(ctx, `
		INSERT INTO rate_limits (ip_address, action_type, attempt_count, last_attempt, blocked_until)
		VALUES ($1, $2, 1, `+now+`, NULL)
		ON CONFLICT (ip_address, action_type)
		DO UPDATE SET
			attempt_count = CASE WHEN rate_limits.last_attempt > `+now+` - $3
				THEN rate_limits.attempt_count + 1 ELSE 1 END,
			blocked_until = CASE WHEN rate_limits.last_attempt > `+now+` - $3
				THEN rate_limits.blocked_until ELSE NULL END,
			last_attempt = excluded.last_attempt
	`, ip, action, windowSeconds)
	if err != nil {
		return fmt.Errorf("failed to start window: %w", err)
	}
	return nil
}

func allow(tx *sqlx.Tx) (Decision, error) {
	if err := tx.Commit(); err != nil {
		return Decision{}, fmt.Errorf("failed to commit attempt: %w", err)
	}
	return Decision{Allowed: true}, nil
}
