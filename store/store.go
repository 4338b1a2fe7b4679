// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/danielhkuo/quickpoll/auth"
	"github.com/danielhkuo/quickpoll/db"
	"github.com/danielhkuo/quickpoll/models"
)

// createAttempts bounds retries on unique_id collisions
const createAttempts = 3

// Ordering selects how GetOptions sorts a poll's options
type Ordering int

const (
	// OrderByID is insertion order, used for active polls
	OrderByID Ordering = iota
	// OrderByVotes is vote_count descending with id as the tie-break
	OrderByVotes
)

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx
type queryer interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Store wraps the poll tables. Every write that touches more than one row
// runs in a single transaction.
type Store struct {
	db      *sqlx.DB
	dialect db.Dialect
}

func New(dbx *sqlx.DB, d db.Dialect) *Store {
	return &Store{db: dbx, dialect: d}
}

// NewPoll is the validated input for CreatePoll
type NewPoll struct {
	Title           string
	PasswordHash    *string
	ExpirationType  string
	ExpirationValue int
	Options         []NewOption
}

type NewOption struct {
	Text      string
	ImagePath *string
}

// PollListing is an active poll with its aggregate counts
type PollListing struct {
	models.Poll
	TotalVotes  int `db:"total_votes"`
	OptionCount int `db:"option_count"`
}

const pollColumns = `id, unique_id, title, password_hash, created_at, expires_at,
	expiration_type, expiration_value, is_expired, winner_option_id`

// Now returns the database clock as Unix seconds
func (s *Store) Now(ctx context.Context) (int64, error) {
	var now int64
	if err := s.db.GetContext(ctx, &now, `SELECT `+s.dialect.Now); err != nil {
		return 0, fmt.Errorf("failed to read database clock: %w", err)
	}
	return now, nil
}

// CreatePoll inserts the poll and its options in one transaction and returns
// the generated unique id.
func (s *Store) CreatePoll(ctx context.Context, p NewPoll) (string, error) {
	lifetime, err := lifetimeSeconds(p.ExpirationType, p.ExpirationValue)
	if err != nil {
		return "", err
	}

	for attempt := 1; ; attempt++ {
		uniqueID, err := auth.GenerateUniqueID()
		if err != nil {
			return "", fmt.Errorf("failed to generate poll id: %w", err)
		}

		err = s.insertPoll(ctx, uniqueID, lifetime, p)
		if err == nil {
			return uniqueID, nil
		}
		if !errors.Is(err, ErrConflict) || attempt == createAttempts {
			return "", err
		}
	}
}

func (s *Store) insertPoll(ctx context.Context, uniqueID string, lifetime int64, p NewPoll) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var pollID int64
	err = tx.GetContext(ctx, &pollID, `
		INSERT INTO polls (unique_id, title, password_hash, created_at, expires_at, expiration_type, expiration_value)
		VALUES ($1, $2, $3, `+s.dialect.Now+`, `+s.dialect.Now+` + $4, $5, $6)
		RETURNING id
	`, uniqueID, p.Title, p.PasswordHash, lifetime, p.ExpirationType, p.ExpirationValue)
	if err != nil {
		return fmt.Errorf("failed to insert poll: %w", CastErr(err))
	}

	for _, opt := range p.Options {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO poll_options (poll_id, option_text, image_path, vote_count)
			VALUES ($1, $2, $3, 0)
		`, pollID, opt.Text, opt.ImagePath)
		if err != nil {
			return fmt.Errorf("failed to insert option: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit poll: %w", err)
	}
	return nil
}

func lifetimeSeconds(expirationType string, value int) (int64, error) {
	switch expirationType {
	case models.ExpirationHours:
		return int64(value) * int64(time.Hour/time.Second), nil
	case models.ExpirationDays:
		return int64(value) * int64(24*time.Hour/time.Second), nil
	default:
		return 0, fmt.Errorf("unknown expiration type %q", expirationType)
	}
}

// GetPollByUniqueID returns ErrNotFound for unknown ids
func (s *Store) GetPollByUniqueID(ctx context.Context, uniqueID string) (models.Poll, error) {
	var p models.Poll
	err := s.db.GetContext(ctx, &p, `SELECT `+pollColumns+` FROM polls WHERE unique_id = $1`, uniqueID)
	return p, CastErr(err)
}

func (s *Store) GetOptions(ctx context.Context, pollID int64, ordering Ordering) ([]models.Option, error) {
	order := "id ASC"
	if ordering == OrderByVotes {
		order = "vote_count DESC, id ASC"
	}

	options := make([]models.Option, 0)
	err := s.db.SelectContext(ctx, &options, `
		SELECT id, poll_id, option_text, image_path, vote_count
		FROM poll_options
		WHERE poll_id = $1
		ORDER BY `+order, pollID)
	return options, CastErr(err)
}

// FindOption returns ErrNotFound unless the option belongs to the poll
func (s *Store) FindOption(ctx context.Context, pollID, optionID int64) (models.Option, error) {
	var o models.Option
	err := s.db.GetContext(ctx, &o, `
		SELECT id, poll_id, option_text, image_path, vote_count
		FROM poll_options
		WHERE id = $1 AND poll_id = $2
	`, optionID, pollID)
	return o, CastErr(err)
}

// VoteByIP returns the option the address voted for, or ErrNotFound
func (s *Store) VoteByIP(ctx context.Context, pollID int64, ip string) (int64, error) {
	var optionID int64
	err := s.db.GetContext(ctx, &optionID, `
		SELECT option_id FROM votes WHERE poll_id = $1 AND ip_address = $2
	`, pollID, ip)
	return optionID, CastErr(err)
}

// RecordVote stores the vote and increments the option count atomically.
// The increment only applies while the option belongs to the poll and the
// poll is still open by the database clock; the (poll_id, ip_address)
// unique index decides duplicate votes.
func (s *Store) RecordVote(ctx context.Context, pollID, optionID int64, ip string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE poll_options SET vote_count = vote_count + 1
		WHERE id = $1 AND poll_id = $2
		AND EXISTS (
			SELECT 1 FROM polls
			WHERE id = $2 AND is_expired = FALSE AND expires_at >= `+s.dialect.Now+`
		)
	`, optionID, pollID)
	if err != nil {
		return fmt.Errorf("failed to increment vote count: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("failed to increment vote count: %w", err)
	} else if n != 1 {
		return classifyRejectedVote(ctx, tx, pollID, optionID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO votes (poll_id, option_id, ip_address, voted_at)
		VALUES ($1, $2, $3, `+s.dialect.Now+`)
	`, pollID, optionID, ip)
	if err = CastErr(err); err != nil {
		if errors.Is(err, ErrConflict) {
			return ErrAlreadyVoted
		}
		return fmt.Errorf("failed to insert vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vote: %w", CastErr(err))
	}
	return nil
}

func classifyRejectedVote(ctx context.Context, q queryer, pollID, optionID int64) error {
	var n int
	err := q.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM poll_options WHERE id = $1 AND poll_id = $2
	`, optionID, pollID)
	if err != nil {
		return fmt.Errorf("failed to check option: %w", err)
	}
	if n == 0 {
		return ErrInvalidOption
	}
	return ErrPollClosed
}

// MarkExpired flags the poll expired and sets its winner unless one is
// already stored. It returns the stored winner, which callers must treat as
// authoritative. Safe to call any number of times.
func (s *Store) MarkExpired(ctx context.Context, pollID int64, winnerOptionID *int64) (*int64, error) {
	var stored *int64
	err := s.db.GetContext(ctx, &stored, `
		UPDATE polls
		SET is_expired = TRUE, winner_option_id = COALESCE(winner_option_id, $2)
		WHERE id = $1
		RETURNING winner_option_id
	`, pollID, winnerOptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark poll expired: %w", CastErr(err))
	}
	return stored, nil
}

func (s *Store) ListActivePolls(ctx context.Context, limit, offset int) ([]PollListing, error) {
	polls := make([]PollListing, 0)
	err := s.db.SelectContext(ctx, &polls, `
		SELECT p.id, p.unique_id, p.title, p.password_hash, p.created_at, p.expires_at,
			p.expiration_type, p.expiration_value, p.is_expired, p.winner_option_id,
			(SELECT COUNT(*) FROM votes v WHERE v.poll_id = p.id) AS total_votes,
			(SELECT COUNT(*) FROM poll_options o WHERE o.poll_id = p.id) AS option_count
		FROM polls p
		WHERE p.is_expired = FALSE AND p.expires_at >= `+s.dialect.Now+`
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return polls, CastErr(err)
}

func (s *Store) CountActivePolls(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM polls
		WHERE is_expired = FALSE AND expires_at >= `+s.dialect.Now)
	return n, CastErr(err)
}

// ExpiredUnflagged returns polls past expires_at whose flag is not set yet
func (s *Store) ExpiredUnflagged(ctx context.Context) ([]models.Poll, error) {
	polls := make([]models.Poll, 0)
	err := s.db.SelectContext(ctx, &polls, `
		SELECT `+pollColumns+` FROM polls
		WHERE is_expired = FALSE AND expires_at < `+s.dialect.Now+`
		ORDER BY id`)
	return polls, CastErr(err)
}

// PurgeCandidates returns ids of polls that expired more than retention ago
func (s *Store) PurgeCandidates(ctx context.Context, retention time.Duration) ([]int64, error) {
	ids := make([]int64, 0)
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id FROM polls
		WHERE is_expired = TRUE AND expires_at < `+s.dialect.Now+` - $1
		ORDER BY id
	`, int64(retention/time.Second))
	return ids, CastErr(err)
}

// DeletePoll removes the poll with its options and votes and returns the
// image paths that belonged to it so the caller can remove the files.
func (s *Store) DeletePoll(ctx context.Context, pollID int64) ([]string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	images := make([]string, 0)
	err = tx.SelectContext(ctx, &images, `
		SELECT image_path FROM poll_options
		WHERE poll_id = $1 AND image_path IS NOT NULL AND image_path <> ''
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}

	// Explicit deletes; SQLite only cascades with foreign_keys enabled
	for _, stmt := range []string{
		`DELETE FROM votes WHERE poll_id = $1`,
		`DELETE FROM poll_options WHERE poll_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, pollID); err != nil {
			return nil, fmt.Errorf("failed to delete poll rows: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM polls WHERE id = $1`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete poll: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n != 1 {
		return nil, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return images, nil
}
