// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/danielhkuo/quickpoll/models"
	"github.com/danielhkuo/quickpoll/store"
)

// Resolver decides whether a poll has expired and freezes its winner the
// first time it does.
type Resolver struct {
	store *store.Store
}

func NewResolver(st *store.Store) *Resolver {
	return &Resolver{store: st}
}

// Resolve returns the poll with is_expired and winner_option_id brought up to
// date. justExpired is true when this call performed the transition. A poll
// that is already flagged is returned untouched; its winner is never
// recomputed.
func (r *Resolver) Resolve(ctx context.Context, poll models.Poll) (resolved models.Poll, justExpired bool, err error) {
	if poll.IsExpired {
		return poll, false, nil
	}

	now, err := r.store.Now(ctx)
	if err != nil {
		return poll, false, err
	}
	if poll.ExpiresAt >= now {
		return poll, false, nil
	}

	options, err := r.store.GetOptions(ctx, poll.ID, store.OrderByVotes)
	if err != nil {
		return poll, false, fmt.Errorf("failed to rank options: %w", err)
	}

	stored, err := r.store.MarkExpired(ctx, poll.ID, pickWinner(options))
	if err != nil {
		return poll, false, err
	}

	poll.IsExpired = true
	poll.WinnerOptionID = stored

	slog.Info("poll expired",
		"poll_id", poll.UniqueID,
		"winner_option_id", stored,
	)
	return poll, true, nil
}

// pickWinner takes options ranked by vote_count desc, id asc. A poll without
// votes has no winner.
func pickWinner(ranked []models.Option) *int64 {
	if len(ranked) == 0 || ranked[0].VoteCount == 0 {
		return nil
	}
	id := ranked[0].ID
	return &id
}

// Projection is the result view of a poll
type Projection struct {
	// Options is every option in id order while active, and only the winner
	// (at 100%) once expired.
	Options []models.OptionResult
	// AllOptions is the full ranking of an expired poll
	AllOptions []models.OptionResult
	Winner     *models.OptionResult
	TotalVotes int
}

// Project builds the result view for a resolved poll
func (r *Resolver) Project(ctx context.Context, poll models.Poll) (Projection, error) {
	if !poll.IsExpired {
		options, err := r.store.GetOptions(ctx, poll.ID, store.OrderByID)
		if err != nil {
			return Projection{}, fmt.Errorf("failed to load options: %w", err)
		}
		return projectActive(options), nil
	}

	ranked, err := r.store.GetOptions(ctx, poll.ID, store.OrderByVotes)
	if err != nil {
		return Projection{}, fmt.Errorf("failed to rank options: %w", err)
	}
	return projectExpired(ranked, poll.WinnerOptionID), nil
}

func projectActive(options []models.Option) Projection {
	total := totalVotes(options)
	p := Projection{
		Options:    withPercentages(options, total),
		TotalVotes: total,
	}

	if total > 0 {
		best := 0
		for i, o := range p.Options {
			if o.VoteCount > p.Options[best].VoteCount {
				best = i
			}
		}
		w := p.Options[best]
		p.Winner = &w
	}
	return p
}

func projectExpired(ranked []models.Option, winnerID *int64) Projection {
	p := Projection{
		Options:    []models.OptionResult{},
		AllOptions: withPercentages(ranked, totalVotes(ranked)),
	}
	if winnerID == nil {
		return p
	}

	for _, o := range p.AllOptions {
		if o.ID == *winnerID {
			o.Percentage = 100
			p.Options = []models.OptionResult{o}
			p.Winner = &o
			p.TotalVotes = o.VoteCount
			break
		}
	}
	return p
}

func totalVotes(options []models.Option) int {
	total := 0
	for _, o := range options {
		total += o.VoteCount
	}
	return total
}

func withPercentages(options []models.Option, total int) []models.OptionResult {
	results := make([]models.OptionResult, 0, len(options))
	for _, o := range options {
		results = append(results, models.OptionResult{
			ID:         o.ID,
			Text:       o.Text,
			ImagePath:  o.ImagePath,
			VoteCount:  o.VoteCount,
			Percentage: percentage(o.VoteCount, total),
		})
	}
	return results
}

// percentage rounds to one decimal place; 0 when there are no votes
func percentage(votes, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(votes)/float64(total)*1000) / 10
}
