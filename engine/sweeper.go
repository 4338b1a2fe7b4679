// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/quickpoll/blob"
	"github.com/danielhkuo/quickpoll/models"
	"github.com/danielhkuo/quickpoll/store"
)

// Sweeper expires polls nobody has looked at and purges old expired polls
type Sweeper struct {
	store     *store.Store
	resolver  *Resolver
	images    *blob.Store
	retention time.Duration
}

func NewSweeper(st *store.Store, resolver *Resolver, images *blob.Store, retention time.Duration) *Sweeper {
	return &Sweeper{store: st, resolver: resolver, images: images, retention: retention}
}

// SweepResult counts what one sweep changed
type SweepResult struct {
	Expired int
	Deleted int
	// Failed polls are logged and left for the next sweep
	Failed int
}

// RunOnce flips and freezes every expired but unflagged poll, then deletes
// polls that expired more than the retention window ago along with their
// images.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	stale, err := s.store.ExpiredUnflagged(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to find expired polls: %w", err)
	}
	res.Expired, res.Failed = s.expireAll(ctx, stale)

	ids, err := s.store.PurgeCandidates(ctx, s.retention)
	if err != nil {
		return res, fmt.Errorf("failed to find polls to purge: %w", err)
	}
	for _, id := range ids {
		images, err := s.store.DeletePoll(ctx, id)
		if err != nil {
			slog.Error("failed to delete poll", "id", id, "error", err)
			res.Failed++
			continue
		}
		res.Deleted++

		// Rows are gone; a leftover file is only wasted space
		for _, path := range images {
			if err := s.images.Delete(path); err != nil {
				slog.Error("failed to delete image", "path", path, "error", err)
			}
		}
	}

	return res, nil
}

func (s *Sweeper) expireAll(ctx context.Context, polls []models.Poll) (expired, failed int) {
	for _, poll := range polls {
		_, justExpired, err := s.resolver.Resolve(ctx, poll)
		if err != nil {
			slog.Error("failed to expire poll", "poll_id", poll.UniqueID, "error", err)
			failed++
			continue
		}
		if justExpired {
			expired++
		}
	}
	return expired, failed
}

// Run sweeps every interval until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				slog.Error("sweep failed", "error", err)
				continue
			}
			slog.Info("sweep complete",
				"expired", res.Expired,
				"deleted", res.Deleted,
				"failed", res.Failed,
			)
		}
	}
}
