// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielhkuo/quickpoll/models"
	"github.com/danielhkuo/quickpoll/testutil"
)

func TestSweeper_RunOnce(t *testing.T) {
	env := setupEngine(t)
	ctx := context.Background()
	sweeper := NewSweeper(env.store, env.engine.Resolver(), env.images, env.cfg.Retention)

	active := testutil.CreateTestPoll(t, env.dbx, "Active", "", "A", "B")

	recent := testutil.CreateTestPoll(t, env.dbx, "Recent", "", "A", "B")
	testutil.AddTestVotes(t, env.dbx, recent.ID, recent.OptionIDs[1], 2)
	testutil.ExpireTestPoll(t, env.dbx, recent.ID, time.Minute)

	old := testutil.CreateTestPoll(t, env.dbx, "Old", "", "A", "B")
	testutil.ExpireTestPoll(t, env.dbx, old.ID, 8*24*time.Hour)
	imageFile := filepath.Join(env.cfg.UploadDir, "old.png")
	if err := os.WriteFile(imageFile, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	env.dbx.MustExec(`UPDATE poll_options SET image_path = 'uploads/old.png' WHERE id = $1`, old.OptionIDs[0])

	res, err := sweeper.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if res.Expired != 2 || res.Deleted != 1 || res.Failed != 0 {
		t.Errorf("Expected 2 expired and 1 deleted, got %+v", res)
	}

	stored, err := env.store.GetPollByUniqueID(ctx, recent.UniqueID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.IsExpired || stored.WinnerOptionID == nil || *stored.WinnerOptionID != recent.OptionIDs[1] {
		t.Errorf("Expected recent poll frozen with winner %d, got %+v", recent.OptionIDs[1], stored)
	}

	stored, _ = env.store.GetPollByUniqueID(ctx, active.UniqueID)
	if stored.IsExpired {
		t.Error("Active poll should not be touched")
	}

	if _, err := env.store.GetPollByUniqueID(ctx, old.UniqueID); err == nil {
		t.Error("Expected old poll to be purged")
	}
	var orphans int
	env.dbx.Get(&orphans, `SELECT COUNT(*) FROM poll_options WHERE poll_id = $1`, old.ID)
	if orphans != 0 {
		t.Errorf("Expected options of the purged poll to be gone, got %d", orphans)
	}
	if _, err := os.Stat(imageFile); !os.IsNotExist(err) {
		t.Error("Expected image file of the purged poll to be removed")
	}

	// A second sweep has nothing left to do
	res, err = sweeper.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Expired != 0 || res.Deleted != 0 {
		t.Errorf("Expected an idle sweep, got %+v", res)
	}
}

func TestSweeper_ExpireContinuesPastFailures(t *testing.T) {
	env := setupEngine(t)
	ctx := context.Background()
	sweeper := NewSweeper(env.store, env.engine.Resolver(), env.images, env.cfg.Retention)

	p := testutil.CreateTestPoll(t, env.dbx, "Survivor", "", "A", "B")
	testutil.AddTestVotes(t, env.dbx, p.ID, p.OptionIDs[0], 1)
	testutil.ExpireTestPoll(t, env.dbx, p.ID, time.Minute)

	stale, err := env.store.ExpiredUnflagged(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// A row deleted after it was listed cannot be flagged
	gone := models.Poll{ID: 999999, UniqueID: "gone0000", ExpiresAt: 1}
	expired, failed := sweeper.expireAll(ctx, append([]models.Poll{gone}, stale...))

	if expired != 1 || failed != 1 {
		t.Errorf("Expected 1 expired and 1 failed, got %d and %d", expired, failed)
	}
	stored, err := env.store.GetPollByUniqueID(ctx, p.UniqueID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.IsExpired || stored.WinnerOptionID == nil || *stored.WinnerOptionID != p.OptionIDs[0] {
		t.Errorf("Expected poll after the failure to be frozen, got %+v", stored)
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	env := setupEngine(t)
	sweeper := NewSweeper(env.store, env.engine.Resolver(), env.images, env.cfg.Retention)

	p := testutil.CreateTestPoll(t, env.dbx, "Tick", "", "A", "B")
	testutil.ExpireTestPoll(t, env.dbx, p.ID, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		stored, err := env.store.GetPollByUniqueID(context.Background(), p.UniqueID)
		if err == nil && stored.IsExpired {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Sweeper never expired the poll")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
