package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/boatpub/internal/core/runlog"
	"github.com/hay-kot/boatpub/internal/publisher"
)

func entry(id string, rejected int) runlog.Entry {
	return runlog.Entry{
		ID:         id,
		ClientID:   "publish-1",
		Broker:     "localhost:1883",
		Topic:      "/boat/velocity",
		Requested:  500,
		Attempted:  500,
		Accepted:   500 - rejected,
		Rejected:   rejected,
		State:      publisher.StateStopped,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
}

func TestRunStore(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		store := NewRunStore(filepath.Join(t.TempDir(), "runs.json"), 0)

		runs, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(runs) != 0 {
			t.Errorf("got %d runs, want 0", len(runs))
		}
	})

	t.Run("save newest first", func(t *testing.T) {
		store := NewRunStore(filepath.Join(t.TempDir(), "runs.json"), 0)

		for _, id := range []string{"first", "second", "third"} {
			if err := store.Save(ctx, entry(id, 0)); err != nil {
				t.Fatalf("Save %s: %v", id, err)
			}
		}

		runs, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(runs) != 3 || runs[0].ID != "third" || runs[2].ID != "first" {
			t.Errorf("unexpected order: %+v", runs)
		}
	})

	t.Run("prunes to max entries", func(t *testing.T) {
		store := NewRunStore(filepath.Join(t.TempDir(), "runs.json"), 2)

		for _, id := range []string{"a", "b", "c"} {
			if err := store.Save(ctx, entry(id, 0)); err != nil {
				t.Fatalf("Save %s: %v", id, err)
			}
		}

		runs, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
			t.Errorf("got %+v, want [c b]", runs)
		}
	})

	t.Run("get", func(t *testing.T) {
		store := NewRunStore(filepath.Join(t.TempDir(), "runs.json"), 0)
		if err := store.Save(ctx, entry("abc123", 0)); err != nil {
			t.Fatalf("Save: %v", err)
		}

		got, err := store.Get(ctx, "abc123")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Topic != "/boat/velocity" || got.Accepted != 500 {
			t.Errorf("got %+v", got)
		}

		_, err = store.Get(ctx, "missing")
		if !errors.Is(err, runlog.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("last failed", func(t *testing.T) {
		store := NewRunStore(filepath.Join(t.TempDir(), "runs.json"), 0)

		if _, err := store.LastFailed(ctx); !errors.Is(err, runlog.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}

		failed := entry("broken", 0)
		failed.Attempted, failed.Accepted = 0, 0
		failed.Error = "connect localhost:1883: connection refused"

		for _, e := range []runlog.Entry{entry("old", 3), failed, entry("ok", 0)} {
			if err := store.Save(ctx, e); err != nil {
				t.Fatalf("Save: %v", err)
			}
		}

		got, err := store.LastFailed(ctx)
		if err != nil {
			t.Fatalf("LastFailed: %v", err)
		}
		if got.ID != "broken" {
			t.Errorf("got %s, want broken", got.ID)
		}
	})

	t.Run("clear", func(t *testing.T) {
		store := NewRunStore(filepath.Join(t.TempDir(), "runs.json"), 0)
		if err := store.Save(ctx, entry("x", 0)); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}

		runs, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(runs) != 0 {
			t.Errorf("got %d runs after clear, want 0", len(runs))
		}
	})

	t.Run("corrupted file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "runs.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}

		store := NewRunStore(path, 0)
		if _, err := store.List(ctx); err == nil {
			t.Error("expected error for corrupted file")
		}
	})
}
