package runlog

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a run entry is not found.
var ErrNotFound = errors.New("run entry not found")

// Store defines persistence operations for run history.
type Store interface {
	// List returns all entries, newest first.
	List(ctx context.Context) ([]Entry, error)
	// Get returns an entry by ID. Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (Entry, error)
	// Save adds a new entry, pruning the oldest if the count exceeds the configured maximum.
	Save(ctx context.Context, entry Entry) error
	// Clear removes all entries.
	Clear(ctx context.Context) error
	// LastFailed returns the most recent failed entry. Returns ErrNotFound if none.
	LastFailed(ctx context.Context) (Entry, error)
}
