// Package jsonfile persists boatpub state in JSON files written atomically.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hay-kot/boatpub/internal/core/runlog"
)

// runsFile is the root JSON structure stored on disk.
type runsFile struct {
	Runs []runlog.Entry `json:"runs"`
}

// RunStore implements runlog.Store using a JSON file for persistence.
type RunStore struct {
	path       string
	maxEntries int
	mu         sync.RWMutex
}

var _ runlog.Store = (*RunStore)(nil)

// NewRunStore creates a run store at path. maxEntries limits stored entries
// (0 means unlimited).
func NewRunStore(path string, maxEntries int) *RunStore {
	return &RunStore{path: path, maxEntries: maxEntries}
}

// List returns all entries, newest first.
func (s *RunStore) List(ctx context.Context) ([]runlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := s.load()
	if err != nil {
		return nil, err
	}
	return f.Runs, nil
}

// Get returns an entry by ID.
func (s *RunStore) Get(ctx context.Context, id string) (runlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := s.load()
	if err != nil {
		return runlog.Entry{}, err
	}

	for _, entry := range f.Runs {
		if entry.ID == id {
			return entry, nil
		}
	}
	return runlog.Entry{}, runlog.ErrNotFound
}

// Save prepends entry and prunes to maxEntries.
func (s *RunStore) Save(ctx context.Context, entry runlog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.load()
	if err != nil {
		return err
	}

	f.Runs = append([]runlog.Entry{entry}, f.Runs...)
	if s.maxEntries > 0 && len(f.Runs) > s.maxEntries {
		f.Runs = f.Runs[:s.maxEntries]
	}

	return s.save(f)
}

// Clear removes all entries.
func (s *RunStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.save(runsFile{Runs: []runlog.Entry{}})
}

// LastFailed returns the most recent failed entry.
func (s *RunStore) LastFailed(ctx context.Context) (runlog.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := s.load()
	if err != nil {
		return runlog.Entry{}, err
	}

	for _, entry := range f.Runs {
		if entry.Failed() {
			return entry, nil
		}
	}
	return runlog.Entry{}, runlog.ErrNotFound
}

// load returns an empty runsFile when the file does not exist yet.
func (s *RunStore) load() (runsFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return runsFile{}, nil
		}
		return runsFile{}, fmt.Errorf("read runs file: %w", err)
	}

	if len(data) == 0 {
		return runsFile{}, nil
	}

	var f runsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return runsFile{}, fmt.Errorf("runs file corrupted (run 'boatpub history --clear' to reset): %w", err)
	}
	return f, nil
}

func (s *RunStore) save(f runsFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal runs: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write runs temp file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename runs file: %w", err)
	}
	return nil
}
