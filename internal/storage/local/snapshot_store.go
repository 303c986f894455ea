// Package local persists the latest snapshot as a JSON file.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
)

// Config captures the parameters for the snapshot file store.
type Config struct {
	// Path is the snapshot file location.
	Path string `mapstructure:"snapshot_path" yaml:"snapshot_path"`
}

// SnapshotStore reads and atomically replaces a single snapshot file.
type SnapshotStore struct {
	fs   afero.Fs
	path string
	mu   sync.RWMutex
}

// New creates a store on the OS filesystem.
func New(cfg Config) (*SnapshotStore, error) {
	return NewWithFs(afero.NewOsFs(), cfg)
}

// NewWithFs creates a store on an arbitrary afero filesystem.
func NewWithFs(fs afero.Fs, cfg Config) (*SnapshotStore, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("snapshot path is required")
	}
	dir := filepath.Dir(path)
	info, err := fs.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if mkErr := fs.MkdirAll(dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat snapshot directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("snapshot directory %s is not a directory", dir)
	}
	return &SnapshotStore{fs: fs, path: path}, nil
}

// Path returns the snapshot file location.
func (s *SnapshotStore) Path() string {
	return s.path
}

// Save writes the snapshot to a temp file in the same directory and renames it
// over the previous one, so readers never observe a torn file.
func (s *SnapshotStore) Save(_ context.Context, snapshot catalog.Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return &catalog.PersistenceError{Path: s.path, Err: fmt.Errorf("encode: %w", err)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o750); err != nil {
		return &catalog.PersistenceError{Path: s.path, Err: err}
	}
	tmp, err := afero.TempFile(s.fs, dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return &catalog.PersistenceError{Path: s.path, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return &catalog.PersistenceError{Path: s.path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return &catalog.PersistenceError{Path: s.path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return &catalog.PersistenceError{Path: s.path, Err: err}
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		_ = s.fs.Remove(tmpName)
		return &catalog.PersistenceError{Path: s.path, Err: err}
	}
	return nil
}

// Load reads the latest snapshot. A missing file yields catalog.ErrNoSnapshot.
func (s *SnapshotStore) Load(_ context.Context) (catalog.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return catalog.Snapshot{}, catalog.ErrNoSnapshot
	}
	if err != nil {
		return catalog.Snapshot{}, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	var snap catalog.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return catalog.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}
	return snap, nil
}

// Clear removes the snapshot. Clearing an empty store is not an error.
func (s *SnapshotStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove snapshot %s: %w", s.path, err)
	}
	return nil
}

// Status summarizes the stored snapshot without returning its records.
func (s *SnapshotStore) Status(ctx context.Context) (catalog.Status, error) {
	snap, err := s.Load(ctx)
	if errors.Is(err, catalog.ErrNoSnapshot) {
		return catalog.Status{}, nil
	}
	if err != nil {
		return catalog.Status{}, err
	}
	return catalog.StatusOf(snap), nil
}
