package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/snipmux/snipmux/internal/aggregate"
	"github.com/snipmux/snipmux/internal/status"
	"github.com/snipmux/snipmux/internal/versions"
)

const (
	// SnapshotFileName is the published table file inside the data directory
	SnapshotFileName = "snippets.json"

	// StatusFileName is the cycle report file inside the data directory
	StatusFileName = "status.json"

	// lockFileName guards snapshot reads and writes across processes
	lockFileName = ".snipmux.lock"

	// lockRetryDelay is how often a blocked lock attempt retries
	lockRetryDelay = 100 * time.Millisecond
)

// Snapshot is the on-disk form of a published table.
type Snapshot struct {
	// Version is the binary version that wrote the snapshot
	Version string `json:"version"`

	// GeneratedAt is when the snapshot was written
	GeneratedAt time.Time `json:"generatedAt"`

	// Table is the aggregated snippet table
	Table *aggregate.Table `json:"table"`
}

// StatusSnapshot is the on-disk form of the last cycle report.
type StatusSnapshot struct {
	// Version is the binary version that wrote the snapshot
	Version string `json:"version"`

	// GeneratedAt is when the snapshot was written
	GeneratedAt time.Time `json:"generatedAt"`

	// Report is the report of the cycle that produced the snapshot
	Report *status.CycleReport `json:"report"`
}

// SnapshotStore persists the published state so other processes (the
// status CLI in particular) can read it without talking to the daemon.
type SnapshotStore interface {
	// Write persists the table and report atomically
	Write(ctx context.Context, table *aggregate.Table, report *status.CycleReport) error

	// ReadTable loads the persisted table
	ReadTable(ctx context.Context) (*Snapshot, error)

	// ReadStatus loads the persisted cycle report
	ReadStatus(ctx context.Context) (*StatusSnapshot, error)
}

// SnapshotOption configures a file snapshot store.
type SnapshotOption func(*fileSnapshotStore)

// WithSnapshotVersion overrides the version stamped into snapshots.
func WithSnapshotVersion(version string) SnapshotOption {
	return func(s *fileSnapshotStore) {
		s.version = version
	}
}

// fileSnapshotStore implements SnapshotStore on a local directory. Writes
// go through a temporary file and an atomic rename; a file lock keeps
// concurrent processes from observing half-written pairs.
type fileSnapshotStore struct {
	dir     string
	version string
}

var _ SnapshotStore = (*fileSnapshotStore)(nil)

// NewFileSnapshotStore creates a SnapshotStore rooted at dir.
func NewFileSnapshotStore(dir string, opts ...SnapshotOption) SnapshotStore {
	s := &fileSnapshotStore{
		dir:     dir,
		version: versions.Version,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write implements SnapshotStore.
func (s *fileSnapshotStore) Write(ctx context.Context, table *aggregate.Table, report *status.CycleReport) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", s.dir, err)
	}

	lock := flock.New(filepath.Join(s.dir, lockFileName))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock data directory: %w", err)
	}
	if !locked {
		return fmt.Errorf("data directory %s is locked by another process", s.dir)
	}
	defer func() { _ = lock.Unlock() }()

	now := time.Now().UTC()
	if err := writeJSONFile(filepath.Join(s.dir, SnapshotFileName), Snapshot{
		Version:     s.version,
		GeneratedAt: now,
		Table:       table,
	}); err != nil {
		return err
	}

	return writeJSONFile(filepath.Join(s.dir, StatusFileName), StatusSnapshot{
		Version:     s.version,
		GeneratedAt: now,
		Report:      report,
	})
}

// ReadTable implements SnapshotStore.
func (s *fileSnapshotStore) ReadTable(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if err := s.readJSONFile(ctx, SnapshotFileName, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ReadStatus implements SnapshotStore.
func (s *fileSnapshotStore) ReadStatus(ctx context.Context) (*StatusSnapshot, error) {
	var snap StatusSnapshot
	if err := s.readJSONFile(ctx, StatusFileName, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *fileSnapshotStore) readJSONFile(ctx context.Context, name string, v any) error {
	lock := flock.New(filepath.Join(s.dir, lockFileName))
	locked, err := lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock data directory: %w", err)
	}
	if !locked {
		return fmt.Errorf("data directory %s is locked by another process", s.dir)
	}
	defer func() { _ = lock.Unlock() }()

	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no snapshot published in %s yet: %w", s.dir, err)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// writeJSONFile writes v through a temporary file and an atomic rename.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temporary file %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
