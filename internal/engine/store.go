package engine

import (
	"sync"

	"github.com/snipmux/snipmux/internal/aggregate"
	"github.com/snipmux/snipmux/internal/status"
)

// Store holds the currently published state: the aggregated table, the
// per-source statuses, and the report of the cycle that produced them.
// The three are swapped as a unit, readers never observe a mix of two
// cycles.
type Store struct {
	mu       sync.RWMutex
	table    *aggregate.Table
	statuses []status.SourceStatus
	report   *status.CycleReport
}

// NewStore returns a store holding an empty table and no report.
func NewStore() *Store {
	return &Store{table: aggregate.NewTable()}
}

// Publish replaces the published state wholesale.
func (s *Store) Publish(table *aggregate.Table, statuses []status.SourceStatus, report *status.CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = table
	s.statuses = statuses
	s.report = report
}

// Table returns the current aggregated table. Callers must treat it as
// read-only, the next publish replaces rather than mutates it.
func (s *Store) Table() *aggregate.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// Statuses returns a copy of the current per-source statuses.
func (s *Store) Statuses() []status.SourceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]status.SourceStatus, len(s.statuses))
	copy(out, s.statuses)
	return out
}

// Report returns the report of the last completed cycle, nil before the
// first publish.
func (s *Store) Report() *status.CycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// Ready reports whether at least one cycle has published.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report != nil
}

// Clear resets the store to its initial empty state. Used on shutdown so
// nothing serves stale completions afterwards.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = aggregate.NewTable()
	s.statuses = nil
	s.report = nil
}
