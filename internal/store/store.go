package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hydrowatch/hydrowatch/internal/qc"
	"github.com/hydrowatch/hydrowatch/internal/series"
)

// Station pipeline states.
const (
	StateOK               = "ok"
	StateInsufficientData = "insufficient_data"
	StateFetchFailed      = "fetch_failed"
)

// StationStatus is the result of one complete pipeline run for a station.
// It is immutable once published; callers must not modify it after Put.
type StationStatus struct {
	StationID string
	Name      string
	Site      string

	// State is one of StateOK, StateInsufficientData, StateFetchFailed.
	State string

	// Series is the cleaned, grid-indexed discharge series.
	Series []series.CleanedSample

	// Summary holds the derived statistics. Valid when State == StateOK;
	// on StateInsufficientData only the counts are meaningful.
	Summary series.Summary

	// Report counts what the quality-control filter dropped or filled.
	Report qc.Report

	// Err carries the fetch error message when State == StateFetchFailed.
	Err string

	// FetchedAt is when the underlying readings were retrieved.
	FetchedAt time.Time
}

// Entry is a status together with the time it was last received.
type Entry struct {
	Status    *StationStatus
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory status store, keyed by station ID.
// A background goroutine (Run) periodically evicts entries that have not
// been updated within the configured TTL.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// TTL returns the store's configured entry lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Put stores or replaces the status for status.StationID.
func (s *Store) Put(status *StationStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[status.StationID] = &Entry{
		Status:    status,
		UpdatedAt: s.now(),
	}
}

// Get returns the Entry for the given station ID and a boolean indicating
// whether an entry was found. The entry may be stale if TTL has elapsed.
func (s *Store) Get(stationID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[stationID]
	return e, ok
}

// List returns all entries whose UpdatedAt is within the TTL.
// Stale entries that have not yet been evicted are excluded.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// interval (minimum 1 second) so entries are evicted promptly. Run blocks
// until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale station statuses", "count", n)
			}
		}
	}
}
