package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry is a resolved display name together with the time it was stored.
type Entry struct {
	Name      string
	UpdatedAt time.Time
}

// Store caches display names keyed by open_id. A background goroutine (Run)
// periodically evicts entries that have not been refreshed within the TTL.
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

// TTL returns the configured time-to-live.
func (s *Store) TTL() time.Duration { return s.ttl }

// Put stores or replaces the name for openID.
func (s *Store) Put(openID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[openID] = &Entry{
		Name:      name,
		UpdatedAt: s.now(),
	}
}

// Get returns the cached name for openID. Entries older than the TTL are
// reported as missing even if they have not been evicted yet.
func (s *Store) Get(openID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[openID]
	if !ok || !e.UpdatedAt.After(s.now().Add(-s.ttl)) {
		return "", false
	}
	return e.Name, true
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

// Run starts the background TTL eviction loop. It ticks at half the TTL interval
// (minimum 1 second). Run blocks until ctx is cancelled.
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
				slog.Debug("store: evicted stale user names", "count", n)
			}
		}
	}
}
