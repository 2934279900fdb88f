package blacklist

import (
	"sync"
	"time"
)

// Store is the in-memory fingerprint set consulted on every guarded request.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// Put records a revoked fingerprint. Entries already past their expiry are
// dropped on the floor since the token they would block can no longer pass
// signature validation anyway.
func (s *Store) Put(e Entry) {
	if !e.ExpiresAt.After(s.now()) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Fingerprint] = e
}

// Contains reports whether fp belongs to a revoked token that has not yet
// expired on its own. Expired entries are skipped, not deleted; removal is
// the sweeper's job so the read path never takes the write lock.
func (s *Store) Contains(fp string) bool {
	s.mu.RLock()
	e, ok := s.entries[fp]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	return e.ExpiresAt.After(s.now())
}

// PurgeExpired removes entries whose underlying token has expired and returns
// how many were removed.
func (s *Store) PurgeExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for fp, e := range s.entries {
		if !e.ExpiresAt.After(now) {
			delete(s.entries, fp)
			purged++
		}
	}
	return purged
}

// Len returns the number of entries currently held, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
