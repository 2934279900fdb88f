package blacklist

import (
	"context"
	"fmt"
	"time"
)

// Repository persists entries so the memory store survives restarts.
type Repository interface {
	Insert(ctx context.Context, e Entry) error
	ListLive(ctx context.Context, now time.Time) ([]Entry, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Service keeps the in-memory store and the persistent log in step. Lookups
// are answered from memory alone; the database is only touched on writes,
// warm-up, and sweeps.
type Service struct {
	store *Store
	repo  Repository
}

// NewService returns a blacklist service over store and repo.
func NewService(store *Store, repo Repository) *Service {
	return &Service{store: store, repo: repo}
}

// Add records a revoked fingerprint. The memory store is updated before the
// database write so this node starts rejecting the token even when
// persistence fails; the error is still returned for the caller to report.
func (s *Service) Add(ctx context.Context, e Entry) error {
	s.store.Put(e)
	if err := s.repo.Insert(ctx, e); err != nil {
		return fmt.Errorf("failed to persist revoked token: %w", err)
	}
	return nil
}

// Contains reports whether fp is revoked. It never touches the database.
func (s *Service) Contains(fp string) bool {
	return s.store.Contains(fp)
}

// Warm loads every live entry from the database into the memory store and
// returns how many were loaded. Called once at startup before the server
// accepts traffic.
func (s *Service) Warm(ctx context.Context) (int, error) {
	entries, err := s.repo.ListLive(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to warm token blacklist: %w", err)
	}
	for _, e := range entries {
		s.store.Put(e)
	}
	return len(entries), nil
}

// PurgeExpired drops entries whose token has expired, in memory and in the
// database. The returned count is the number of database rows removed.
func (s *Service) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.store.PurgeExpired(now)
	n, err := s.repo.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired revoked tokens: %w", err)
	}
	return n, nil
}
