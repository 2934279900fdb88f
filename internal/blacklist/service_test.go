package blacklist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeRepository struct {
	mu         sync.Mutex
	entries    map[string]Entry
	insertErr  error
	listCalls  int
	purgeCalls int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{entries: make(map[string]Entry)}
}

func (r *fakeRepository) Insert(ctx context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	if _, ok := r.entries[e.Fingerprint]; ok {
		return nil
	}
	r.entries[e.Fingerprint] = e
	return nil
}

func (r *fakeRepository) ListLive(ctx context.Context, now time.Time) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	var out []Entry
	for _, e := range r.entries {
		if e.ExpiresAt.After(now) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeCalls++
	var n int64
	for fp, e := range r.entries {
		if !e.ExpiresAt.After(now) {
			delete(r.entries, fp)
			n++
		}
	}
	return n, nil
}

func TestService_AddPersistsAndServesFromMemory(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(NewStore(), repo)
	now := time.Now().UTC()

	err := svc.Add(context.Background(), Entry{
		Fingerprint: "fp-1",
		Class:       ClassAccess,
		UserID:      "user-1",
		SessionID:   "sess-1",
		Reason:      ReasonAdminRevoke,
		RevokedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	if !svc.Contains("fp-1") {
		t.Errorf("expected fingerprint to be rejected after Add")
	}
	if _, ok := repo.entries["fp-1"]; !ok {
		t.Errorf("expected fingerprint to be persisted")
	}
	if repo.listCalls != 0 {
		t.Errorf("expected Contains to stay off the database, got %d list calls", repo.listCalls)
	}
}

func TestService_AddRejectsLocallyWhenPersistFails(t *testing.T) {
	repo := newFakeRepository()
	repo.insertErr = errors.New("connection refused")
	svc := NewService(NewStore(), repo)
	now := time.Now().UTC()

	err := svc.Add(context.Background(), Entry{
		Fingerprint: "fp-1",
		Class:       ClassRefresh,
		Reason:      ReasonLogout,
		RevokedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	})
	if err == nil {
		t.Fatalf("expected persistence error to surface")
	}

	// The memory store is updated before the database write, so this node
	// keeps rejecting the token even though the insert failed.
	if !svc.Contains("fp-1") {
		t.Errorf("expected fingerprint to be rejected despite persistence failure")
	}
}

func TestService_WarmLoadsLiveEntries(t *testing.T) {
	repo := newFakeRepository()
	now := time.Now().UTC()
	repo.entries["live"] = Entry{Fingerprint: "live", ExpiresAt: now.Add(time.Hour)}
	repo.entries["dead"] = Entry{Fingerprint: "dead", ExpiresAt: now.Add(-time.Hour)}

	svc := NewService(NewStore(), repo)
	loaded, err := svc.Warm(context.Background())
	if err != nil {
		t.Fatalf("Warm returned error: %v", err)
	}
	if loaded != 1 {
		t.Errorf("expected 1 loaded entry, got %d", loaded)
	}
	if !svc.Contains("live") {
		t.Errorf("expected live entry to be served after warm-up")
	}
	if svc.Contains("dead") {
		t.Errorf("expected expired entry to stay out of the store")
	}
}

func TestService_PurgeExpired(t *testing.T) {
	repo := newFakeRepository()
	store := NewStore()
	svc := NewService(store, repo)
	now := time.Now().UTC()

	for _, e := range []Entry{
		{Fingerprint: "live", Class: ClassAccess, Reason: ReasonLogout, RevokedAt: now, ExpiresAt: now.Add(time.Hour)},
		{Fingerprint: "dead", Class: ClassAccess, Reason: ReasonLogout, RevokedAt: now, ExpiresAt: now.Add(time.Minute)},
	} {
		if err := svc.Add(context.Background(), e); err != nil {
			t.Fatalf("Add returned error: %v", err)
		}
	}

	purged, err := svc.PurgeExpired(context.Background(), now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("PurgeExpired returned error: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged row, got %d", purged)
	}
	if store.Len() != 1 {
		t.Errorf("expected memory store to shrink to 1 entry, got %d", store.Len())
	}
	if svc.Contains("dead") {
		t.Errorf("expected purged fingerprint to be forgotten")
	}
}
