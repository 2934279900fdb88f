package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSessionStore struct {
	mu                sync.Mutex
	revokedCutoff     time.Time
	expiredCutoff     time.Time
	revokedCount      int64
	expiredCount      int64
	revokedErr        error
	expiredErr        error
	blockRevoked      chan struct{}
	revokedInProgress chan struct{}
}

func (s *fakeSessionStore) DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.revokedInProgress != nil {
		close(s.revokedInProgress)
	}
	if s.blockRevoked != nil {
		<-s.blockRevoked
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokedCutoff = cutoff
	return s.revokedCount, s.revokedErr
}

func (s *fakeSessionStore) DeleteAbsoluteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiredCutoff = cutoff
	return s.expiredCount, s.expiredErr
}

type fakeBlacklistStore struct {
	mu     sync.Mutex
	cutoff time.Time
	count  int64
	err    error
}

func (b *fakeBlacklistStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cutoff = now
	return b.count, b.err
}

type fakePruner struct {
	mu    sync.Mutex
	calls int
}

func (p *fakePruner) Prune(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return 0
}

func TestReconciler_SweepCutoffs(t *testing.T) {
	sessions := &fakeSessionStore{revokedCount: 4, expiredCount: 2}
	bl := &fakeBlacklistStore{count: 7}
	r := New(sessions, bl, nil, 24*time.Hour, time.Hour)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	res, err := r.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if res.SessionsPurged != 6 {
		t.Errorf("SessionsPurged = %d, want 6", res.SessionsPurged)
	}
	if res.BlacklistPurged != 7 {
		t.Errorf("BlacklistPurged = %d, want 7", res.BlacklistPurged)
	}

	if want := now.Add(-24 * time.Hour); !sessions.revokedCutoff.Equal(want) {
		t.Errorf("revoked cutoff = %v, want retention before now (%v)", sessions.revokedCutoff, want)
	}
	if want := now.Add(-time.Hour); !sessions.expiredCutoff.Equal(want) {
		t.Errorf("expired cutoff = %v, want grace before now (%v)", sessions.expiredCutoff, want)
	}
	// Blacklist entries carry their own expiry; no grace is applied.
	if !bl.cutoff.Equal(now) {
		t.Errorf("blacklist cutoff = %v, want now (%v)", bl.cutoff, now)
	}
}

func TestReconciler_PartialFailureIsolation(t *testing.T) {
	sessions := &fakeSessionStore{
		revokedErr:   errors.New("lock timeout"),
		expiredCount: 3,
	}
	bl := &fakeBlacklistStore{count: 5}
	r := New(sessions, bl, nil, 24*time.Hour, time.Hour)

	res, err := r.Sweep(context.Background())
	if err == nil {
		t.Fatalf("expected the failed category to surface an error")
	}
	if res.SessionsPurged != 3 {
		t.Errorf("expected the expired-session category to still run, got %d", res.SessionsPurged)
	}
	if res.BlacklistPurged != 5 {
		t.Errorf("expected the blacklist category to still run, got %d", res.BlacklistPurged)
	}
}

func TestReconciler_SingleFlight(t *testing.T) {
	sessions := &fakeSessionStore{
		blockRevoked:      make(chan struct{}),
		revokedInProgress: make(chan struct{}),
	}
	bl := &fakeBlacklistStore{}
	r := New(sessions, bl, nil, 24*time.Hour, time.Hour)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := r.Sweep(context.Background()); err != nil {
			t.Errorf("first Sweep returned error: %v", err)
		}
	}()

	<-sessions.revokedInProgress
	if _, err := r.Sweep(context.Background()); !errors.Is(err, ErrSweepInProgress) {
		t.Errorf("expected ErrSweepInProgress for the overlapping sweep, got %v", err)
	}

	close(sessions.blockRevoked)
	<-done

	// Once the first sweep finishes, new sweeps run again.
	sessions.blockRevoked = nil
	sessions.revokedInProgress = nil
	if _, err := r.Sweep(context.Background()); err != nil {
		t.Errorf("follow-up Sweep returned error: %v", err)
	}
}

func TestReconciler_PrunesLimiter(t *testing.T) {
	sessions := &fakeSessionStore{}
	bl := &fakeBlacklistStore{}
	pruner := &fakePruner{}
	r := New(sessions, bl, pruner, 24*time.Hour, time.Hour)

	if _, err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep returned error: %v", err)
	}
	if pruner.calls != 1 {
		t.Errorf("expected the limiter to be pruned once per sweep, got %d", pruner.calls)
	}
}

func TestReconciler_ObserverSeesResult(t *testing.T) {
	sessions := &fakeSessionStore{revokedCount: 2, expiredCount: 1}
	bl := &fakeBlacklistStore{count: 4}
	r := New(sessions, bl, nil, 24*time.Hour, time.Hour)

	var got []Result
	r.Observe(func(res Result) { got = append(got, res) })

	if _, err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("observer called %d times, want 1", len(got))
	}
	if got[0].SessionsPurged != 3 || got[0].BlacklistPurged != 4 {
		t.Errorf("observed %+v, want 3 sessions and 4 blacklist", got[0])
	}
}
