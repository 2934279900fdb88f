package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	l := New(3, time.Minute)
	key := LoginKey("ada@example.com", "203.0.113.7")

	for i := 1; i <= 3; i++ {
		if !l.Allow(key) {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}
	if l.Allow(key) {
		t.Errorf("attempt 4 should be blocked")
	}
	if l.Allow(key) {
		t.Errorf("attempt 5 should stay blocked within the window")
	}
}

func TestLimiter_WindowRollover(t *testing.T) {
	l := New(2, time.Minute)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	current := base
	l.now = func() time.Time { return current }
	key := LoginKey("ada@example.com", "203.0.113.7")

	l.Allow(key)
	l.Allow(key)
	if l.Allow(key) {
		t.Fatalf("expected third attempt blocked")
	}

	current = base.Add(time.Minute)
	if !l.Allow(key) {
		t.Errorf("expected a fresh window after rollover")
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)

	if !l.Allow(LoginKey("ada@example.com", "203.0.113.7")) {
		t.Fatalf("first key should be allowed")
	}
	if l.Allow(LoginKey("ada@example.com", "203.0.113.7")) {
		t.Fatalf("first key should now be blocked")
	}
	if !l.Allow(LoginKey("ada@example.com", "198.51.100.9")) {
		t.Errorf("same credential from another address should be unaffected")
	}
	if !l.Allow(LoginKey("grace@example.com", "203.0.113.7")) {
		t.Errorf("another credential from the same address should be unaffected")
	}
}

func TestLimiter_Prune(t *testing.T) {
	l := New(3, time.Minute)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	current := base
	l.now = func() time.Time { return current }

	l.Allow("stale")
	current = base.Add(30 * time.Second)
	l.Allow("fresh")

	pruned := l.Prune(base.Add(70 * time.Second))
	if pruned != 1 {
		t.Errorf("expected 1 pruned window, got %d", pruned)
	}
	if len(l.counts) != 1 {
		t.Errorf("expected 1 remaining window, got %d", len(l.counts))
	}
}
