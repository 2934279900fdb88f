// Package reconciler periodically removes storage that no longer affects
// authorization decisions: revoked sessions past their audit retention, live
// sessions far past their absolute expiry, and blacklist entries for tokens
// that have expired on their own.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

// ErrSweepInProgress is returned when a sweep is requested while another one
// is still running.
var ErrSweepInProgress = errors.New("sweep already in progress")

// SessionStore is the slice of the session repository the reconciler needs.
type SessionStore interface {
	DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteAbsoluteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// BlacklistStore purges expired revocation entries.
type BlacklistStore interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Pruner drops expired state from an in-memory structure. Optional; used for
// the login rate limiter.
type Pruner interface {
	Prune(now time.Time) int
}

// Result reports what one sweep removed.
type Result struct {
	SessionsPurged  int64
	BlacklistPurged int64
}

// Reconciler owns the cleanup sweep. Only one sweep runs at a time; a
// trigger while one is in flight is refused rather than queued.
type Reconciler struct {
	sessions  SessionStore
	blacklist BlacklistStore
	limiter   Pruner
	retention time.Duration
	grace     time.Duration
	running   atomic.Bool
	now       func() time.Time
	observe   func(Result)
}

// New returns a Reconciler. Revoked sessions are kept for retention after
// revocation so recent security events can be investigated; unrevoked
// sessions are deleted once they are grace past their absolute expiry, which
// keeps any still-valid access token from outliving its session row. limiter
// may be nil.
func New(sessions SessionStore, bl BlacklistStore, limiter Pruner, retention, grace time.Duration) *Reconciler {
	return &Reconciler{
		sessions:  sessions,
		blacklist: bl,
		limiter:   limiter,
		retention: retention,
		grace:     grace,
		now:       time.Now,
	}
}

// Observe registers a callback invoked with every sweep's result, for
// metrics. Must be set before Run starts.
func (r *Reconciler) Observe(fn func(Result)) {
	r.observe = fn
}

// Sweep runs one cleanup pass. The three categories are independent: a
// failure in one is reported but does not stop the others, and the result
// counts whatever was actually removed. Blacklist entries get no grace
// because their expiry already is the moment the token they block stops
// validating.
func (r *Reconciler) Sweep(ctx context.Context) (Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Result{}, ErrSweepInProgress
	}
	defer r.running.Store(false)

	now := r.now().UTC()
	var (
		res  Result
		errs []error
	)

	n, err := r.sessions.DeleteRevokedBefore(ctx, now.Add(-r.retention))
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to purge revoked sessions: %w", err))
	}
	res.SessionsPurged += n

	n, err = r.sessions.DeleteAbsoluteExpiredBefore(ctx, now.Add(-r.grace))
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to purge expired sessions: %w", err))
	}
	res.SessionsPurged += n

	n, err = r.blacklist.PurgeExpired(ctx, now)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to purge blacklist: %w", err))
	}
	res.BlacklistPurged = n

	if r.limiter != nil {
		r.limiter.Prune(now)
	}

	if r.observe != nil {
		r.observe(res)
	}
	return res, errors.Join(errs...)
}

// Run sweeps on the given interval until ctx is cancelled. Errors are logged;
// the loop never stops on failure.
func (r *Reconciler) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := r.Sweep(ctx)
			if err != nil && !errors.Is(err, ErrSweepInProgress) {
				log.Printf("reconciler: sweep failed: %v", err)
			}
			if res.SessionsPurged > 0 || res.BlacklistPurged > 0 {
				log.Printf("reconciler: purged %d sessions, %d blacklist entries", res.SessionsPurged, res.BlacklistPurged)
			}
		}
	}
}
