package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"property-platform/access-core/internal/audit/domain"
)

type captureRepo struct {
	entries   []*domain.AuditLog
	createErr error
}

func (r *captureRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *captureRepo) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error) {
	return nil, nil
}

func TestLogger_RecordsEntry(t *testing.T) {
	repo := &captureRepo{}
	l := NewLogger(repo, func(context.Context) string { return "203.0.113.7" })
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	l.now = func() time.Time { return at }

	l.LogEvent(context.Background(), "user-1", "login", "session:sess-1", `{"device_class":"web"}`)

	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(repo.entries))
	}
	e := repo.entries[0]
	if e.UserID != "user-1" || e.Action != "login" || e.Target != "session:sess-1" {
		t.Errorf("entry = %+v", e)
	}
	if e.IP != "203.0.113.7" {
		t.Errorf("ip = %q, want the extracted address", e.IP)
	}
	if e.Metadata != `{"device_class":"web"}` {
		t.Errorf("metadata = %q", e.Metadata)
	}
	if e.ID == "" {
		t.Error("entry should be assigned an ID")
	}
	if !e.CreatedAt.Equal(at) {
		t.Errorf("created at = %v, want %v", e.CreatedAt, at)
	}
}

func TestLogger_NoIPExtractor(t *testing.T) {
	repo := &captureRepo{}
	l := NewLogger(repo, nil)

	l.LogEvent(context.Background(), "user-1", "logout", "session:sess-1", "")

	if len(repo.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(repo.entries))
	}
	if repo.entries[0].IP != "unknown" {
		t.Errorf("ip = %q, want unknown", repo.entries[0].IP)
	}
}

func TestLogger_SwallowsRepositoryError(t *testing.T) {
	repo := &captureRepo{createErr: errors.New("relation does not exist")}
	l := NewLogger(repo, nil)

	// Best-effort: the caller never sees persistence failures.
	l.LogEvent(context.Background(), "user-1", "login_failure", "user:user-1", "")
}

func TestLogger_NilRepoIsNoop(t *testing.T) {
	l := NewLogger(nil, nil)
	l.LogEvent(context.Background(), "user-1", "login", "user:user-1", "")
}
