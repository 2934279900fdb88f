package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"property-platform/access-core/internal/audit/domain"
	auditrepo "property-platform/access-core/internal/audit/repository"
)

// unknownIP is recorded when no client address can be resolved from the
// context (background jobs, tests).
const unknownIP = "unknown"

// IPExtractor resolves the client IP from a request context.
type IPExtractor func(context.Context) string

// AuditLogger records one security-relevant action. Implementations are
// best-effort: recording must never fail the operation being audited.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, target, metadata string)
}

// Logger persists audit entries through the audit repository.
type Logger struct {
	repo auditrepo.Repository
	ip   IPExtractor
	now  func() time.Time
}

// NewLogger builds a Logger. ipExtractor may be nil, in which case entries
// carry "unknown" as the address. A nil repo yields a no-op logger.
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ip: ipExtractor, now: time.Now}
}

// LogEvent writes one entry. Failures are logged and swallowed so a full or
// unreachable audit table never blocks a login or logout.
func (l *Logger) LogEvent(ctx context.Context, userID, action, target, metadata string) {
	if l.repo == nil {
		return
	}
	ip := unknownIP
	if l.ip != nil {
		ip = l.ip(ctx)
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Target:    target,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: l.now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: record %s on %s: %v", action, target, err)
	}
}
