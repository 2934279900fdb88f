package domain

import "time"

// AuditLog is one recorded security action: the acting user, what they did,
// the target it touched, and the address it came from. Metadata optionally
// holds a JSON blob with action-specific details.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Target    string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
