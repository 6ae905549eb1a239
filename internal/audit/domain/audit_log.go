package domain

import "time"

// AuditLog is one persisted auth event (login, refresh, revocation).
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	IP        string
	Metadata  map[string]string
	CreatedAt time.Time
}
