// Package events emits auth events (logins, rotations, revocations) to Kafka.
// Emission is best-effort and never blocks or fails a request; cmd/worker
// consumes the topic into the audit log.
package events

import "time"

// Event types emitted by the auth service.
const (
	TypeUserRegistered    = "user.registered"
	TypeUserVerified      = "user.verified"
	TypeUserLogin         = "user.login"
	TypeUserLoginGoogle   = "user.login.google"
	TypeTokenRefreshed    = "token.refreshed"
	TypeSessionRevoked    = "session.revoked"
	TypeSessionsRevokeAll = "sessions.revoke_all"
	TypeRefreshReplay     = "refresh.replay_detected"
	TypeUserDeleted       = "user.deleted"
)

// Event is a single auth event. Metadata is free-form (device ids, reasons).
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	UserID    string            `json:"user_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
