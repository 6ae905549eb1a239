package domain

import "time"

// Session pairs a device identifier with the current refresh token for that
// device. A user has at most one session per device id: logging in again from
// the same device replaces the session in place rather than appending.
type Session struct {
	ID               string
	UserID           string
	DeviceID         string // client-supplied stable identifier
	DeviceName       string
	DeviceType       string
	RefreshTokenHash string // SHA-256 hash of the current refresh token
	CreatedAt        time.Time
	LastSeenAt       *time.Time // nil until the session is first refreshed
}
