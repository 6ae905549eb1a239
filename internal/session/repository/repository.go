package repository

import (
	"context"
	"time"

	"mixmaster/backend/internal/session/domain"
)

// Repository defines persistence for the session registry. Refresh tokens are
// stored hashed; lookups are by hash. Revocation is deletion: a refresh token
// not present in the registry is invalid regardless of its signature.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	// UpsertByDevice inserts the session, or replaces the refresh token hash and
	// device metadata in place when the user already has a session for the device.
	UpsertByDevice(ctx context.Context, s *domain.Session) error
	// RotateRefreshToken replaces the session's refresh token hash in place,
	// preserving device metadata, and records last-seen time.
	RotateRefreshToken(ctx context.Context, sessionID, newHash string, at time.Time) error
	// DeleteByDevice removes the user's session for the device. Returns false
	// when no such session existed.
	DeleteByDevice(ctx context.Context, userID, deviceID string) (bool, error)
	DeleteAllByUser(ctx context.Context, userID string) error
}
