package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mixmaster/backend/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const sessionColumns = `id, user_id, device_id, device_name, device_type, refresh_token_hash, created_at, last_seen_at`

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// GetByRefreshTokenHash returns the session holding the given refresh token
// hash, or nil if no session holds it (revoked, rotated away, or never issued).
func (r *PostgresRepository) GetByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = $1`, hash)
	return scanSession(row)
}

// ListByUser returns all sessions for the given user, oldest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSessionRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpsertByDevice inserts the session or, when a session already exists for
// (user_id, device_id), replaces its refresh token hash and metadata in place.
// The previous refresh token for that device is thereby revoked.
func (r *PostgresRepository) UpsertByDevice(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, device_id, device_name, device_type, refresh_token_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			device_name        = EXCLUDED.device_name,
			device_type        = EXCLUDED.device_type,
			refresh_token_hash = EXCLUDED.refresh_token_hash,
			created_at         = EXCLUDED.created_at,
			last_seen_at       = NULL`,
		s.ID, s.UserID, s.DeviceID, s.DeviceName, s.DeviceType,
		s.RefreshTokenHash, s.CreatedAt,
	)
	return err
}

// RotateRefreshToken replaces the session's refresh token hash in place and
// records the rotation time, preserving device metadata.
func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, sessionID, newHash string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET refresh_token_hash = $2, last_seen_at = $3 WHERE id = $1`,
		sessionID, newHash, at,
	)
	return err
}

// DeleteByDevice removes the user's session for the device. Returns false when
// no such session existed.
func (r *PostgresRepository) DeleteByDevice(ctx context.Context, userID, deviceID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1 AND device_id = $2`, userID, deviceID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAllByUser clears the user's session registry (logout-all, account
// deletion, or refresh-token replay containment).
func (r *PostgresRepository) DeleteAllByUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	s, err := scanSessionFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func scanSessionRows(rows *sql.Rows) (*domain.Session, error) {
	return scanSessionFrom(rows)
}

func scanSessionFrom(sc rowScanner) (*domain.Session, error) {
	var (
		s        domain.Session
		lastSeen sql.NullTime
	)
	err := sc.Scan(&s.ID, &s.UserID, &s.DeviceID, &s.DeviceName, &s.DeviceType,
		&s.RefreshTokenHash, &s.CreatedAt, &lastSeen)
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		s.LastSeenAt = &lastSeen.Time
	}
	return &s, nil
}
