package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mixmaster/backend/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, username, password_hash, picture, provider, is_verified, created_at, updated_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail returns the user for email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// Create persists the user to the database. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, username, password_hash, picture, provider, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.Username,
		sql.NullString{String: u.PasswordHash, Valid: u.PasswordHash != ""},
		sql.NullString{String: u.Picture, Valid: u.Picture != ""},
		string(u.Provider), u.IsVerified, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

// SetVerified marks the user as verified. Returns an error if the update fails.
func (r *PostgresRepository) SetVerified(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_verified = TRUE, updated_at = $2 WHERE id = $1`,
		id, time.Now().UTC(),
	)
	return err
}

// Delete removes the user row. Sessions are removed by the ON DELETE CASCADE
// constraint; callers that need the revoke-all audit trail delete sessions first.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u            domain.User
		passwordHash sql.NullString
		picture      sql.NullString
		provider     string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &passwordHash, &picture, &provider,
		&u.IsVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.PasswordHash = passwordHash.String
	u.Picture = picture.String
	u.Provider = domain.Provider(provider)
	return &u, nil
}
