package repository

import (
	"context"

	"mixmaster/backend/internal/user/domain"
)

// Repository defines persistence for users.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	SetVerified(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
