package repository

import (
	"context"

	"task-tracker/internal/domain"
)

// UserRepository defines persistence operations for User entities.
// Email is the unique key; the store enforces it.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}
