package repository

import (
	"context"

	"task-tracker/internal/domain"
)

// TaskRepository exposes persistence operations for Task records. Every
// method that reads or mutates existing rows takes the owner email and
// applies it in the query predicate; a row owned by someone else yields
// ErrNotFound exactly like a missing one.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	ListByOwner(ctx context.Context, ownerEmail string) ([]domain.Task, error)
	GetForOwner(ctx context.Context, id, ownerEmail string) (*domain.Task, error)
	UpdateForOwner(ctx context.Context, id, ownerEmail string, patch domain.TaskPatch) (*domain.Task, error)
	DeleteForOwner(ctx context.Context, id, ownerEmail string) error
}
