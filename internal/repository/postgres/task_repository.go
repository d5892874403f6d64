package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"task-tracker/internal/domain"
	"task-tracker/internal/repository"
)

const selectTaskColumns = `
SELECT id, title, description, due_date, category, status, priority, owner_email, created_at, updated_at
FROM tasks`

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

var _ repository.TaskRepository = (*TaskRepository)(nil)

func (r *TaskRepository) Create(ctx context.Context, task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	task.DueDate = task.DueDate.UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO tasks (id, title, description, due_date, category, status, priority, owner_email, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		task.ID,
		task.Title,
		task.Description,
		task.DueDate,
		task.Category,
		task.Status,
		task.Priority,
		task.OwnerEmail,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert task: %w", repository.ErrDuplicate)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("insert task: %w", repository.ErrUnknownOwner)
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) ListByOwner(ctx context.Context, ownerEmail string) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, selectTaskColumns+`
WHERE owner_email = $1
ORDER BY created_at ASC, id ASC`, ownerEmail)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) GetForOwner(ctx context.Context, id, ownerEmail string) (*domain.Task, error) {
	return scanTask(r.db.QueryRowContext(ctx, selectTaskColumns+`
WHERE id = $1 AND owner_email = $2`, id, ownerEmail))
}

func (r *TaskRepository) UpdateForOwner(ctx context.Context, id, ownerEmail string, patch domain.TaskPatch) (*domain.Task, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	task, err := scanTask(tx.QueryRowContext(ctx, selectTaskColumns+`
WHERE id = $1 AND owner_email = $2
FOR UPDATE`, id, ownerEmail))
	if err != nil {
		return nil, err
	}

	patch.Apply(task)
	task.UpdatedAt = time.Now().UTC()

	if _, err := tx.ExecContext(ctx, `
UPDATE tasks
SET title=$1, description=$2, due_date=$3, category=$4, status=$5, priority=$6, updated_at=$7
WHERE id=$8 AND owner_email=$9`,
		task.Title,
		task.Description,
		task.DueDate,
		task.Category,
		task.Status,
		task.Priority,
		task.UpdatedAt,
		id,
		ownerEmail,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("update task: %w", repository.ErrDuplicate)
		}
		return nil, fmt.Errorf("update task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit task update: %w", err)
	}
	return task, nil
}

func (r *TaskRepository) DeleteForOwner(ctx context.Context, id, ownerEmail string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1 AND owner_email=$2`, id, ownerEmail)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("task delete rows affected: %w", err)
	}
	if aff == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanTask(scanner rowScanner) (*domain.Task, error) {
	var task domain.Task
	if err := scanner.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.DueDate,
		&task.Category,
		&task.Status,
		&task.Priority,
		&task.OwnerEmail,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	task.DueDate = task.DueDate.UTC()
	task.CreatedAt = task.CreatedAt.UTC()
	task.UpdatedAt = task.UpdatedAt.UTC()
	return &task, nil
}
