package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"task-tracker/internal/domain"
	"task-tracker/internal/repository"
)

// dueDateLayouts are tried in order when parsing a due date.
var dueDateLayouts = []string{time.DateOnly, time.RFC3339Nano, time.RFC3339}

// TaskInput carries the fields of a new task. Status and Priority are optional.
type TaskInput struct {
	Title       string
	Description string
	DueDate     string
	Category    string
	Status      string
	Priority    string
}

// TaskUpdate carries a partial update; nil fields are left unchanged.
type TaskUpdate struct {
	Title       *string
	Description *string
	DueDate     *string
	Category    *string
	Status      *string
	Priority    *string
}

// TaskService exposes owner-scoped task operations. The owner identity is a
// required argument of every call; there is no unscoped variant.
type TaskService interface {
	ListTasks(ctx context.Context, owner domain.Identity) ([]domain.Task, error)
	GetTask(ctx context.Context, owner domain.Identity, id string) (*domain.Task, error)
	CreateTask(ctx context.Context, owner domain.Identity, in TaskInput) (*domain.Task, error)
	UpdateTask(ctx context.Context, owner domain.Identity, id string, in TaskUpdate) (*domain.Task, error)
	DeleteTask(ctx context.Context, owner domain.Identity, id string) error
}

type taskService struct {
	tasks        repository.TaskRepository
	queryTimeout time.Duration
}

func NewTaskService(tasks repository.TaskRepository, queryTimeout time.Duration) TaskService {
	return &taskService{
		tasks:        tasks,
		queryTimeout: queryTimeout,
	}
}

func (s *taskService) ListTasks(ctx context.Context, owner domain.Identity) ([]domain.Task, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	tasks, err := s.tasks.ListByOwner(ctx, owner.Email)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *taskService) GetTask(ctx context.Context, owner domain.Identity, id string) (*domain.Task, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	id, err := parseTaskID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	task, err := s.tasks.GetForOwner(ctx, id, owner.Email)
	if err != nil {
		return nil, mapTaskError("get task", err)
	}
	return task, nil
}

func (s *taskService) CreateTask(ctx context.Context, owner domain.Identity, in TaskInput) (*domain.Task, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if err := requireFields(
		"title", in.Title,
		"description", in.Description,
		"dueDate", in.DueDate,
		"category", in.Category,
	); err != nil {
		return nil, err
	}

	due, err := ParseDueDate(in.DueDate)
	if err != nil {
		return nil, err
	}

	task := &domain.Task{
		Title:       in.Title,
		Description: in.Description,
		DueDate:     due,
		Category:    in.Category,
		Status:      defaultLabel(in.Status, domain.TaskStatusPending),
		Priority:    defaultLabel(in.Priority, domain.TaskPriorityLow),
		OwnerEmail:  owner.Email,
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, mapTaskError("create task", err)
	}
	return task, nil
}

func (s *taskService) UpdateTask(ctx context.Context, owner domain.Identity, id string, in TaskUpdate) (*domain.Task, error) {
	if err := requireOwner(owner); err != nil {
		return nil, err
	}
	id, err := parseTaskID(id)
	if err != nil {
		return nil, err
	}

	patch, err := buildPatch(in)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	var task *domain.Task
	if patch.Empty() {
		task, err = s.tasks.GetForOwner(ctx, id, owner.Email)
	} else {
		task, err = s.tasks.UpdateForOwner(ctx, id, owner.Email, patch)
	}
	if err != nil {
		return nil, mapTaskError("update task", err)
	}
	return task, nil
}

func (s *taskService) DeleteTask(ctx context.Context, owner domain.Identity, id string) error {
	if err := requireOwner(owner); err != nil {
		return err
	}
	id, err := parseTaskID(id)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	if err := s.tasks.DeleteForOwner(ctx, id, owner.Email); err != nil {
		return mapTaskError("delete task", err)
	}
	return nil
}

// ParseDueDate accepts a calendar date (2006-01-02) or an RFC 3339 timestamp
// and returns it in UTC.
func ParseDueDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &ValidationError{Fields: []string{"dueDate"}, Reason: "invalid date"}
}

func buildPatch(in TaskUpdate) (domain.TaskPatch, error) {
	var (
		patch domain.TaskPatch
		empty []string
	)

	trimmed := func(name string, v *string) *string {
		if v == nil {
			return nil
		}
		s := strings.TrimSpace(*v)
		if s == "" {
			empty = append(empty, name)
		}
		return &s
	}

	patch.Title = trimmed("title", in.Title)
	patch.Description = trimmed("description", in.Description)
	patch.Category = trimmed("category", in.Category)
	patch.Status = trimmed("status", in.Status)
	patch.Priority = trimmed("priority", in.Priority)
	dueDate := trimmed("dueDate", in.DueDate)

	if len(empty) > 0 {
		return domain.TaskPatch{}, &ValidationError{Fields: empty, Reason: "fields must not be empty"}
	}
	if dueDate != nil {
		due, err := ParseDueDate(*dueDate)
		if err != nil {
			return domain.TaskPatch{}, err
		}
		patch.DueDate = &due
	}
	return patch, nil
}

// parseTaskID rejects malformed ids before any store round-trip and returns
// the canonical form the store keys on.
func parseTaskID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", &ValidationError{Fields: []string{"id"}, Reason: "invalid task id"}
	}
	return parsed.String(), nil
}

func requireOwner(owner domain.Identity) error {
	if strings.TrimSpace(owner.Email) == "" {
		return ErrMissingIdentity
	}
	return nil
}

func defaultLabel(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func mapTaskError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return ErrDuplicateTask
	case errors.Is(err, repository.ErrUnknownOwner):
		return ErrUnknownOwner
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
