package domain

import "time"

// Well-known task labels. Status and priority are free-form; these are the
// values clients are expected to use and the defaults applied on create.
const (
	TaskStatusPending    = "Pending"
	TaskStatusInProgress = "In Progress"
	TaskStatusCompleted  = "Completed"

	TaskPriorityLow    = "Low"
	TaskPriorityMedium = "Medium"
	TaskPriorityHigh   = "High"
)

// Task is a single to-do record owned by exactly one user.
type Task struct {
	ID          string
	Title       string
	Description string
	DueDate     time.Time
	Category    string
	Status      string
	Priority    string
	OwnerEmail  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskPatch carries a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	Category    *string
	Status      *string
	Priority    *string
}

// Empty reports whether the patch changes nothing.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.DueDate == nil &&
		p.Category == nil && p.Status == nil && p.Priority == nil
}

// Apply copies the set fields of the patch onto the task.
func (p TaskPatch) Apply(task *Task) {
	if p.Title != nil {
		task.Title = *p.Title
	}
	if p.Description != nil {
		task.Description = *p.Description
	}
	if p.DueDate != nil {
		task.DueDate = p.DueDate.UTC()
	}
	if p.Category != nil {
		task.Category = *p.Category
	}
	if p.Status != nil {
		task.Status = *p.Status
	}
	if p.Priority != nil {
		task.Priority = *p.Priority
	}
}
