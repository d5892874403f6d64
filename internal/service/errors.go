package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConflict matches every uniqueness violation surfaced by this package.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned for tasks that are absent or owned by someone else.
	ErrNotFound = errors.New("task not found")
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingIdentity is returned when an owner-scoped call carries no identity.
	ErrMissingIdentity = errors.New("missing identity")
	// ErrUnknownOwner is returned when a valid token names an account that no longer exists.
	ErrUnknownOwner = errors.New("owner account does not exist")
	// ErrExportDisabled is returned when no export bucket is configured.
	ErrExportDisabled = errors.New("export storage is not configured")
)

// ConflictError describes a uniqueness violation. errors.Is(err, ErrConflict)
// holds for every ConflictError.
type ConflictError struct {
	msg string
}

func (e *ConflictError) Error() string { return e.msg }

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

var (
	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = &ConflictError{msg: "email already registered"}
	// ErrDuplicateTask is returned when an owner already has a task with the same title and due date.
	ErrDuplicateTask = &ConflictError{msg: "task with the same title and due date already exists"}
)

// ValidationError lists the request fields that were missing or malformed.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "missing or invalid fields"
	}
	if len(e.Fields) == 0 {
		return reason
	}
	return fmt.Sprintf("%s: %s", reason, strings.Join(e.Fields, ", "))
}

// requireFields returns a ValidationError naming every blank value, in order.
func requireFields(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Reason: "missing required fields"}
	}
	return nil
}
