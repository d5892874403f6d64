package repository

import "errors"

var (
	// ErrNotFound indicates no row matched the lookup, including the owner predicate.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a uniqueness constraint rejected the write.
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrUnknownOwner indicates a task write referenced an owner with no user row.
	ErrUnknownOwner = errors.New("repository: unknown owner")
)
