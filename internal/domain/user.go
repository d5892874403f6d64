package domain

import "time"

// User represents a registered account holder.
type User struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	ContactNumber string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Identity is the verified {username, email} pair carried by a session token.
type Identity struct {
	Username string
	Email    string
}
