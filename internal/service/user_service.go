package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"task-tracker/internal/auth"
	"task-tracker/internal/domain"
	"task-tracker/internal/repository"
)

// PasswordHasher is the one-way password transform used for credentials.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
	CompareDummy(plain string)
}

// TokenIssuer signs session tokens for authenticated identities.
type TokenIssuer interface {
	Issue(identity domain.Identity) (string, time.Time, error)
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Username      string
	Email         string
	Password      string
	ContactNumber string
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// UserService describes account registration and authentication.
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

type userService struct {
	users        repository.UserRepository
	hasher       PasswordHasher
	tokens       TokenIssuer
	queryTimeout time.Duration
}

func NewUserService(users repository.UserRepository, hasher PasswordHasher, tokens TokenIssuer, queryTimeout time.Duration) UserService {
	return &userService{
		users:        users,
		hasher:       hasher,
		tokens:       tokens,
		queryTimeout: queryTimeout,
	}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	in.ContactNumber = strings.TrimSpace(in.ContactNumber)

	if err := requireFields(
		"username", in.Username,
		"email", in.Email,
		"password", in.Password,
		"contactNumber", in.ContactNumber,
	); err != nil {
		return nil, err
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return nil, &ValidationError{
			Fields: []string{"password"},
			Reason: fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordBytes),
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:      in.Username,
		Email:         in.Email,
		PasswordHash:  hash,
		ContactNumber: in.ContactNumber,
	}

	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("register user: %w", err)
	}

	return sanitizeUser(user), nil
}

func (s *userService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if err := requireFields("email", email, "password", password); err != nil {
		return nil, err
	}
	// no stored hash can match an input bcrypt refuses to hash
	if len(password) > auth.MaxPasswordBytes {
		return nil, ErrInvalidCredentials
	}

	lookupCtx, cancel := withTimeout(ctx, s.queryTimeout)
	user, err := s.users.GetByEmail(lookupCtx, email)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.CompareDummy(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(domain.Identity{Username: user.Username, Email: user.Email})
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: sanitizeUser(user)}, nil
}

func (s *userService) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, cancel := withTimeout(ctx, s.queryTimeout)
	defer cancel()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		ContactNumber: user.ContactNumber,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
