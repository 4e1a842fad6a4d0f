package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrEmailUnavailable = errors.New("email not found in authentication principal")
)

// User represents the canonical local identity. Email is stored lowercase and
// is unique across all users.
type User struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl"`
	Bio         string    `json:"bio"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NormalizeEmail returns the matching key used for user lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsBlank reports whether an optional profile field carries no value.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// UserRepository defines the interface for user persistence operations.
// Implementations participate in the unit of work they were created for and
// never commit on their own.
type UserRepository interface {
	// FindByEmail returns ErrUserNotFound when no user owns the email.
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	// Create assigns an ID when user.ID is nil and timestamps when they are
	// zero. A duplicate email yields ErrConstraintViolation.
	Create(ctx context.Context, user *User) error
	// Save persists display name, avatar, bio and UpdatedAt.
	Save(ctx context.Context, user *User) error
}

// ProfileUpdate carries the fields a user may edit through the profile
// endpoint. Nil means "not supplied".
type ProfileUpdate struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
}

// UserService defines the interface for profile business logic.
type UserService interface {
	GetProfile(ctx context.Context, principal PrincipalView) (*User, error)
	UpdateProfile(ctx context.Context, principal PrincipalView, update ProfileUpdate) (*User, error)
	ListIdentities(ctx context.Context, principal PrincipalView) ([]*IdentityLink, error)
}

// PrincipalView is the read side of an authenticated session principal as the
// profile service needs it.
type PrincipalView interface {
	Attribute(key string) (string, bool)
}
