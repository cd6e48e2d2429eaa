package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when a user record is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateUsername is returned when a username is already taken.
var ErrDuplicateUsername = errors.New("username already exists")

// ErrDuplicateExternalID is returned when (external_id, external_provider)
// is already linked to another user.
var ErrDuplicateExternalID = errors.New("external identity already linked")

// Repository provides operations on the users table.
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByExternal(ctx context.Context, externalID, provider string) (*User, error)
	LinkExternal(ctx context.Context, id uuid.UUID, externalID, provider, role string) error
	UpdateRole(ctx context.Context, id uuid.UUID, role string) error
	SetSuspended(ctx context.Context, id uuid.UUID, suspended bool) error
	List(ctx context.Context) ([]User, error)
	CountAll(ctx context.Context) (int, error)
}
