package apikey

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrKeyNotFound is returned when a key record is not found.
var ErrKeyNotFound = errors.New("api key not found")

// ErrKeyRevoked is returned when attempting to revoke an already revoked key.
var ErrKeyRevoked = errors.New("api key is revoked")

// Repository provides operations on the api_keys table.
type Repository interface {
	Create(ctx context.Context, key *Key) error
	FindByPrefix(ctx context.Context, prefix string) ([]Key, error)
	List(ctx context.Context) ([]Key, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	CountAll(ctx context.Context) (int, error)
}
