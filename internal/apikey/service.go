package apikey

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"
)

// ErrInvalidKey is returned when the provided secret does not match any
// active key.
var ErrInvalidKey = errors.New("invalid or revoked API key")

// Service provides API key generation and resolution.
type Service struct {
	repo       Repository
	bcryptCost int
}

// NewService creates a new apikey Service.
func NewService(repo Repository, bcryptCost int) *Service {
	return &Service{
		repo:       repo,
		bcryptCost: bcryptCost,
	}
}

// Generate creates a new API key secret. Returns the raw secret, its
// prefix (first 8 chars), and the bcrypt hash. The raw secret is:
// 32 random bytes -> base64url -> prepend "pb_". Only the prefix and hash
// are ever stored.
func (s *Service) Generate() (rawKey, prefix, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", fmt.Errorf("generating random bytes: %w", err)
	}

	rawKey = "pb_" + base64.RawURLEncoding.EncodeToString(b)
	prefix = rawKey[:8]

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(rawKey), s.bcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hashing key: %w", err)
	}
	hash = string(hashBytes)

	return rawKey, prefix, hash, nil
}

// Resolve resolves a raw secret to a Key record. It extracts the prefix,
// looks up candidates, and bcrypt-compares each one. Returns ErrInvalidKey
// when no active key matches; the caller treats that as "not an API key"
// and moves on to token-based classification.
func (s *Service) Resolve(ctx context.Context, rawKey string) (*Key, error) {
	if len(rawKey) < 8 {
		return nil, ErrInvalidKey
	}

	prefix := rawKey[:8]

	candidates, err := s.repo.FindByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("finding api keys by prefix: %w", err)
	}

	for _, k := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(rawKey)) == nil {
			key := k
			return &key, nil
		}
	}

	return nil, ErrInvalidKey
}

// Bootstrap creates an initial API key owned by the given admin user if
// the api_keys table is empty. Returns the raw secret (only displayed
// once). If keys already exist, returns empty string.
func (s *Service) Bootstrap(ctx context.Context, ownerID uuid.UUID) (string, error) {
	count, err := s.repo.CountAll(ctx)
	if err != nil {
		return "", fmt.Errorf("counting api keys: %w", err)
	}

	if count > 0 {
		return "", nil
	}

	rawKey, prefix, hash, err := s.Generate()
	if err != nil {
		return "", fmt.Errorf("generating bootstrap key: %w", err)
	}

	key := &Key{
		Name:      "bootstrap",
		Prefix:    prefix,
		Hash:      hash,
		CreatedBy: ownerID,
	}

	if err := s.repo.Create(ctx, key); err != nil {
		return "", fmt.Errorf("creating bootstrap key: %w", err)
	}

	slog.Info("Bootstrap API key created", "key", rawKey)

	return rawKey, nil
}
