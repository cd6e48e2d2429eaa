package apikey

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new API key record.
func (r *PostgresRepository) Create(ctx context.Context, k *Key) error {
	query := `
		INSERT INTO api_keys (name, prefix, hash, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		k.Name,
		k.Prefix,
		k.Hash,
		k.CreatedBy,
	).Scan(&k.ID, &k.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting api key: %w", err)
	}

	return nil
}

// FindByPrefix returns active (non-revoked) keys matching the given prefix.
func (r *PostgresRepository) FindByPrefix(ctx context.Context, prefix string) ([]Key, error) {
	query := `
		SELECT id, name, prefix, hash, created_by, created_at, revoked_at
		FROM api_keys
		WHERE prefix = $1 AND revoked_at IS NULL`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("finding api keys by prefix: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		err := rows.Scan(&k.ID, &k.Name, &k.Prefix, &k.Hash, &k.CreatedBy, &k.CreatedAt, &k.RevokedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating api key rows: %w", err)
	}

	if keys == nil {
		keys = []Key{}
	}

	return keys, nil
}

// List retrieves all keys ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]Key, error) {
	query := `
		SELECT id, name, prefix, hash, created_by, created_at, revoked_at
		FROM api_keys
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		err := rows.Scan(&k.ID, &k.Name, &k.Prefix, &k.Hash, &k.CreatedBy, &k.CreatedAt, &k.RevokedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating api key rows: %w", err)
	}

	if keys == nil {
		keys = []Key{}
	}

	return keys, nil
}

// Revoke sets revoked_at on a key. Returns ErrKeyNotFound if the key does
// not exist, and ErrKeyRevoked if already revoked.
func (r *PostgresRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE api_keys
		SET revoked_at = NOW()
		WHERE id = $1 AND revoked_at IS NULL`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM api_keys WHERE id = $1)", id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking api key existence: %w", err)
		}
		if !exists {
			return ErrKeyNotFound
		}
		return ErrKeyRevoked
	}

	return nil
}

// CountAll returns the total number of keys in the table (including revoked).
func (r *PostgresRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM api_keys").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting api keys: %w", err)
	}
	return count, nil
}
