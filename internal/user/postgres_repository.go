package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const userColumns = `id, username, role, password_hash, suspended,
	external_id, external_provider, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Username, &u.Role, &u.PasswordHash, &u.Suspended,
		&u.ExternalID, &u.ExternalProvider, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user record. Uniqueness violations map to
// ErrDuplicateUsername or ErrDuplicateExternalID depending on the
// constraint hit, so the provisioner can retry concurrent creates.
func (r *PostgresRepository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (username, role, password_hash, suspended, external_id, external_provider)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		u.Username,
		u.Role,
		u.PasswordHash,
		u.Suspended,
		u.ExternalID,
		u.ExternalProvider,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "users_external_id_provider_key" {
				return ErrDuplicateExternalID
			}
			return ErrDuplicateUsername
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	return nil
}

// GetByID retrieves a single user by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user: %w", err)
	}

	return u, nil
}

// GetByUsername retrieves a single user by username.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	u, err := scanUser(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user by username: %w", err)
	}

	return u, nil
}

// GetByExternal retrieves the user linked to the given external identity.
func (r *PostgresRepository) GetByExternal(ctx context.Context, externalID, provider string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1 AND external_provider = $2`

	u, err := scanUser(r.pool.QueryRow(ctx, query, externalID, provider))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying user by external identity: %w", err)
	}

	return u, nil
}

// LinkExternal sets the external linkage fields and role on an existing
// user. The partial unique index on (external_id, external_provider)
// guards against double-linking; a violation maps to ErrDuplicateExternalID.
func (r *PostgresRepository) LinkExternal(ctx context.Context, id uuid.UUID, externalID, provider, role string) error {
	query := `
		UPDATE users
		SET external_id = $2, external_provider = $3, role = $4, updated_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, externalID, provider, role)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateExternalID
		}
		return fmt.Errorf("linking external identity: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// UpdateRole sets the role on a user.
func (r *PostgresRepository) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	query := `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, role)
	if err != nil {
		return fmt.Errorf("updating user role: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// SetSuspended toggles the suspended flag on a user.
func (r *PostgresRepository) SetSuspended(ctx context.Context, id uuid.UUID, suspended bool) error {
	query := `UPDATE users SET suspended = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, suspended)
	if err != nil {
		return fmt.Errorf("updating user suspension: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

// List retrieves all users ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}

	if users == nil {
		users = []User{}
	}

	return users, nil
}

// CountAll returns the total number of users in the table.
func (r *PostgresRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}
