package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperbase/paperbase/internal/principal"
)

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new workspace record.
func (r *PostgresRepository) Create(ctx context.Context, ws *Workspace) error {
	query := `
		INSERT INTO workspaces (name, created_by)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, ws.Name, ws.CreatedBy).Scan(&ws.ID, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateWorkspaceName
		}
		return fmt.Errorf("inserting workspace: %w", err)
	}

	return nil
}

// GetByID retrieves a single workspace visible to the caller. A workspace
// that exists but is outside the caller's memberships reads as not found.
func (r *PostgresRepository) GetByID(ctx context.Context, p *principal.Principal, id uuid.UUID) (*Workspace, error) {
	sc := scopeFor(p)
	if sc.empty {
		return nil, ErrWorkspaceNotFound
	}

	query := `
		SELECT w.id, w.name, w.created_by, w.created_at, w.updated_at
		FROM workspaces w
		WHERE w.id = $1`
	args := []any{id}

	if !sc.unrestricted {
		query += `
		AND EXISTS (
			SELECT 1 FROM workspace_members wm
			WHERE wm.workspace_id = w.id AND wm.user_id = $2
		)`
		args = append(args, sc.userID)
	}

	var ws Workspace
	err := r.pool.QueryRow(ctx, query, args...).Scan(&ws.ID, &ws.Name, &ws.CreatedBy, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("querying workspace: %w", err)
	}

	return &ws, nil
}

// List retrieves the workspaces visible to the caller, ordered by creation
// time.
func (r *PostgresRepository) List(ctx context.Context, p *principal.Principal) ([]Workspace, error) {
	sc := scopeFor(p)
	if sc.empty {
		return []Workspace{}, nil
	}

	query := `
		SELECT w.id, w.name, w.created_by, w.created_at, w.updated_at
		FROM workspaces w`
	var args []any

	if !sc.unrestricted {
		query += `
		JOIN workspace_members wm ON wm.workspace_id = w.id AND wm.user_id = $1`
		args = append(args, sc.userID)
	}

	query += `
		ORDER BY w.created_at ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing workspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []Workspace
	for rows.Next() {
		var ws Workspace
		err := rows.Scan(&ws.ID, &ws.Name, &ws.CreatedBy, &ws.CreatedAt, &ws.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning workspace row: %w", err)
		}
		workspaces = append(workspaces, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating workspace rows: %w", err)
	}

	if workspaces == nil {
		workspaces = []Workspace{}
	}

	return workspaces, nil
}

// AddMember inserts a membership row.
func (r *PostgresRepository) AddMember(ctx context.Context, workspaceID, userID uuid.UUID) error {
	query := `
		INSERT INTO workspace_members (workspace_id, user_id)
		VALUES ($1, $2)`

	_, err := r.pool.Exec(ctx, query, workspaceID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrMemberExists
			case "23503":
				return ErrWorkspaceNotFound
			}
		}
		return fmt.Errorf("adding workspace member: %w", err)
	}

	return nil
}

// RemoveMember deletes a membership row.
func (r *PostgresRepository) RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error {
	query := `
		DELETE FROM workspace_members
		WHERE workspace_id = $1 AND user_id = $2`

	result, err := r.pool.Exec(ctx, query, workspaceID, userID)
	if err != nil {
		return fmt.Errorf("removing workspace member: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrMemberNotFound
	}

	return nil
}

// ListMembers retrieves the membership rows for a workspace.
func (r *PostgresRepository) ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]Membership, error) {
	query := `
		SELECT workspace_id, user_id, added_at
		FROM workspace_members
		WHERE workspace_id = $1
		ORDER BY added_at ASC`

	rows, err := r.pool.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing workspace members: %w", err)
	}
	defer rows.Close()

	var members []Membership
	for rows.Next() {
		var m Membership
		err := rows.Scan(&m.WorkspaceID, &m.UserID, &m.AddedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning membership row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating membership rows: %w", err)
	}

	if members == nil {
		members = []Membership{}
	}

	return members, nil
}
