package workspace

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/paperbase/paperbase/internal/principal"
)

// ErrWorkspaceNotFound is returned when a workspace is not found or not
// visible to the caller. The two cases are deliberately indistinguishable.
var ErrWorkspaceNotFound = errors.New("workspace not found")

// ErrDuplicateWorkspaceName is returned when a workspace with the same
// name already exists.
var ErrDuplicateWorkspaceName = errors.New("workspace name already exists")

// ErrMemberExists is returned when adding a user who is already a member.
var ErrMemberExists = errors.New("user is already a member")

// ErrMemberNotFound is returned when removing a user who is not a member.
var ErrMemberNotFound = errors.New("user is not a member")

// Repository provides workspace reads scoped to a principal and the
// admin-side write operations. Every read that returns workspace-shaped
// data takes the caller's Principal; scoping is not a per-call opt-in.
type Repository interface {
	Create(ctx context.Context, ws *Workspace) error
	GetByID(ctx context.Context, p *principal.Principal, id uuid.UUID) (*Workspace, error)
	List(ctx context.Context, p *principal.Principal) ([]Workspace, error)
	AddMember(ctx context.Context, workspaceID, userID uuid.UUID) error
	RemoveMember(ctx context.Context, workspaceID, userID uuid.UUID) error
	ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]Membership, error)
}
