package workspace

import (
	"time"

	"github.com/google/uuid"
)

// Workspace represents a row in the workspaces table.
type Workspace struct {
	ID        uuid.UUID
	Name      string
	CreatedBy uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership represents a row in the workspace_members join table. This
// core only reads it for scoping and maintains it through the admin
// endpoints.
type Membership struct {
	WorkspaceID uuid.UUID
	UserID      uuid.UUID
	AddedAt     time.Time
}
