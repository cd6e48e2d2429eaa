package user

import (
	"time"

	"github.com/google/uuid"
)

// Roles a local user can hold. External role claims are mapped onto these
// two values; there is deliberately no third option.
const (
	RoleAdmin   = "admin"
	RoleDefault = "default"
)

// User represents a row in the users table.
type User struct {
	ID           uuid.UUID
	Username     string
	Role         string // "admin" or "default"
	PasswordHash string
	Suspended    bool

	// External identity linkage. Both nil for locally managed accounts;
	// set together when the account is provisioned from or linked to an
	// external identity. (external_id, external_provider) is unique.
	ExternalID       *string
	ExternalProvider *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExternal reports whether the user is linked to an external identity.
func (u *User) IsExternal() bool {
	return u.ExternalID != nil && u.ExternalProvider != nil
}
