package apikey

import (
	"time"

	"github.com/google/uuid"
)

// Key represents a row in the api_keys table. The raw secret is never
// stored; only its first 8 characters (for candidate lookup) and a bcrypt
// hash. A key always belongs to an admin user and always authenticates as
// an admin principal.
type Key struct {
	ID        uuid.UUID
	Name      string
	Prefix    string
	Hash      string
	CreatedBy uuid.UUID
	CreatedAt time.Time
	RevokedAt *time.Time
}
