package workspace

import (
	"github.com/google/uuid"

	"github.com/paperbase/paperbase/internal/principal"
)

// scope captures how a workspace query is constrained for a caller.
type scope struct {
	// unrestricted is true for admin principals, who see every workspace.
	unrestricted bool
	// empty is true when the caller has no resolvable local user id; the
	// query must return nothing rather than everything.
	empty bool
	// userID is the membership predicate subject for default principals.
	userID uuid.UUID
}

// scopeFor derives the query scope from a principal. Admins pass through
// unmodified; default callers are constrained to their memberships; a
// missing caller identity fails closed to an empty result set.
func scopeFor(p *principal.Principal) scope {
	if p == nil || p.SubjectID == uuid.Nil {
		return scope{empty: true}
	}
	if p.Kind == principal.KindAdmin {
		return scope{unrestricted: true}
	}
	return scope{userID: p.SubjectID}
}
