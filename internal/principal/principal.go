// Package principal defines the normalized caller identity produced by
// authentication and consumed by every downstream authorization check.
package principal

import "github.com/google/uuid"

// Kind is the closed set of caller classes. It is a dedicated type so
// handlers switch on the constants rather than comparing free-form strings.
type Kind int

const (
	// KindAdmin is a caller authenticated by an API key or a locally
	// verified admin token. Admins see all workspaces.
	KindAdmin Kind = iota

	// KindDefault is a caller authenticated by an externally issued token.
	// Default callers only see workspaces they are a member of.
	KindDefault
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindAdmin:
		return "admin"
	case KindDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Source records which verification path produced the principal. The route
// guards use it to enforce the credential/route matrix.
type Source int

const (
	// SourceAPIKey means the caller presented an opaque API key.
	SourceAPIKey Source = iota

	// SourceAdminToken means the caller presented a locally verified
	// admin-issued token.
	SourceAdminToken

	// SourceIntrospection means the caller presented an externally issued
	// token verified by remote introspection.
	SourceIntrospection
)

// String returns the source name used in audit events and logs.
func (s Source) String() string {
	switch s {
	case SourceAPIKey:
		return "api_key"
	case SourceAdminToken:
		return "admin_token"
	case SourceIntrospection:
		return "introspection"
	default:
		return "unknown"
	}
}

// Principal is the authenticated caller for the duration of one request.
// It is constructed once by the authenticator, never persisted, and
// discarded when the request ends. Role is always re-derived from a
// verified source, never copied from client-supplied convenience fields.
type Principal struct {
	Kind      Kind
	Source    Source
	SubjectID uuid.UUID
	Role      string
	// Scope holds space-separated authorization scopes reported by the
	// identity provider. Advisory only; no access decision depends on it.
	Scope string
}

// RoutingHint is the result of a structural, non-verifying token decode.
// It exists only to pick a verification path and must never be treated as
// authorization-grade data; the chosen validator re-derives every claim
// from its own verified source.
type RoutingHint struct {
	Role string
	// Exp is the unverified expiry claim, unix seconds. Zero when absent.
	Exp int64
}

// IsAdminHint reports whether the unverified role claim routes the token
// to the local admin validator.
func (h RoutingHint) IsAdminHint() bool {
	return h.Role == "admin"
}
