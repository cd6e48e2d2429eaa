package auth

import "fmt"

// Reason is the internal classification of an authentication failure. It
// exists for audit logging only; the HTTP boundary collapses every reason
// into the same opaque unauthorized response.
type Reason string

const (
	ReasonMissingToken             Reason = "missing_token"
	ReasonInvalidTokenFormat       Reason = "invalid_token_format"
	ReasonInvalidAdminToken        Reason = "invalid_admin_token"
	ReasonExpiredToken             Reason = "expired_token"
	ReasonInactiveToken            Reason = "inactive_token"
	ReasonIssuerAudienceMismatch   Reason = "issuer_or_audience_mismatch"
	ReasonIntrospectionUnavailable Reason = "introspection_unavailable"
	ReasonUserSuspended            Reason = "user_suspended"
	ReasonWrongCredentialForRoute  Reason = "wrong_credential_for_route"
)

// Error is an authentication rejection. It always maps to a uniform
// unauthorized outcome at the boundary; Reason distinguishes the cause for
// the audit trail.
type Error struct {
	Reason Reason
	cause  error
}

// Denied creates an authentication rejection with the given reason.
func Denied(reason Reason) *Error {
	return &Error{Reason: reason}
}

// DeniedCause creates an authentication rejection wrapping an underlying
// error. The cause is logged, never returned to the caller.
func DeniedCause(reason Reason, cause error) *Error {
	return &Error{Reason: reason, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("authentication rejected (%s): %v", e.Reason, e.cause)
	}
	return fmt.Sprintf("authentication rejected (%s)", e.Reason)
}

func (e *Error) Unwrap() error {
	return e.cause
}
