package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AdminValidator verifies locally-issued admin tokens against a
// deployment-static shared secret. It never performs network I/O and never
// touches the introspection cache. Every failure collapses into
// ReasonInvalidAdminToken so callers cannot learn which check failed.
type AdminValidator struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewAdminValidator creates a validator for HS256 admin tokens. issuer may
// be empty to skip issuer checking.
func NewAdminValidator(secret []byte, issuer string, leeway time.Duration) *AdminValidator {
	return &AdminValidator{
		secret: secret,
		issuer: issuer,
		leeway: leeway,
	}
}

// Validate verifies the token's signature, expiry, and role claim, and
// returns the verified subject id. The alg list is pinned to HS256 so an
// asymmetric-signed token can never downgrade into the HMAC path.
func (v *AdminValidator) Validate(tokenStr string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.Parse(tokenStr, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return uuid.Nil, DeniedCause(ReasonInvalidAdminToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, Denied(ReasonInvalidAdminToken)
	}

	// Role is re-derived from the verified claims; the unverified routing
	// hint is never consulted here.
	role, _ := claims["role"].(string)
	if role != "admin" {
		return uuid.Nil, Denied(ReasonInvalidAdminToken)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, DeniedCause(ReasonInvalidAdminToken, fmt.Errorf("missing subject claim"))
	}

	subjectID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, DeniedCause(ReasonInvalidAdminToken, fmt.Errorf("subject is not a valid id"))
	}

	return subjectID, nil
}
