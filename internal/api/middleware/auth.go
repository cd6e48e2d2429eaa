package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/paperbase/paperbase/internal/api/response"
	"github.com/paperbase/paperbase/internal/auth"
	"github.com/paperbase/paperbase/internal/principal"
)

const principalKey contextKey = "principal"

// Authenticate is middleware that resolves the Authorization header to a
// Principal via the authenticator and stores it in the request context.
// Every authentication failure, whatever its internal reason, surfaces as
// the same opaque 401.
func Authenticate(a *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			p, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				var authErr *auth.Error
				if errors.As(err, &authErr) {
					response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing credentials", requestID)
					return
				}
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication failed", requestID)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal retrieves the authenticated Principal from the request context.
func GetPrincipal(ctx context.Context) *principal.Principal {
	if p, ok := ctx.Value(principalKey).(*principal.Principal); ok {
		return p
	}
	return nil
}
