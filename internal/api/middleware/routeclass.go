package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/paperbase/paperbase/internal/api/response"
	"github.com/paperbase/paperbase/internal/auth"
	"github.com/paperbase/paperbase/internal/principal"
)

// RequireAdminKey returns middleware for the admin-only route class: only
// principals derived from an API key are admitted. Admin-issued and
// externally-issued tokens are rejected here even when valid; a credential
// for one trust tier can never be replayed against another. Every
// rejection is recorded against the audit sink.
func RequireAdminKey(audit auth.Recorder) func(http.Handler) http.Handler {
	if audit == nil {
		audit = auth.SlogRecorder{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			p := GetPrincipal(r.Context())
			if p == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing credentials", requestID)
				return
			}

			if p.Source != principal.SourceAPIKey {
				recordMismatch(r.Context(), audit, p)
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "This credential is not valid for this route", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireTenant returns middleware for the shared tenant-facing route
// class: admin-issued and externally-issued tokens are admitted, API keys
// are rejected. Rejections are recorded the same way as RequireAdminKey.
func RequireTenant(audit auth.Recorder) func(http.Handler) http.Handler {
	if audit == nil {
		audit = auth.SlogRecorder{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			p := GetPrincipal(r.Context())
			if p == nil {
				response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing credentials", requestID)
				return
			}

			if p.Source == principal.SourceAPIKey {
				recordMismatch(r.Context(), audit, p)
				response.Err(w, http.StatusForbidden, "FORBIDDEN", "This credential is not valid for this route", requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// recordMismatch audits an authenticated caller presenting the wrong
// credential type for a route class. The caller passed verification, so
// subject and source are always known here.
func recordMismatch(ctx context.Context, audit auth.Recorder, p *principal.Principal) {
	audit.Record(ctx, auth.Event{
		Type:      "auth.failure",
		SubjectID: p.SubjectID.String(),
		Source:    p.Source.String(),
		Reason:    auth.ReasonWrongCredentialForRoute,
		At:        time.Now(),
	})
}
