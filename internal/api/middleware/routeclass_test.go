package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperbase/paperbase/internal/apikey"
	"github.com/paperbase/paperbase/internal/auth"
	"github.com/paperbase/paperbase/internal/principal"
)

// memRecorder collects audit events for assertions.
type memRecorder struct {
	mu     sync.Mutex
	events []auth.Event
}

func (r *memRecorder) Record(_ context.Context, ev auth.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *memRecorder) all() []auth.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]auth.Event(nil), r.events...)
}

// callWithPrincipal runs the given route-class middleware with p already
// in the request context, the way Authenticate would leave it. A nil p
// simulates a request that skipped authentication entirely.
func callWithPrincipal(mw func(http.Handler) http.Handler, p *principal.Principal) *httptest.ResponseRecorder {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if p != nil {
		req = req.WithContext(context.WithValue(req.Context(), principalKey, p))
	}

	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)
	return rec
}

func principalFrom(source principal.Source, kind principal.Kind) *principal.Principal {
	return &principal.Principal{
		Kind:      kind,
		Source:    source,
		SubjectID: uuid.New(),
	}
}

func TestRouteClassMatrix(t *testing.T) {
	apiKey := principalFrom(principal.SourceAPIKey, principal.KindAdmin)
	adminToken := principalFrom(principal.SourceAdminToken, principal.KindAdmin)
	external := principalFrom(principal.SourceIntrospection, principal.KindDefault)
	externalAdmin := principalFrom(principal.SourceIntrospection, principal.KindAdmin)

	tests := []struct {
		name      string
		mw        func(auth.Recorder) func(http.Handler) http.Handler
		principal *principal.Principal
		want      int
	}{
		{"admin route accepts api key", RequireAdminKey, apiKey, http.StatusOK},
		{"admin route rejects admin token", RequireAdminKey, adminToken, http.StatusForbidden},
		{"admin route rejects external token", RequireAdminKey, external, http.StatusForbidden},
		// Role elevation does not cross the tier boundary: an external
		// identity mapped to admin still carries an external credential.
		{"admin route rejects external admin", RequireAdminKey, externalAdmin, http.StatusForbidden},
		{"admin route rejects unauthenticated", RequireAdminKey, nil, http.StatusUnauthorized},

		{"tenant route rejects api key", RequireTenant, apiKey, http.StatusForbidden},
		{"tenant route accepts admin token", RequireTenant, adminToken, http.StatusOK},
		{"tenant route accepts external token", RequireTenant, external, http.StatusOK},
		{"tenant route accepts external admin", RequireTenant, externalAdmin, http.StatusOK},
		{"tenant route rejects unauthenticated", RequireTenant, nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			audit := &memRecorder{}
			rec := callWithPrincipal(tt.mw(audit), tt.principal)
			assert.Equal(t, tt.want, rec.Code)

			// Only authenticated callers on the wrong route class leave an
			// audit trace here; admits and the unauthenticated guard do not.
			if tt.want == http.StatusForbidden {
				events := audit.all()
				require.Len(t, events, 1)
				assert.Equal(t, "auth.failure", events[0].Type)
				assert.Equal(t, auth.ReasonWrongCredentialForRoute, events[0].Reason)
				assert.Equal(t, tt.principal.SubjectID.String(), events[0].SubjectID)
				assert.Equal(t, tt.principal.Source.String(), events[0].Source)
				assert.False(t, events[0].At.IsZero())
			} else {
				assert.Empty(t, audit.all())
			}
		})
	}
}

func TestRouteClassRejectionBody(t *testing.T) {
	audit := &memRecorder{}
	rec := callWithPrincipal(RequireAdminKey(audit), principalFrom(principal.SourceAdminToken, principal.KindAdmin))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "FORBIDDEN")
	assert.Contains(t, rec.Body.String(), "not valid for this route")
}

func TestRouteClassMismatchAuditedEndToEnd(t *testing.T) {
	repo := &stubKeyRepo{}
	keys := apikey.NewService(repo, 4)
	validator := auth.NewAdminValidator([]byte(testSecret), "paperbase", time.Minute)
	audit := &memRecorder{}
	a := auth.NewAuthenticator(keys, validator, nil, nil, audit)

	handler := RequestID(Authenticate(a)(RequireAdminKey(audit)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))))

	sub := uuid.New()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub.String(),
		"role": "admin",
		"iss":  "paperbase",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/keys", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// A validly signed admin token fails the API-key-only route class, and
	// both sides of that outcome land in the audit trail.
	assert.Equal(t, http.StatusForbidden, rec.Code)

	events := audit.all()
	require.Len(t, events, 2)
	assert.Equal(t, "auth.success", events[0].Type)
	assert.Equal(t, "auth.failure", events[1].Type)
	assert.Equal(t, auth.ReasonWrongCredentialForRoute, events[1].Reason)
	assert.Equal(t, sub.String(), events[1].SubjectID)
	assert.Equal(t, "admin_token", events[1].Source)
}
