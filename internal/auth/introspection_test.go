package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperbase/paperbase/internal/principal"
)

// introspectionServer is a configurable fake identity provider.
type introspectionServer struct {
	srv      *httptest.Server
	calls    atomic.Int64
	respond  func() map[string]any
	lastAuth atomic.Value // string
	lastBody atomic.Value // introspectionRequest
}

func newIntrospectionServer(t *testing.T, respond func() map[string]any) *introspectionServer {
	t.Helper()
	is := &introspectionServer{respond: respond}
	is.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.calls.Add(1)
		is.lastAuth.Store(r.Header.Get("Authorization"))

		var req introspectionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		is.lastBody.Store(req)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(is.respond())
	}))
	t.Cleanup(is.srv.Close)
	return is
}

func newTestClient(t *testing.T, endpoint string, ttl time.Duration) (*IntrospectionClient, *fakeClock) {
	t.Helper()

	clock := &fakeClock{t: time.Now()}
	cache := NewCache(ttl)
	cache.now = clock.now

	client := NewIntrospectionClient(IntrospectionConfig{
		Endpoint:     endpoint,
		ServiceToken: "svc-secret",
		Provider:     "idp",
		Timeout:      2 * time.Second,
		ClockSkew:    60 * time.Second,
	}, cache)
	client.now = clock.now

	return client, clock
}

func futureHint(clock *fakeClock, lifetime time.Duration) principal.RoutingHint {
	return principal.RoutingHint{Role: "user", Exp: clock.t.Add(lifetime).Unix()}
}

func TestIntrospection_VerifySuccess(t *testing.T) {
	var client *IntrospectionClient
	var clock *fakeClock

	is := newIntrospectionServer(t, func() map[string]any {
		return map[string]any{
			"active": true,
			"sub":    "u-42",
			"role":   "user",
			"scope":  "read write",
			"email":  "jane@example.com",
			"exp":    clock.t.Add(10 * time.Minute).Unix(),
		}
	})
	client, clock = newTestClient(t, is.srv.URL, 5*time.Minute)

	ident, err := client.Verify(context.Background(), "ext-token", futureHint(clock, 10*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, "u-42", ident.Subject)
	assert.Equal(t, "user", ident.Role)
	assert.Equal(t, "idp", ident.Provider)
	assert.Equal(t, "jane@example.com", ident.Email)
	assert.Equal(t, "read write", ident.Scope)

	// The remote call carries the service credential and the token body,
	// never the end-user token as the bearer.
	assert.Equal(t, "Bearer svc-secret", is.lastAuth.Load())
	body := is.lastBody.Load().(introspectionRequest)
	assert.Equal(t, "ext-token", body.Token)
	assert.Equal(t, "access_token", body.TokenTypeHint)
	assert.True(t, body.IncludeUser)
}

func TestIntrospection_CacheHitSkipsNetwork(t *testing.T) {
	var clock *fakeClock
	is := newIntrospectionServer(t, func() map[string]any {
		return map[string]any{"active": true, "sub": "u-42", "role": "user", "exp": clock.t.Add(10 * time.Minute).Unix()}
	})
	client, c := newTestClient(t, is.srv.URL, 5*time.Minute)
	clock = c

	hint := futureHint(clock, 10*time.Minute)

	_, err := client.Verify(context.Background(), "ext-token", hint)
	require.NoError(t, err)
	_, err = client.Verify(context.Background(), "ext-token", hint)
	require.NoError(t, err)

	assert.Equal(t, int64(1), is.calls.Load(), "second call within TTL must not hit the network")
}

func TestIntrospection_TTLExpiryTriggersOneCall(t *testing.T) {
	var clock *fakeClock
	is := newIntrospectionServer(t, func() map[string]any {
		return map[string]any{"active": true, "sub": "u-42", "role": "user", "exp": clock.t.Add(time.Hour).Unix()}
	})
	client, c := newTestClient(t, is.srv.URL, time.Minute)
	clock = c

	hint := futureHint(clock, time.Hour)

	_, err := client.Verify(context.Background(), "ext-token", hint)
	require.NoError(t, err)

	clock.advance(61 * time.Second)

	_, err = client.Verify(context.Background(), "ext-token", hint)
	require.NoError(t, err)
	_, err = client.Verify(context.Background(), "ext-token", hint)
	require.NoError(t, err)

	assert.Equal(t, int64(2), is.calls.Load(), "exactly one new call after TTL expiry")
}

func TestIntrospection_InactiveRejectedAndNotCached(t *testing.T) {
	var clock *fakeClock
	is := newIntrospectionServer(t, func() map[string]any {
		return map[string]any{"active": false, "sub": "u-42", "exp": clock.t.Add(time.Hour).Unix()}
	})
	client, c := newTestClient(t, is.srv.URL, 5*time.Minute)
	clock = c

	hint := futureHint(clock, time.Hour)

	_, err := client.Verify(context.Background(), "ext-token", hint)
	requireReason(t, err, ReasonInactiveToken)

	_, err = client.Verify(context.Background(), "ext-token", hint)
	requireReason(t, err, ReasonInactiveToken)

	assert.Equal(t, int64(2), is.calls.Load(), "inactive results are never cached")
	assert.Equal(t, 0, client.cache.Len())
}

func TestIntrospection_FailClosedOnOutage(t *testing.T) {
	is := newIntrospectionServer(t, func() map[string]any { return nil })
	client, clock := newTestClient(t, is.srv.URL, 5*time.Minute)
	is.srv.Close()

	_, err := client.Verify(context.Background(), "ext-token", futureHint(clock, time.Hour))
	requireReason(t, err, ReasonIntrospectionUnavailable)
}

func TestIntrospection_StaleCacheServedDuringOutage(t *testing.T) {
	var clock *fakeClock
	is := newIntrospectionServer(t, func() map[string]any {
		return map[string]any{"active": true, "sub": "u-42", "role": "user", "exp": clock.t.Add(time.Hour).Unix()}
	})
	client, c := newTestClient(t, is.srv.URL, time.Minute)
	clock = c

	hint := futureHint(clock, time.Hour)

	_, err := client.Verify(context.Background(), "ext-token", hint)
	require.NoError(t, err)

	// Past the cache TTL but well within the token's lifetime, with the
	// provider down.
	clock.advance(5 * time.Minute)
	is.srv.Close()

	ident, err := client.Verify(context.Background(), "ext-token", hint)
	require.NoError(t, err)
	assert.Equal(t, "u-42", ident.Subject)
}

func TestIntrospection_IssuerAudienceMismatch(t *testing.T) {
	var clock *fakeClock
	is := newIntrospectionServer(t, func() map[string]any {
		return map[string]any{
			"active": true, "sub": "u-42", "role": "user",
			"iss": "https://rogue.example", "aud": "paperbase",
			"exp": clock.t.Add(time.Hour).Unix(),
		}
	})

	cache := NewCache(5 * time.Minute)
	client := NewIntrospectionClient(IntrospectionConfig{
		Endpoint:         is.srv.URL,
		ServiceToken:     "svc-secret",
		Provider:         "idp",
		ExpectedIssuer:   "https://idp.example",
		ExpectedAudience: "paperbase",
		Timeout:          2 * time.Second,
	}, cache)
	clock = &fakeClock{t: time.Now()}
	client.now = clock.now
	cache.now = clock.now

	_, err := client.Verify(context.Background(), "ext-token", futureHint(clock, time.Hour))
	requireReason(t, err, ReasonIssuerAudienceMismatch)
	assert.Equal(t, 0, cache.Len(), "rejected results are never cached")
}

func TestIntrospection_FastRejectExpiredWithoutNetwork(t *testing.T) {
	is := newIntrospectionServer(t, func() map[string]any { return nil })
	client, clock := newTestClient(t, is.srv.URL, 5*time.Minute)

	hint := principal.RoutingHint{Role: "user", Exp: clock.t.Add(-2 * time.Minute).Unix()}

	_, err := client.Verify(context.Background(), "expired-token", hint)
	requireReason(t, err, ReasonExpiredToken)
	assert.Equal(t, int64(0), is.calls.Load(), "obviously expired tokens never reach the network")
}

func TestIntrospection_SkewToleratesRecentExpiry(t *testing.T) {
	var clock *fakeClock
	is := newIntrospectionServer(t, func() map[string]any {
		return map[string]any{"active": true, "sub": "u-42", "role": "user", "exp": clock.t.Add(time.Hour).Unix()}
	})
	client, c := newTestClient(t, is.srv.URL, 5*time.Minute)
	clock = c

	// exp 30s in the past is within the 60s skew window; the provider
	// remains authoritative.
	hint := principal.RoutingHint{Role: "user", Exp: clock.t.Add(-30 * time.Second).Unix()}

	_, err := client.Verify(context.Background(), "ext-token", hint)
	require.NoError(t, err)
	assert.Equal(t, int64(1), is.calls.Load())
}

func TestIntrospection_RoleObjectClaim(t *testing.T) {
	var clock *fakeClock
	is := newIntrospectionServer(t, func() map[string]any {
		return map[string]any{
			"active": true,
			"sub":    "u-42",
			"role":   map[string]any{"name": "admin"},
			"exp":    clock.t.Add(time.Hour).Unix(),
		}
	})
	client, c := newTestClient(t, is.srv.URL, 5*time.Minute)
	clock = c

	ident, err := client.Verify(context.Background(), "ext-token", futureHint(clock, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "admin", ident.Role)
}
