package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paperbase/paperbase/internal/principal"
)

// Result is a verified introspection payload. Only results with Active set
// are ever cached or turned into identities.
type Result struct {
	Active    bool
	Subject   string
	Role      string
	Scope     string
	Issuer    string
	Audience  string
	Email     string
	ExpiresAt time.Time
}

// ExternalIdentity is the provisional identity produced by a successful
// introspection, before it is reconciled against the local user store.
type ExternalIdentity struct {
	Subject  string
	Role     string
	Provider string
	Email    string
	Scope    string
}

// IntrospectionConfig configures the introspection client.
type IntrospectionConfig struct {
	Endpoint         string
	ServiceToken     string // service-level credential, distinct from end-user tokens
	Provider         string // provider label recorded on provisioned users
	ExpectedIssuer   string // empty to skip the check
	ExpectedAudience string // empty to skip the check
	Timeout          time.Duration
	ClockSkew        time.Duration
}

// IntrospectionClient verifies externally issued tokens against a remote
// identity provider, with a fingerprint cache in front of the network
// call. On remote failure it falls back to a still-valid stale cache entry
// if one exists and otherwise fails closed.
type IntrospectionClient struct {
	cfg        IntrospectionConfig
	cache      *Cache
	httpClient *http.Client
	now        func() time.Time
}

// NewIntrospectionClient creates a client around the given cache. The
// cache is injected rather than ambient so tests can drive it with a fake
// clock.
func NewIntrospectionClient(cfg IntrospectionConfig, cache *Cache) *IntrospectionClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 60 * time.Second
	}
	return &IntrospectionClient{
		cfg:        cfg,
		cache:      cache,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}
}

// Verify resolves a token to an external identity. hint carries the
// structural decode done by the classifier; its exp claim is used only for
// the pre-network fast reject, never as a verification result.
func (c *IntrospectionClient) Verify(ctx context.Context, token string, hint principal.RoutingHint) (*ExternalIdentity, error) {
	now := c.now()

	// Obviously expired tokens are rejected before any network call.
	if hint.Exp == 0 {
		return nil, Denied(ReasonInvalidTokenFormat)
	}
	if now.After(time.Unix(hint.Exp, 0).Add(c.cfg.ClockSkew)) {
		return nil, Denied(ReasonExpiredToken)
	}

	fingerprint := Fingerprint(token)
	if result, ok := c.cache.Get(fingerprint); ok {
		return c.identityFrom(result), nil
	}

	result, err := c.introspect(ctx, token)
	if err != nil {
		// Remote outage: serve the most recent still-valid entry if one
		// exists, otherwise fail closed. An outage is never "trust the
		// token".
		if stale, ok := c.cache.GetStale(fingerprint); ok {
			return c.identityFrom(stale), nil
		}
		return nil, DeniedCause(ReasonIntrospectionUnavailable, err)
	}

	if !result.Active {
		return nil, Denied(ReasonInactiveToken)
	}
	if c.now().After(result.ExpiresAt) {
		return nil, Denied(ReasonExpiredToken)
	}
	if c.cfg.ExpectedIssuer != "" && result.Issuer != c.cfg.ExpectedIssuer {
		return nil, Denied(ReasonIssuerAudienceMismatch)
	}
	if c.cfg.ExpectedAudience != "" && result.Audience != c.cfg.ExpectedAudience {
		return nil, Denied(ReasonIssuerAudienceMismatch)
	}

	c.cache.Put(fingerprint, result)

	return c.identityFrom(result), nil
}

func (c *IntrospectionClient) identityFrom(result Result) *ExternalIdentity {
	return &ExternalIdentity{
		Subject:  result.Subject,
		Role:     result.Role,
		Provider: c.cfg.Provider,
		Email:    result.Email,
		Scope:    result.Scope,
	}
}

type introspectionRequest struct {
	Token         string `json:"token"`
	TokenTypeHint string `json:"tokenTypeHint"`
	IncludeUser   bool   `json:"includeUser"`
}

type introspectionResponse struct {
	Active bool      `json:"active"`
	Sub    string    `json:"sub"`
	Role   roleClaim `json:"role"`
	Scope  string    `json:"scope"`
	Iss    string    `json:"iss"`
	Aud    string    `json:"aud"`
	Exp    float64   `json:"exp"`
	Email  string    `json:"email"`
}

// roleClaim accepts the role field as either a bare string or an object
// with a name, which providers have been observed to send interchangeably.
type roleClaim string

func (r *roleClaim) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = roleClaim(s)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("role claim is neither string nor object: %w", err)
	}
	*r = roleClaim(obj.Name)
	return nil
}

// introspect performs the remote call. One immediate retry on transport
// error stays within the request's timeout budget; there is no background
// retry loop.
func (c *IntrospectionClient) introspect(ctx context.Context, token string) (Result, error) {
	result, err := c.introspectOnce(ctx, token)
	if err == nil || ctx.Err() != nil {
		return result, err
	}
	return c.introspectOnce(ctx, token)
}

func (c *IntrospectionClient) introspectOnce(ctx context.Context, token string) (Result, error) {
	body, err := json.Marshal(introspectionRequest{
		Token:         token,
		TokenTypeHint: "access_token",
		IncludeUser:   true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encoding introspection request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("creating introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.ServiceToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("introspection request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("introspection endpoint returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("reading introspection response: %w", err)
	}

	var payload introspectionResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Result{}, fmt.Errorf("parsing introspection response: %w", err)
	}

	return Result{
		Active:    payload.Active,
		Subject:   payload.Sub,
		Role:      string(payload.Role),
		Scope:     payload.Scope,
		Issuer:    payload.Iss,
		Audience:  payload.Aud,
		Email:     payload.Email,
		ExpiresAt: time.Unix(int64(payload.Exp), 0),
	}, nil
}
