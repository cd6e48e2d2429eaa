package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paperbase/paperbase/internal/user"
)

const maxUsernameLen = 64

// creation retries cover the window where a concurrent request provisions
// the same identity between our lookup and our insert.
const maxProvisionAttempts = 3

// Provisioner reconciles verified external identities with local user
// records. Provision is idempotent: authenticating the same identity any
// number of times yields exactly one local user, with the role refreshed
// on every pass.
type Provisioner struct {
	users user.Repository
}

// NewProvisioner creates a Provisioner over the given user store.
func NewProvisioner(users user.Repository) *Provisioner {
	return &Provisioner{users: users}
}

// Provision maps an external identity to a local user, creating or linking
// a record as needed. A suspended local account short-circuits with
// ReasonUserSuspended no matter how valid the external token was.
func (p *Provisioner) Provision(ctx context.Context, ident *ExternalIdentity) (*user.User, error) {
	role := MapExternalRole(ident.Role)

	var lastErr error
	for attempt := 0; attempt < maxProvisionAttempts; attempt++ {
		u, err := p.reconcile(ctx, ident, role)
		if err != nil {
			// A uniqueness violation means another request just created or
			// linked this identity; loop back to the lookup.
			if errors.Is(err, user.ErrDuplicateUsername) || errors.Is(err, user.ErrDuplicateExternalID) {
				lastErr = err
				continue
			}
			return nil, err
		}

		if u.Suspended {
			return nil, Denied(ReasonUserSuspended)
		}
		return u, nil
	}

	return nil, fmt.Errorf("provisioning external identity: %w", lastErr)
}

func (p *Provisioner) reconcile(ctx context.Context, ident *ExternalIdentity, role string) (*user.User, error) {
	// Primary path: the identity is already linked.
	existing, err := p.users.GetByExternal(ctx, ident.Subject, ident.Provider)
	if err == nil {
		if existing.Role != role {
			if err := p.users.UpdateRole(ctx, existing.ID, role); err != nil {
				return nil, fmt.Errorf("refreshing role: %w", err)
			}
			existing.Role = role
		}
		return existing, nil
	}
	if !errors.Is(err, user.ErrUserNotFound) {
		return nil, fmt.Errorf("looking up external identity: %w", err)
	}

	// Fallback path: link a pre-provisioned local account by derived
	// username, but only if it is not already bound to some other
	// external identity.
	username := deriveUsername(ident)
	byName, err := p.users.GetByUsername(ctx, username)
	if err == nil && !byName.IsExternal() {
		if err := p.users.LinkExternal(ctx, byName.ID, ident.Subject, ident.Provider, role); err != nil {
			return nil, fmt.Errorf("linking local account: %w", err)
		}
		byName.Role = role
		ext := ident.Subject
		prov := ident.Provider
		byName.ExternalID = &ext
		byName.ExternalProvider = &prov
		return byName, nil
	}
	if err != nil && !errors.Is(err, user.ErrUserNotFound) {
		return nil, fmt.Errorf("looking up user by username: %w", err)
	}

	return p.create(ctx, ident, username, role)
}

// create inserts a fresh user for the identity. Username collisions are
// resolved by an incrementing numeric suffix, falling back to the
// canonical user_<externalID> form when the suffixed name would exceed
// the length limit.
func (p *Provisioner) create(ctx context.Context, ident *ExternalIdentity, username, role string) (*user.User, error) {
	candidates := []string{username}
	for i := 1; i <= 3; i++ {
		suffixed := username + strconv.Itoa(i)
		if len(suffixed) > maxUsernameLen {
			suffixed = canonicalUsername(ident.Subject)
		}
		candidates = append(candidates, suffixed)
	}

	var lastErr error
	for _, name := range candidates {
		ext := ident.Subject
		prov := ident.Provider
		u := &user.User{
			Username:         name,
			Role:             role,
			PasswordHash:     unusablePassword(),
			ExternalID:       &ext,
			ExternalProvider: &prov,
		}

		err := p.users.Create(ctx, u)
		if err == nil {
			return u, nil
		}
		if errors.Is(err, user.ErrDuplicateUsername) {
			// The derived name collided with an account that is already
			// externally linked (otherwise the link path would have taken
			// it). Try the next suffix.
			lastErr = err
			continue
		}
		return nil, err
	}

	return nil, lastErr
}

// deriveUsername produces the deterministic username for an external
// identity: the local part of the email when present and sane, otherwise
// the canonical user_<externalID> form.
func deriveUsername(ident *ExternalIdentity) string {
	if ident.Email != "" {
		local, _, found := strings.Cut(ident.Email, "@")
		if found && local != "" && len(local) <= maxUsernameLen {
			return strings.ToLower(local)
		}
	}
	return canonicalUsername(ident.Subject)
}

func canonicalUsername(externalID string) string {
	name := "user_" + externalID
	if len(name) > maxUsernameLen {
		name = name[:maxUsernameLen]
	}
	return name
}

// unusablePassword returns a placeholder credential that can never verify:
// it is not a valid bcrypt hash, so password comparison always fails.
// External users authenticate only through their identity provider.
func unusablePassword() string {
	b := make([]byte, 24)
	_, _ = rand.Read(b)
	return "!external:" + base64.RawURLEncoding.EncodeToString(b)
}
