package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paperbase/paperbase/internal/apikey"
	"github.com/paperbase/paperbase/internal/user"
)

// memUserRepo is an in-memory user.Repository for tests.
type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*user.User

	// beforeCreate, when set, runs once at the start of the next Create
	// call. Used to simulate a concurrent request winning a race.
	beforeCreate func(r *memUserRepo)
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]*user.User)}
}

func copyUser(u *user.User) *user.User {
	c := *u
	return &c
}

func (r *memUserRepo) insertLocked(u *user.User) error {
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return user.ErrDuplicateUsername
		}
		if u.ExternalID != nil && existing.ExternalID != nil &&
			*existing.ExternalID == *u.ExternalID && *existing.ExternalProvider == *u.ExternalProvider {
			return user.ErrDuplicateExternalID
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.users[u.ID] = copyUser(u)
	return nil
}

func (r *memUserRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.beforeCreate != nil {
		hook := r.beforeCreate
		r.beforeCreate = nil
		hook(r)
	}
	return r.insertLocked(u)
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return copyUser(u), nil
	}
	return nil, user.ErrUserNotFound
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r *memUserRepo) GetByExternal(_ context.Context, externalID, provider string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ExternalID != nil && *u.ExternalID == externalID && *u.ExternalProvider == provider {
			return copyUser(u), nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r *memUserRepo) LinkExternal(_ context.Context, id uuid.UUID, externalID, provider, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID != id && u.ExternalID != nil && *u.ExternalID == externalID && *u.ExternalProvider == provider {
			return user.ErrDuplicateExternalID
		}
	}
	u, ok := r.users[id]
	if !ok {
		return user.ErrUserNotFound
	}
	u.ExternalID = &externalID
	u.ExternalProvider = &provider
	u.Role = role
	return nil
}

func (r *memUserRepo) UpdateRole(_ context.Context, id uuid.UUID, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return user.ErrUserNotFound
	}
	u.Role = role
	return nil
}

func (r *memUserRepo) SetSuspended(_ context.Context, id uuid.UUID, suspended bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return user.ErrUserNotFound
	}
	u.Suspended = suspended
	return nil
}

func (r *memUserRepo) List(_ context.Context) ([]user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]user.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r *memUserRepo) CountAll(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

// memKeyRepo is an in-memory apikey.Repository for tests.
type memKeyRepo struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*apikey.Key
}

func newMemKeyRepo() *memKeyRepo {
	return &memKeyRepo{keys: make(map[uuid.UUID]*apikey.Key)}
}

func (r *memKeyRepo) Create(_ context.Context, k *apikey.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k.ID = uuid.New()
	k.CreatedAt = time.Now()
	copied := *k
	r.keys[k.ID] = &copied
	return nil
}

func (r *memKeyRepo) FindByPrefix(_ context.Context, prefix string) ([]apikey.Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []apikey.Key
	for _, k := range r.keys {
		if k.Prefix == prefix && k.RevokedAt == nil {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (r *memKeyRepo) List(_ context.Context) ([]apikey.Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []apikey.Key
	for _, k := range r.keys {
		out = append(out, *k)
	}
	return out, nil
}

func (r *memKeyRepo) Revoke(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return apikey.ErrKeyNotFound
	}
	if k.RevokedAt != nil {
		return apikey.ErrKeyRevoked
	}
	now := time.Now()
	k.RevokedAt = &now
	return nil
}

func (r *memKeyRepo) CountAll(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys), nil
}

// captureRecorder collects audit events for assertions.
type captureRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureRecorder) Record(_ context.Context, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureRecorder) last() (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return Event{}, false
	}
	return c.events[len(c.events)-1], true
}
