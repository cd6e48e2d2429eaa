package apikey

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memRepo struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*Key
}

func newMemRepo() *memRepo {
	return &memRepo{keys: make(map[uuid.UUID]*Key)}
}

func (r *memRepo) Create(_ context.Context, k *Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k.ID = uuid.New()
	k.CreatedAt = time.Now()
	copied := *k
	r.keys[k.ID] = &copied
	return nil
}

func (r *memRepo) FindByPrefix(_ context.Context, prefix string) ([]Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Key
	for _, k := range r.keys {
		if k.Prefix == prefix && k.RevokedAt == nil {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (r *memRepo) List(_ context.Context) ([]Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Key
	for _, k := range r.keys {
		out = append(out, *k)
	}
	return out, nil
}

func (r *memRepo) Revoke(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[id]
	if !ok {
		return ErrKeyNotFound
	}
	if k.RevokedAt != nil {
		return ErrKeyRevoked
	}
	now := time.Now()
	k.RevokedAt = &now
	return nil
}

func (r *memRepo) CountAll(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys), nil
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, bcrypt.MinCost), repo
}

func TestGenerate_Format(t *testing.T) {
	svc, _ := newTestService()

	rawKey, prefix, hash, err := svc.Generate()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rawKey, "pb_"))
	assert.Len(t, prefix, 8)
	assert.Equal(t, rawKey[:8], prefix)
	// 3-char marker plus 43 chars of base64url for 32 bytes.
	assert.Len(t, rawKey, 46)

	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawKey)))
	assert.NotContains(t, hash, rawKey)
}

func TestGenerate_Unique(t *testing.T) {
	svc, _ := newTestService()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		rawKey, _, _, err := svc.Generate()
		require.NoError(t, err)
		assert.False(t, seen[rawKey], "duplicate key generated")
		seen[rawKey] = true
	}
}

func mint(t *testing.T, svc *Service, repo *memRepo, name string) (string, *Key) {
	t.Helper()
	rawKey, prefix, hash, err := svc.Generate()
	require.NoError(t, err)
	k := &Key{Name: name, Prefix: prefix, Hash: hash, CreatedBy: uuid.New()}
	require.NoError(t, repo.Create(context.Background(), k))
	return rawKey, k
}

func TestResolve(t *testing.T) {
	svc, repo := newTestService()
	rawKey, created := mint(t, svc, repo, "primary")

	resolved, err := svc.Resolve(context.Background(), rawKey)
	require.NoError(t, err)
	assert.Equal(t, created.ID, resolved.ID)
	assert.Equal(t, created.CreatedBy, resolved.CreatedBy)
}

func TestResolve_UnknownSecret(t *testing.T) {
	svc, repo := newTestService()
	mint(t, svc, repo, "primary")

	_, err := svc.Resolve(context.Background(), "pb_completely-wrong-secret-value-here-xxxxxxx")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestResolve_TooShort(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Resolve(context.Background(), "pb_x")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestResolve_SharedPrefixDisambiguated(t *testing.T) {
	svc, repo := newTestService()
	rawKey, created := mint(t, svc, repo, "primary")

	// A second key forced onto the same prefix: only the bcrypt compare
	// can tell them apart.
	otherRaw, _, otherHash, err := svc.Generate()
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), &Key{
		Name: "twin", Prefix: rawKey[:8], Hash: otherHash, CreatedBy: uuid.New(),
	}))
	_ = otherRaw

	resolved, err := svc.Resolve(context.Background(), rawKey)
	require.NoError(t, err)
	assert.Equal(t, created.ID, resolved.ID)
}

func TestResolve_RevokedKey(t *testing.T) {
	svc, repo := newTestService()
	rawKey, created := mint(t, svc, repo, "primary")

	require.NoError(t, repo.Revoke(context.Background(), created.ID))

	_, err := svc.Resolve(context.Background(), rawKey)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestBootstrap(t *testing.T) {
	svc, repo := newTestService()
	ownerID := uuid.New()

	rawKey, err := svc.Bootstrap(context.Background(), ownerID)
	require.NoError(t, err)
	require.NotEmpty(t, rawKey)

	resolved, err := svc.Resolve(context.Background(), rawKey)
	require.NoError(t, err)
	assert.Equal(t, "bootstrap", resolved.Name)
	assert.Equal(t, ownerID, resolved.CreatedBy)

	// Second call is a no-op once any key exists.
	again, err := svc.Bootstrap(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, again)

	count, err := repo.CountAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
