package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	mw "github.com/kiranshivaraju/clusterportal/internal/api/middleware"
	"github.com/kiranshivaraju/clusterportal/internal/cache"
	"github.com/kiranshivaraju/clusterportal/internal/store"
	"github.com/kiranshivaraju/clusterportal/pkg/models"
)

// ─── mock store ──────────────────────────────────────────────────────────────

type mockStore struct {
	mu      sync.Mutex
	users   map[string]*models.User
	keys    []*models.APIKey
	userErr error
	keyErr  error
	creates int
}

func newMockStore() *mockStore {
	return &mockStore{users: map[string]*models.User{}}
}

func (s *mockStore) Ping(_ context.Context) error { return nil }

func (s *mockStore) GetUser(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userErr != nil {
		return nil, s.userErr
	}
	u, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (s *mockStore) CreateUserIfNotExists(_ context.Context, username string, user *models.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userErr != nil {
		return false, s.userErr
	}
	if _, ok := s.users[username]; ok {
		return false, nil
	}
	u := *user
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	s.users[username] = &u
	s.creates++
	return true, nil
}

func (s *mockStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			out = append(out, k)
		}
	}
	return out, s.keyErr
}

func (s *mockStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }

func (s *mockStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keyErr != nil {
		return s.keyErr
	}
	for _, k := range s.keys {
		if k.Username == key.Username && k.Name == key.Name && k.DeletedAt == nil {
			return store.ErrDuplicateKey
		}
	}
	s.keys = append(s.keys, key)
	return nil
}

func (s *mockStore) ListAPIKeys(_ context.Context, username string) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.APIKey{}
	for _, k := range s.keys {
		if k.Username == username && k.DeletedAt == nil {
			out = append(out, k)
		}
	}
	return out, s.keyErr
}

func (s *mockStore) RevokeAPIKey(_ context.Context, id uuid.UUID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keyErr != nil {
		return s.keyErr
	}
	for _, k := range s.keys {
		if k.ID == id && k.Username == username && k.DeletedAt == nil {
			now := time.Now()
			k.DeletedAt = &now
			return nil
		}
	}
	return store.ErrNotFound
}

var _ store.Store = (*mockStore)(nil)

// ─── mock cache ──────────────────────────────────────────────────────────────

type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	counter map[string]int64
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}, counter: map[string]int64{}}
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *mockCache) Ping(_ context.Context) error { return nil }

func (c *mockCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter[key]++
	return c.counter[key], nil
}

var _ cache.Cache = (*mockCache)(nil)

// ─── helpers ─────────────────────────────────────────────────────────────────

func withIdentity(r *http.Request, username string) *http.Request {
	id := models.Identity{Username: username, Email: username + "@example.com", OID: "oid-" + username}
	return r.WithContext(mw.SetIdentity(r.Context(), id))
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	env := struct {
		Data any `json:"data"`
	}{Data: v}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Error.Code
}
