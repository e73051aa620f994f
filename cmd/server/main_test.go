package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/clusterportal/internal/cache"
	"github.com/kiranshivaraju/clusterportal/internal/jobs"
	"github.com/kiranshivaraju/clusterportal/internal/jobs/mock"
	"github.com/kiranshivaraju/clusterportal/internal/store"
	"github.com/kiranshivaraju/clusterportal/pkg/models"
)

// ─── mock store ──────────────────────────────────────────────────────────────

type testStore struct {
	pingErr error
}

func (s *testStore) Ping(_ context.Context) error { return s.pingErr }
func (s *testStore) GetUser(_ context.Context, _ string) (*models.User, error) {
	return nil, store.ErrNotFound
}
func (s *testStore) CreateUserIfNotExists(_ context.Context, _ string, _ *models.User) (bool, error) {
	return false, nil
}
func (s *testStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *testStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *testStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error      { return nil }
func (s *testStore) ListAPIKeys(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *testStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ string) error { return nil }

var _ store.Store = (*testStore)(nil)

// ─── mock cache ──────────────────────────────────────────────────────────────

type testCache struct {
	pingErr error
}

func (c *testCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *testCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *testCache) Delete(_ context.Context, _ string) error                          { return nil }
func (c *testCache) Ping(_ context.Context) error                                      { return c.pingErr }
func (c *testCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

var _ cache.Cache = (*testCache)(nil)

// ─── health handler tests ───────────────────────────────────────────────────

func checkHealth(t *testing.T, h http.HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/api/v1/health", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestHealthHandler_AllOK(t *testing.T) {
	w, body := checkHealth(t, healthHandler(&testStore{}, &testCache{}, mock.NewMockClient()))

	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	services := data["services"].(map[string]any)
	assert.Equal(t, "ok", services["database"])
	assert.Equal(t, "ok", services["cache"])
	assert.Equal(t, "ok", services["jobs"])
}

func TestHealthHandler_Degraded(t *testing.T) {
	down := errors.New("connection refused")

	tests := []struct {
		name    string
		store   *testStore
		cache   *testCache
		jobs    jobs.Client
		service string
	}{
		{"database", &testStore{pingErr: down}, &testCache{}, mock.NewMockClient(), "database"},
		{"cache", &testStore{}, &testCache{pingErr: down}, mock.NewMockClient(), "cache"},
		{"jobs", &testStore{}, &testCache{}, mock.NewFailingClient(jobs.ErrJobsUnreachable), "jobs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := checkHealth(t, healthHandler(tt.store, tt.cache, tt.jobs))

			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "DEGRADED", errObj["code"])
			details := errObj["details"].(map[string]any)
			assert.Equal(t, "degraded", details[tt.service])
		})
	}
}

func TestHealthHandler_AllDegraded(t *testing.T) {
	w, body := checkHealth(t, healthHandler(
		&testStore{pingErr: errors.New("db down")},
		&testCache{pingErr: errors.New("redis down")},
		mock.NewFailingClient(jobs.ErrJobsTimeout),
	))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Len(t, details, 3)
	for _, v := range details {
		assert.Equal(t, "degraded", v)
	}
}

// ─── run() config validation tests ──────────────────────────────────────────

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "REDIS_URL", "JOBS_API_URL", "AUTH_JWT_SECRET",
	} {
		t.Setenv(key, "")
	}
}

func TestRun_FailsOnMissingConfig(t *testing.T) {
	clearConfigEnv(t)

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnInvalidDatabaseURL(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("DATABASE_URL", "not-a-valid-url")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("JOBS_API_URL", "http://localhost:9186")
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef0123")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect database")
}

// ─── shutdown timeout constant test ─────────────────────────────────────────

func TestShutdownTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, shutdownTimeout)
}
