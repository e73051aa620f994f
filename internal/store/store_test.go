package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/clusterportal/internal/store"
	"github.com/kiranshivaraju/clusterportal/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("portal_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func seedUser(t *testing.T, s store.Store, username string) {
	t.Helper()
	_, err := s.CreateUserIfNotExists(context.Background(), username, models.NewUserFromIdentity(models.Identity{
		Username: username,
		Email:    username + "@example.com",
		OID:      "oid-" + username,
	}))
	require.NoError(t, err)
}

// --- Migration Tests ---

func TestRunMigrations_Idempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)

	// setupTestDB already migrated; a second run must be a no-op.
	connStr := pool.Config().ConnString()
	assert.NoError(t, store.RunMigrations(connStr, migrationsDir()))
}

// --- User Tests ---

func TestUser_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	created, err := s.CreateUserIfNotExists(ctx, "alice", &models.User{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "oid-1",
		GroupList: []string{},
		Extension: map[string]any{},
	})
	require.NoError(t, err)
	assert.True(t, created)

	u, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "oid-1", u.Password)
	assert.Empty(t, u.GroupList)
	assert.NotNil(t, u.GroupList)
	assert.Empty(t, u.Extension)
	assert.False(t, u.CreatedAt.IsZero())
}

func TestUser_CreateIfNotExists_KeepsFirstRecord(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	first := &models.User{Username: "bob", Email: "bob@first.example.com", Password: "oid-first"}
	second := &models.User{Username: "bob", Email: "bob@second.example.com", Password: "oid-second"}

	created, err := s.CreateUserIfNotExists(ctx, "bob", first)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateUserIfNotExists(ctx, "bob", second)
	require.NoError(t, err)
	assert.False(t, created)

	u, err := s.GetUser(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob@first.example.com", u.Email)
	assert.Equal(t, "oid-first", u.Password)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE username = 'bob'`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestUser_CreateIfNotExists_Concurrent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := s.CreateUserIfNotExists(ctx, "carol", &models.User{Username: "carol"})
			assert.NoError(t, err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
}

func TestUser_GroupListAndExtension(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	_, err := s.CreateUserIfNotExists(ctx, "dave", &models.User{
		Username:  "dave",
		GroupList: []string{"default", "vc-a"},
		Extension: map[string]any{"virtualCluster": []any{"default"}},
	})
	require.NoError(t, err)

	u, err := s.GetUser(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "vc-a"}, u.GroupList)
	assert.Equal(t, []any{"default"}, u.Extension["virtualCluster"])
}

func TestUser_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- API Key Tests ---

func TestAPIKey_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	seedUser(t, s, "alice")

	now := time.Now().UTC().Truncate(time.Microsecond)
	key := &models.APIKey{
		ID:        uuid.New(),
		Username:  "alice",
		Name:      "ci-token",
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: "cp_abcde",
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, s.CreateAPIKey(ctx, key))

	keys, err := s.GetAPIKeyByPrefix(ctx, "cp_abcde")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, "alice", keys[0].Username)
	assert.Equal(t, "ci-token", keys[0].Name)
}

func TestAPIKey_CreateDuplicateID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	seedUser(t, s, "alice")

	now := time.Now().UTC()
	key := &models.APIKey{
		ID: uuid.New(), Username: "alice", Name: "k", KeyHash: "h", KeyPrefix: "cp_dup00",
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))
	assert.ErrorIs(t, s.CreateAPIKey(ctx, key), store.ErrDuplicateKey)
}

func TestAPIKey_DuplicateNamePerUser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	seedUser(t, s, "alice")
	seedUser(t, s, "bob")

	now := time.Now().UTC()
	newKey := func(username string) *models.APIKey {
		return &models.APIKey{
			ID: uuid.New(), Username: username, Name: "ci", KeyHash: "h", KeyPrefix: "cp_" + uuid.NewString()[:5],
			CreatedAt: now, UpdatedAt: now,
		}
	}

	first := newKey("alice")
	require.NoError(t, s.CreateAPIKey(ctx, first))
	assert.ErrorIs(t, s.CreateAPIKey(ctx, newKey("alice")), store.ErrDuplicateKey)
	assert.NoError(t, s.CreateAPIKey(ctx, newKey("bob")))

	// A revoked key frees its name.
	require.NoError(t, s.RevokeAPIKey(ctx, first.ID, "alice"))
	assert.NoError(t, s.CreateAPIKey(ctx, newKey("alice")))
}

func TestAPIKey_ListScopedToUser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	seedUser(t, s, "alice")
	seedUser(t, s, "bob")
	now := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateAPIKey(ctx, &models.APIKey{
			ID:        uuid.New(),
			Username:  "alice",
			Name:      "key-" + uuid.NewString()[:4],
			KeyHash:   "hash-" + uuid.NewString()[:4],
			KeyPrefix: "cp_" + uuid.NewString()[:5],
			CreatedAt: now,
			UpdatedAt: now,
		}))
	}
	require.NoError(t, s.CreateAPIKey(ctx, &models.APIKey{
		ID: uuid.New(), Username: "bob", Name: "bobs", KeyHash: "h", KeyPrefix: "cp_bob00",
		CreatedAt: now, UpdatedAt: now,
	}))

	keys, err := s.ListAPIKeys(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	keys, err = s.ListAPIKeys(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, keys)
	assert.Empty(t, keys)
}

func TestAPIKey_Revoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	seedUser(t, s, "alice")
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := &models.APIKey{
		ID:        uuid.New(),
		Username:  "alice",
		Name:      "revoke-me",
		KeyHash:   "hash",
		KeyPrefix: "cp_revok",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	// Another user cannot revoke it.
	assert.ErrorIs(t, s.RevokeAPIKey(ctx, key.ID, "mallory"), store.ErrNotFound)

	require.NoError(t, s.RevokeAPIKey(ctx, key.ID, "alice"))

	keys, err := s.ListAPIKeys(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, keys)

	keys, err = s.GetAPIKeyByPrefix(ctx, "cp_revok")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAPIKey_RevokeNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.RevokeAPIKey(context.Background(), uuid.New(), "alice")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAPIKey_UpdateLastUsed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	seedUser(t, s, "alice")
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := &models.APIKey{
		ID: uuid.New(), Username: "alice", Name: "used", KeyHash: "h", KeyPrefix: "cp_used0",
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))
	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))

	keys, err := s.GetAPIKeyByPrefix(ctx, "cp_used0")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)
}

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	assert.NoError(t, s.Ping(context.Background()))
}
