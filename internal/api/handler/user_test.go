package handler_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/clusterportal/internal/api/handler"
	"github.com/kiranshivaraju/clusterportal/pkg/models"
)

func userRouter(c *handler.UserController) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/users/{username}", c.GetUser)
	r.Get("/api/v1/user", c.GetSelf)
	return r
}

func TestGetUser_Found(t *testing.T) {
	ms := newMockStore()
	ms.users["alice"] = &models.User{
		Username:  "alice",
		Email:     "alice@example.com",
		Password:  "secret-oid",
		GroupList: []string{"default"},
		Extension: map[string]any{"theme": "dark"},
	}
	router := userRouter(handler.NewUserController(ms))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/alice", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	decodeData(t, rec, &got)
	assert.Equal(t, "alice", got["username"])
	assert.Equal(t, []any{"default"}, got["grouplist"])
	assert.NotContains(t, got, "password")
	assert.NotContains(t, rec.Body.String(), "secret-oid")
}

func TestGetUser_NotFoundIsUnknownError(t *testing.T) {
	router := userRouter(handler.NewUserController(newMockStore()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/ghost", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "UNKNOWN_ERROR", errorCode(t, rec))
}

func TestGetUser_StoreFailureIsUnknownError(t *testing.T) {
	ms := newMockStore()
	ms.userErr = errors.New("connection reset")
	router := userRouter(handler.NewUserController(ms))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/alice", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "UNKNOWN_ERROR", errorCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestGetSelf(t *testing.T) {
	ms := newMockStore()
	ms.users["bob"] = &models.User{Username: "bob", GroupList: []string{}, Extension: map[string]any{}}
	router := userRouter(handler.NewUserController(ms))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/api/v1/user", nil), "bob"))

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.User
	decodeData(t, rec, &got)
	assert.Equal(t, "bob", got.Username)
}

func TestGetSelf_NoIdentity(t *testing.T) {
	router := userRouter(handler.NewUserController(newMockStore()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/user", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateUserIfUserNotExist_CreatesDefaultRecord(t *testing.T) {
	ms := newMockStore()
	c := handler.NewUserController(ms)

	called := false
	h := c.CreateUserIfUserNotExist(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), "carol"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)

	u := ms.users["carol"]
	require.NotNil(t, u)
	assert.Equal(t, "carol@example.com", u.Email)
	assert.Equal(t, "oid-carol", u.Password)
	assert.Empty(t, u.GroupList)
	assert.NotNil(t, u.GroupList)
	assert.Empty(t, u.Extension)
	assert.NotNil(t, u.Extension)
}

func TestCreateUserIfUserNotExist_KeepsExistingRecord(t *testing.T) {
	ms := newMockStore()
	existing := &models.User{
		Username:  "carol",
		Email:     "old@example.com",
		Password:  "old-oid",
		GroupList: []string{"admin"},
		Extension: map[string]any{},
	}
	ms.users["carol"] = existing
	c := handler.NewUserController(ms)

	h := c.CreateUserIfUserNotExist(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), "carol"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	assert.Same(t, existing, ms.users["carol"])
	assert.Equal(t, []string{"admin"}, ms.users["carol"].GroupList)
	assert.Equal(t, 0, ms.creates)
}

func TestCreateUserIfUserNotExist_StoreFailure(t *testing.T) {
	ms := newMockStore()
	ms.userErr = errors.New("db down")
	c := handler.NewUserController(ms)

	called := false
	h := c.CreateUserIfUserNotExist(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), "dave"))

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "UNKNOWN_ERROR", errorCode(t, rec))
}
