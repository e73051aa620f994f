package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/kiranshivaraju/clusterportal/internal/api/middleware"
	"github.com/kiranshivaraju/clusterportal/internal/api/response"
	"github.com/kiranshivaraju/clusterportal/internal/apperror"
	"github.com/kiranshivaraju/clusterportal/internal/store"
	"github.com/kiranshivaraju/clusterportal/pkg/models"
)

// ErrorHandler receives failures the controllers do not format themselves.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// UserController serves user records. Every store failure, not-found
// included, is forwarded to the error handler as an unknown error.
type UserController struct {
	store   store.Store
	onError ErrorHandler
}

// NewUserController creates a UserController that reports errors through
// response.HandleError.
func NewUserController(s store.Store) *UserController {
	return &UserController{store: s, onError: response.HandleError}
}

// GetUser handles GET /api/v1/users/{username}.
func (c *UserController) GetUser(w http.ResponseWriter, r *http.Request) {
	c.writeUser(w, r, chi.URLParam(r, "username"))
}

// GetSelf handles GET /api/v1/user.
func (c *UserController) GetSelf(w http.ResponseWriter, r *http.Request) {
	id, ok := mw.GetIdentity(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing identity", nil)
		return
	}
	c.writeUser(w, r, id.Username)
}

func (c *UserController) writeUser(w http.ResponseWriter, r *http.Request, username string) {
	user, err := c.store.GetUser(r.Context(), username)
	if err != nil {
		c.onError(w, r, apperror.Unknown(err))
		return
	}
	response.JSON(w, user)
}

// CreateUserIfUserNotExist records the authenticated caller on first sight.
// Existing records are left as they are.
func (c *UserController) CreateUserIfUserNotExist(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := mw.GetIdentity(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing identity", nil)
			return
		}

		created, err := c.store.CreateUserIfNotExists(r.Context(), id.Username, models.NewUserFromIdentity(id))
		if err != nil {
			c.onError(w, r, apperror.Unknown(err))
			return
		}
		if created {
			slog.Info("user created", "username", id.Username)
		}

		next.ServeHTTP(w, r)
	})
}
