package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/kiranshivaraju/clusterportal/internal/api/middleware"
	"github.com/kiranshivaraju/clusterportal/internal/api/response"
	"github.com/kiranshivaraju/clusterportal/internal/store"
	"github.com/kiranshivaraju/clusterportal/pkg/models"
)

const apiKeyPrefix = "cpk_"

type createKeyRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// TokensHandler lets callers manage their own API keys.
type TokensHandler struct {
	store    store.Store
	validate *validator.Validate
}

func NewTokensHandler(s store.Store) *TokensHandler {
	return &TokensHandler{store: s, validate: validator.New()}
}

// Create handles POST /api/v1/tokens. The raw key is only returned here.
func (h *TokensHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := mw.GetIdentity(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing identity", nil)
		return
	}

	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
			"name is required and must be at most 100 characters", nil)
		return
	}

	rawKey := apiKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create key", nil)
		return
	}

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:        uuid.New(),
		Username:  id.Username,
		Name:      req.Name,
		KeyHash:   string(hash),
		KeyPrefix: rawKey[:8],
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.store.CreateAPIKey(r.Context(), key); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			response.Error(w, http.StatusConflict, "DUPLICATE_KEY", "API key with this name already exists", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create key", nil)
		return
	}

	response.Created(w, map[string]any{
		"id":         key.ID.String(),
		"name":       key.Name,
		"key":        rawKey,
		"key_prefix": key.KeyPrefix,
		"created_at": key.CreatedAt,
	})
}

// List handles GET /api/v1/tokens.
func (h *TokensHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := mw.GetIdentity(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing identity", nil)
		return
	}

	keys, err := h.store.ListAPIKeys(r.Context(), id.Username)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list keys", nil)
		return
	}
	response.JSON(w, keys)
}

// Revoke handles DELETE /api/v1/tokens/{keyID}.
func (h *TokensHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, ok := mw.GetIdentity(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing identity", nil)
		return
	}

	keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_KEY_ID", "Invalid key ID format", nil)
		return
	}

	if err := h.store.RevokeAPIKey(r.Context(), keyID, id.Username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "KEY_NOT_FOUND", "API key not found", nil)
			return
		}
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke key", nil)
		return
	}
	response.NoContent(w)
}
