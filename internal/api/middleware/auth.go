package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/kiranshivaraju/clusterportal/internal/api/response"
	"github.com/kiranshivaraju/clusterportal/internal/jobs"
	"github.com/kiranshivaraju/clusterportal/internal/store"
	"github.com/kiranshivaraju/clusterportal/pkg/models"
)

const keyPrefixLen = 8

var errUnexpectedSigningMethod = errors.New("unexpected signing method")

// identityClaims are the claims the portal reads from an identity token.
type identityClaims struct {
	Username          string `json:"username"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	OID               string `json:"oid"`
	jwt.RegisteredClaims
}

// Auth provides authentication middleware. Callers present either an HS256
// identity token issued elsewhere or a portal API key.
type Auth struct {
	store    store.Store
	secret   []byte
	validate *validator.Validate
}

// NewAuth creates a new Auth middleware.
func NewAuth(s store.Store, jwtSecret string) *Auth {
	return &Auth{
		store:    s,
		secret:   []byte(jwtSecret),
		validate: validator.New(),
	}
}

// Authenticate validates the Bearer credential and sets the caller's
// identity in the request context. Identity tokens are also forwarded to
// the job system.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractBearerToken(r)
		if raw == "" {
			raw = r.URL.Query().Get("token")
		}
		if raw == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		ctx := r.Context()
		var id models.Identity
		if looksLikeJWT(raw) {
			var err error
			id, err = a.parseToken(raw)
			if err != nil {
				response.Error(w, http.StatusUnauthorized,
					"INVALID_TOKEN", "Invalid or expired token", nil)
				return
			}
			ctx = jobs.WithToken(ctx, raw)
		} else {
			var status int
			id, status = a.matchAPIKey(r, raw)
			switch status {
			case http.StatusOK:
			case http.StatusInternalServerError:
				response.Error(w, status, "INTERNAL_ERROR", "Failed to validate API key", nil)
				return
			default:
				response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid API key", nil)
				return
			}
		}

		if err := a.validate.Struct(id); err != nil {
			slog.Warn("rejecting invalid identity", "error", err)
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Token does not carry a valid identity", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetIdentity(ctx, id)))
	})
}

func (a *Auth) parseToken(raw string) (models.Identity, error) {
	claims := &identityClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Name {
			return nil, errUnexpectedSigningMethod
		}
		return a.secret, nil
	})
	if err != nil {
		return models.Identity{}, err
	}

	username := claims.Username
	if username == "" {
		username = claims.PreferredUsername
	}
	oid := claims.OID
	if oid == "" {
		oid = claims.Subject
	}
	return models.Identity{Username: username, Email: claims.Email, OID: oid}, nil
}

// matchAPIKey looks the key up by prefix and compares hashes. The returned
// status is 200 on a match.
func (a *Auth) matchAPIKey(r *http.Request, raw string) (models.Identity, int) {
	if len(raw) < keyPrefixLen {
		return models.Identity{}, http.StatusUnauthorized
	}

	keys, err := a.store.GetAPIKeyByPrefix(r.Context(), raw[:keyPrefixLen])
	if err != nil {
		slog.Error("api key lookup failed", "error", err)
		return models.Identity{}, http.StatusInternalServerError
	}

	for _, key := range keys {
		if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(raw)) == nil {
			// Update last_used_at async
			go a.store.UpdateAPIKeyLastUsed(context.Background(), key.ID)
			return models.Identity{Username: key.Username, OID: key.ID.String()}, http.StatusOK
		}
	}
	return models.Identity{}, http.StatusUnauthorized
}

func looksLikeJWT(s string) bool {
	return strings.Count(s, ".") == 2
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
