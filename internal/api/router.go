package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/kiranshivaraju/clusterportal/internal/api/middleware"
	"github.com/kiranshivaraju/clusterportal/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit
	// RegisterUser runs after authentication on every protected route.
	RegisterUser func(http.Handler) http.Handler

	HealthHandler http.HandlerFunc

	GetUser http.HandlerFunc
	GetSelf http.HandlerFunc

	JobStatus  http.HandlerFunc
	JobSummary http.HandlerFunc
	JobConfig  http.HandlerFunc
	StopJob    http.HandlerFunc
	WatchJob   http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)
		if deps.RegisterUser != nil {
			r.Use(deps.RegisterUser)
		}

		r.Get("/api/v1/user", orNotImplemented(deps.GetSelf))
		r.Get("/api/v1/users/{username}", orNotImplemented(deps.GetUser))

		r.Get("/api/v1/jobs/status", orNotImplemented(deps.JobStatus))
		r.Route("/api/v1/jobs/{username}/{jobName}", func(r chi.Router) {
			r.Get("/", orNotImplemented(deps.JobSummary))
			r.Get("/config", orNotImplemented(deps.JobConfig))
			r.Post("/stop", orNotImplemented(deps.StopJob))
			r.Get("/watch", orNotImplemented(deps.WatchJob))
		})

		r.Post("/api/v1/tokens", orNotImplemented(deps.CreateKeyHandler))
		r.Get("/api/v1/tokens", orNotImplemented(deps.ListKeysHandler))
		r.Delete("/api/v1/tokens/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
