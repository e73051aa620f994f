package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/kiranshivaraju/clusterportal/internal/api/middleware"
	"github.com/kiranshivaraju/clusterportal/internal/api/response"
	"github.com/kiranshivaraju/clusterportal/internal/jobs"
	"github.com/kiranshivaraju/clusterportal/internal/portal"
	"github.com/kiranshivaraju/clusterportal/pkg/models"
)

// JobViews defines the portal operations the job handlers depend on.
type JobViews interface {
	StatusPanel(ctx context.Context, username string) (portal.StatusPanel, error)
	Detail(ctx context.Context, username, jobName string) (*portal.JobDetail, error)
	Config(ctx context.Context, username, jobName string) (models.JobConfig, error)
	Stop(ctx context.Context, username, jobName string) error
}

// JobsHandler serves the job status panel and job summaries.
type JobsHandler struct {
	views JobViews
}

func NewJobsHandler(views JobViews) *JobsHandler {
	return &JobsHandler{views: views}
}

// Status handles GET /api/v1/jobs/status for the caller's own jobs.
func (h *JobsHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := mw.GetIdentity(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing identity", nil)
		return
	}

	panel, err := h.views.StatusPanel(r.Context(), id.Username)
	if err != nil {
		writeJobsError(w, r, err)
		return
	}
	response.JSON(w, panel)
}

// Summary handles GET /api/v1/jobs/{username}/{jobName}.
func (h *JobsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	username, jobName := jobParams(r)

	d, err := h.views.Detail(r.Context(), username, jobName)
	if err != nil {
		writeJobsError(w, r, err)
		return
	}
	response.JSON(w, d.Summary)
}

// Config handles GET /api/v1/jobs/{username}/{jobName}/config.
func (h *JobsHandler) Config(w http.ResponseWriter, r *http.Request) {
	username, jobName := jobParams(r)

	cfg, err := h.views.Config(r.Context(), username, jobName)
	if err != nil {
		writeJobsError(w, r, err)
		return
	}
	response.JSON(w, cfg)
}

// Stop handles POST /api/v1/jobs/{username}/{jobName}/stop.
func (h *JobsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	username, jobName := jobParams(r)

	if err := h.views.Stop(r.Context(), username, jobName); err != nil {
		writeJobsError(w, r, err)
		return
	}
	response.Accepted(w, map[string]string{
		"username":       username,
		"job_name":       jobName,
		"execution_type": models.ExecutionTypeStop,
	})
}

func jobParams(r *http.Request) (string, string) {
	return chi.URLParam(r, "username"), chi.URLParam(r, "jobName")
}

// jobsErrorStatus maps portal and job system failures to an HTTP status and
// error code.
func jobsErrorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		return http.StatusNotFound, "JOB_NOT_FOUND", "Job not found"
	case errors.Is(err, portal.ErrNoConfig):
		return http.StatusNotFound, "CONFIG_NOT_FOUND", "Job config not found"
	case errors.Is(err, portal.ErrNotStoppable):
		return http.StatusConflict, "JOB_NOT_STOPPABLE", "Only waiting or running jobs can be stopped"
	case errors.Is(err, jobs.ErrJobsTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "JOB_SYSTEM_TIMEOUT", "The job system took too long to respond"
	case errors.Is(err, jobs.ErrJobsForbidden):
		return http.StatusForbidden, "JOB_SYSTEM_FORBIDDEN", "The job system denied access for these credentials"
	case errors.Is(err, jobs.ErrJobsUnreachable):
		return http.StatusBadGateway, "JOB_SYSTEM_UNAVAILABLE", "The job system is not available"
	case errors.Is(err, jobs.ErrJobsQueryError):
		return http.StatusBadGateway, "JOB_SYSTEM_ERROR", "The job system rejected the request"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"
	}
}

func writeJobsError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := jobsErrorStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("job request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", mw.GetRequestID(r),
		)
	}
	response.Error(w, status, code, msg, nil)
}
