package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/clusterportal/internal/apperror"
)

type envelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Data: data})
}

func Accepted(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusAccepted, envelope{Data: data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Error(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// HandleError is the error collaborator controllers forward failures to.
// The underlying cause is logged but never sent to the client.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	kind, _ := apperror.KindOf(err)

	slog.Error("request failed",
		"error", err,
		"kind", string(kind),
		"method", r.Method,
		"path", r.URL.Path,
	)

	switch kind {
	case apperror.KindUnknown:
		Error(w, http.StatusInternalServerError, "UNKNOWN_ERROR", "An unknown error occurred", nil)
	default:
		Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
