package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/bhc/internal/apperr"
)

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

// statusFor maps the error taxonomy onto an HTTP status and the message
// shown to the client. Unclassified errors are internal and not echoed.
func statusFor(err error) (int, string) {
	var (
		parseErr *apperr.ParseError
		classErr *apperr.ClassificationError
	)
	switch {
	case errors.As(err, &classErr), errors.Is(err, apperr.ErrNoWorkspace):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, apperr.ErrNoStylesheets):
		return http.StatusUnprocessableEntity, apperr.ErrNoStylesheets.Error()
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(w http.ResponseWriter, op string, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody(msg))
}
