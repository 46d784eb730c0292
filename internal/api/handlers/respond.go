package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	middleware "github.com/markdave123-py/ragdesk/internal/api/middlewares"
	"github.com/markdave123-py/ragdesk/internal/core"
	"github.com/markdave123-py/ragdesk/internal/logger"
)

type errorBody struct {
	Message string `json:"message"`
}

// statusFor maps a failure kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidRequest),
		errors.Is(err, core.ErrNotSupported),
		errors.Is(err, core.ErrMissingCredentials),
		errors.Is(err, core.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Message: msg})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	l := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		l.Error("request failed", zap.Error(err))
	} else {
		l.Info("request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeMessage(w, status, err.Error())
}

// userID returns the authenticated user or writes a 401.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "user_id not found in context")
	}
	return id, ok
}
