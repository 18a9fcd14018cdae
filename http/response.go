package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/clayloft/kilncat"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes the error response matching the error's taxonomy class.
func HandleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, kilncat.ErrExpiredToken):
		WriteError(w, http.StatusUnauthorized, "expired_token", "Token expired")
	case errors.Is(err, kilncat.ErrInvalidToken):
		WriteError(w, http.StatusUnauthorized, "invalid_token", "Invalid token")
	case errors.Is(err, kilncat.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
	case errors.Is(err, kilncat.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "Forbidden")
	case errors.Is(err, kilncat.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "Not found")
	case errors.Is(err, kilncat.ErrConflict):
		WriteError(w, http.StatusConflict, "conflict", "Conflict")
	case errors.Is(err, kilncat.ErrAuthUnavailable), errors.Is(err, kilncat.ErrUnavailable):
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable")
	case errors.Is(err, kilncat.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "invalid_input", err.Error())
	default:
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
