package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	appMiddleware "github.com/agrimind/farm-assist/app/middleware"
	"github.com/agrimind/farm-assist/internal/types"
)

// Response represents a generic API response for success or error messages.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RequestUserID resolves the authenticated user from the request context,
// writing the error response itself when authentication is missing.
func RequestUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := appMiddleware.GetUserIDFromContext(r.Context())
	if !ok || userIDStr == "" {
		ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		ErrorResponse(w, r, http.StatusUnauthorized, "Invalid user session")
		return uuid.Nil, false
	}
	return userID, true
}

// StatusFromError maps domain errors to HTTP status codes.
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, types.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, types.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
