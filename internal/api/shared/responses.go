package shared

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/studyhall/studyhall-api/internal/platform/logger"
)

// ErrorResponse is the JSON envelope for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondWithJSON writes a JSON response with the given status code.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if payload == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode response",
			slog.String("error", err.Error()),
			slog.Int("status", status))
	}
}

// RespondWithError writes a JSON error response with a safe message.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	RespondWithJSON(w, r, status, ErrorResponse{Error: message})
}
