// Package api provides the HTTP handlers of the translator API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/signbridge/internal/mode"
)

// Translator is the mode controller surface the handlers drive.
type Translator interface {
	Snapshot() mode.Snapshot
	ToggleDirection() error
	ToggleVariant() error
	SetInput(text string) error
	RetryCamera() error
	Dictate(transcript string)
	Subscribe() (<-chan mode.Snapshot, func())
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// commandStatus maps a controller error to an HTTP status.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, mode.ErrDirection):
		return http.StatusConflict
	case errors.Is(err, mode.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
