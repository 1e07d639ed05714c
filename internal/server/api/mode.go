package api

import (
	"encoding/json"
	"net/http"
)

// ModeHandler serves the state and mode command endpoints:
//
//	GET  /api/state
//	POST /api/mode/direction
//	POST /api/mode/variant
//	POST /api/input          {"text": "..."}
//	POST /api/camera/retry
//
// Commands answer with the snapshot taken after the command was applied.
type ModeHandler struct {
	translator Translator
}

// NewModeHandler creates a ModeHandler.
func NewModeHandler(t Translator) *ModeHandler {
	return &ModeHandler{translator: t}
}

type inputRequest struct {
	Text string `json:"text"`
}

// ServeHTTP routes by path.
func (h *ModeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/state" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.translator.Snapshot())
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var err error
	switch r.URL.Path {
	case "/api/mode/direction":
		err = h.translator.ToggleDirection()
	case "/api/mode/variant":
		err = h.translator.ToggleVariant()
	case "/api/camera/retry":
		err = h.translator.RetryCamera()
	case "/api/input":
		var req inputRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		err = h.translator.SetInput(req.Text)
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		writeError(w, commandStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.translator.Snapshot())
}
