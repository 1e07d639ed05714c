package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/signbridge/internal/speech"
)

// SpeakHandler serves POST /api/speak. An empty body speaks the current text.
type SpeakHandler struct {
	translator  Translator
	synthesizer speech.Synthesizer
}

// NewSpeakHandler creates a SpeakHandler.
func NewSpeakHandler(t Translator, s speech.Synthesizer) *SpeakHandler {
	return &SpeakHandler{translator: t, synthesizer: s}
}

type speakRequest struct {
	Text string `json:"text"`
}

// ServeHTTP implements http.Handler.
func (h *SpeakHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req speakRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = strings.TrimSpace(h.translator.Snapshot().Text)
	}
	if text == "" {
		writeError(w, http.StatusBadRequest, "nothing to speak")
		return
	}

	audio, err := h.synthesizer.Synthesize(r.Context(), text)
	if err != nil {
		if errors.Is(err, speech.ErrDisabled) {
			writeError(w, http.StatusServiceUnavailable, "speech is not configured")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", audio.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(audio.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(audio.Data)
}
