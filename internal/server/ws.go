package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ayusman/signbridge/internal/observability"
	"github.com/ayusman/signbridge/internal/server/api"
	"github.com/ayusman/signbridge/internal/speech"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const (
	writeWait           = 5 * time.Second
	diagnosticsInterval = 250 * time.Millisecond
)

// EventsHandler pushes a snapshot to the client after every state change, and
// periodically while the snapshot carries diagnostics.
// While connected, the client counts as a visible preview.
type EventsHandler struct {
	translator api.Translator
	preview    PreviewSource
	logger     zerolog.Logger
}

// NewEventsHandler creates an EventsHandler. preview may be nil.
func NewEventsHandler(t api.Translator, preview PreviewSource) *EventsHandler {
	return &EventsHandler{
		translator: t,
		preview:    preview,
		logger:     observability.Component("server"),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if h.preview != nil {
		detach := h.preview.Attach()
		defer detach()
	}

	snapshots, unsubscribe := h.translator.Subscribe()
	defer unsubscribe()

	// The read loop only detects the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(diagnosticsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			return
		case <-ticker.C:
			snap := h.translator.Snapshot()
			if len(snap.Diagnostics) == 0 {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case snap, ok := <-snapshots:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		}
	}
}

// transcriptMessage echoes a transcript to the dictating client.
type transcriptMessage struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// DictationHandler relays binary audio frames from the client to a speech
// transcriber and feeds the transcripts into the translator.
type DictationHandler struct {
	translator  api.Translator
	transcriber speech.Transcriber
	logger      zerolog.Logger
}

// NewDictationHandler creates a DictationHandler.
func NewDictationHandler(t api.Translator, tr speech.Transcriber) *DictationHandler {
	return &DictationHandler{
		translator:  t,
		transcriber: tr,
		logger:      observability.Component("dictation"),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *DictationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	transcripts := make(chan speech.Transcript, 16)
	stream, err := h.transcriber.Open(ctx, func(t speech.Transcript) {
		select {
		case transcripts <- t:
		case <-ctx.Done():
		}
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to open transcription stream")
		msg, _ := json.Marshal(map[string]string{"type": "error", "error": err.Error()})
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.TextMessage, msg)
		return
	}
	defer stream.Close()

	go func() {
		defer cancel()
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind != websocket.BinaryMessage {
				continue
			}
			if err := stream.SendAudio(data); err != nil {
				h.logger.Warn().Err(err).Msg("failed to forward audio")
				return
			}
		}
	}()

	var session speech.Session
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-transcripts:
			if t.Text == "" {
				continue
			}
			text := session.Add(t)
			h.translator.Dictate(text)

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(transcriptMessage{Type: "transcript", Text: text, IsFinal: t.IsFinal}); err != nil {
				return
			}
		}
	}
}
