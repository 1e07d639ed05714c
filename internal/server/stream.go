package server

import (
	"fmt"
	"net/http"
	"time"
)

// PreviewSource is the camera preview surface.
type PreviewSource interface {
	Latest() (frame []byte, seq uint64, ok bool)
	Attach() func()
}

const streamInterval = 66 * time.Millisecond // ~15 FPS

// StreamHandler serves the preview as MJPEG. A connected client counts as a visible view.
type StreamHandler struct {
	preview PreviewSource
}

// NewStreamHandler creates a new StreamHandler for the given preview.
func NewStreamHandler(preview PreviewSource) *StreamHandler {
	return &StreamHandler{preview: preview}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	detach := h.preview.Attach()
	defer detach()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var lastSeq uint64
	sent := false
	for {
		frame, seq, ok := h.preview.Latest()
		if ok && (!sent || seq != lastSeq) {
			if err := writeFrame(w, frame); err != nil {
				return
			}
			lastSeq = seq
			sent = true
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writeFrame(w http.ResponseWriter, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
