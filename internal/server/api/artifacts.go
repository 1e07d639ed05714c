package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/signbridge/internal/resource"
)

// PoseContentType is the media type of pose artifacts.
const PoseContentType = "application/pose"

// ArtifactSource resolves artifact handles by ID.
type ArtifactSource interface {
	Artifact(id string) (*resource.Handle, error)
}

// ArtifactHandler serves GET /api/artifacts/{id}. Revoked and unknown handles are 404.
type ArtifactHandler struct {
	artifacts ArtifactSource
}

// NewArtifactHandler creates an ArtifactHandler.
func NewArtifactHandler(a ArtifactSource) *ArtifactHandler {
	return &ArtifactHandler{artifacts: a}
}

// ServeHTTP implements http.Handler.
func (h *ArtifactHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/artifacts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}

	handle, err := h.artifacts.Artifact(id)
	if err != nil {
		if errors.Is(err, resource.ErrRevoked) {
			writeError(w, http.StatusNotFound, "artifact not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data, release, err := handle.Acquire()
	if err != nil {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	defer release()

	w.Header().Set("Content-Type", PoseContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
