// Package resource owns the camera device and the handles backing fetched pose artifacts.
// It is the only component that releases them.
package resource

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ayusman/signbridge/internal/capture"
	"github.com/ayusman/signbridge/internal/observability"
)

// ErrCameraBusy is returned when a capture session is already holding the device.
var ErrCameraBusy = errors.New("camera already acquired")

// CameraFactory creates an unopened camera producing square frames.
type CameraFactory func(dimension int, mirrored bool) capture.Camera

// Manager guarantees deterministic acquire/release of the camera and of artifact handles.
type Manager struct {
	newCamera CameraFactory
	preview   *capture.Preview
	logger    zerolog.Logger

	mu       sync.Mutex
	session  *capture.Session
	released chan struct{}
	slots    map[string]*Handle
	byID     map[string]*Handle
}

// NewManager creates a Manager. preview may be nil.
func NewManager(factory CameraFactory, preview *capture.Preview) *Manager {
	released := make(chan struct{})
	close(released)

	return &Manager{
		newCamera: factory,
		preview:   preview,
		logger:    observability.Component("resource"),
		released:  released,
		slots:     make(map[string]*Handle),
		byID:      make(map[string]*Handle),
	}
}

// AcquireCamera opens the device and starts a capture session.
// Errors wrap capture.ErrDeviceUnavailable when the device cannot be opened.
func (m *Manager) AcquireCamera(dimension int, mirrored bool) (*capture.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		return nil, ErrCameraBusy
	}

	cam := m.newCamera(dimension, mirrored)
	if err := cam.Open(); err != nil {
		if !errors.Is(err, capture.ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", capture.ErrDeviceUnavailable, err)
		}
		return nil, err
	}

	m.session = capture.NewSession(cam, dimension, mirrored, m.preview)
	m.released = make(chan struct{})

	m.logger.Info().
		Str("session_id", m.session.ID).
		Int("dimension", dimension).
		Bool("mirrored", mirrored).
		Msg("camera acquired")

	return m.session, nil
}

// ReleaseCamera stops frame production, releases the device and clears the preview.
// Releasing a session that is not the active one is a no-op.
func (m *Manager) ReleaseCamera(session *capture.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || (session != nil && session != m.session) {
		return nil
	}

	return m.releaseCameraLocked()
}

func (m *Manager) releaseCameraLocked() error {
	id := m.session.ID
	err := m.session.Close()
	m.session = nil

	if m.preview != nil {
		m.preview.Clear()
	}
	close(m.released)

	if err != nil {
		m.logger.Warn().Err(err).Str("session_id", id).Msg("camera close failed")
		return fmt.Errorf("release camera: %w", err)
	}
	m.logger.Info().Str("session_id", id).Msg("camera released")
	return nil
}

// CameraReleased returns a channel that is closed once no session holds the device.
// The channel is already closed when the camera is idle.
func (m *Manager) CameraReleased() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

// ActiveSession returns the live capture session, or nil.
func (m *Manager) ActiveSession() *capture.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// InstallArtifact wraps data in a new handle for slot, revoking the previous one first.
func (m *Manager) InstallArtifact(slot string, data []byte) *Handle {
	h := newHandle(slot, data)

	m.mu.Lock()
	if prev, ok := m.slots[slot]; ok {
		m.revokeLocked(prev)
	}
	m.slots[slot] = h
	m.byID[h.ID] = h
	m.mu.Unlock()

	observability.ArtifactInstalled()
	m.logger.Debug().Str("slot", slot).Str("artifact_id", h.ID).Int("size", h.Size).Msg("artifact installed")

	return h
}

// ReleaseArtifact revokes h. Revoking an already revoked handle is a no-op.
func (m *Manager) ReleaseArtifact(h *Handle) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokeLocked(h)
}

// ReleaseSlot revokes the live handle in slot, if any.
func (m *Manager) ReleaseSlot(slot string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.slots[slot]; ok {
		m.revokeLocked(h)
	}
}

func (m *Manager) revokeLocked(h *Handle) {
	if !h.revoke() {
		return
	}
	if m.slots[h.Slot] == h {
		delete(m.slots, h.Slot)
	}
	delete(m.byID, h.ID)
	observability.ArtifactRevoked()
}

// Current returns the live handle in slot, or nil.
func (m *Manager) Current(slot string) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[slot]
}

// Artifact looks up a live handle by ID. Unknown or revoked IDs return ErrRevoked.
func (m *Manager) Artifact(id string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.byID[id]
	if !ok {
		return nil, ErrRevoked
	}
	return h, nil
}

// ReleaseAll revokes every artifact handle and releases the camera.
func (m *Manager) ReleaseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range m.slots {
		m.revokeLocked(h)
	}

	if m.session != nil {
		return m.releaseCameraLocked()
	}
	return nil
}
