package capture

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// CadenceMode selects how the acquisition loop paces its iterations.
type CadenceMode int

const (
	// FixedInterval schedules each iteration a fixed delay after the previous one.
	FixedInterval CadenceMode = iota
	// FrameSynced schedules each iteration on the next display refresh tick.
	FrameSynced
)

// Cadence is the sampling policy of a capture session.
type Cadence struct {
	Mode     CadenceMode
	Interval time.Duration // Used by FixedInterval
}

func (c Cadence) String() string {
	if c.Mode == FrameSynced {
		return "frame-synced"
	}
	return fmt.Sprintf("fixed-interval(%s)", c.Interval)
}

// Session is one active camera-to-model binding.
// The session exclusively owns its camera until Close is called.
type Session struct {
	ID        string
	Dimension int
	Mirrored  bool
	Cadence   Cadence
	StartedAt time.Time

	camera  Camera
	preview *Preview
	running atomic.Bool
}

// NewSession wraps an opened camera. preview may be nil.
func NewSession(camera Camera, dimension int, mirrored bool, preview *Preview) *Session {
	s := &Session{
		ID:        uuid.New().String(),
		Dimension: dimension,
		Mirrored:  mirrored,
		StartedAt: time.Now(),
		camera:    camera,
		preview:   preview,
	}
	s.running.Store(true)
	return s
}

// Refresh reads the current frame and draws it onto the preview surface.
// The caller is responsible for closing the returned Mat.
func (s *Session) Refresh() (*gocv.Mat, error) {
	if !s.running.Load() {
		return nil, ErrCameraNotOpen
	}

	frame, err := s.camera.ReadFrame()
	if err != nil {
		return nil, err
	}

	if s.preview != nil {
		s.preview.Update(frame)
	}
	return frame, nil
}

// Running reports whether the session still owns an open device.
func (s *Session) Running() bool {
	return s.running.Load()
}

// Close stops frame production and releases the device. It is idempotent.
func (s *Session) Close() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	return s.camera.Close()
}
