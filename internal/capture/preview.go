package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// Preview is the surface the running session draws its latest frame onto.
// Frames are kept JPEG-encoded so viewers can stream them directly.
type Preview struct {
	enabled bool

	mu      sync.RWMutex
	frame   []byte
	seq     uint64
	viewers int
}

// NewPreview creates a preview surface. A disabled preview ignores updates.
func NewPreview(enabled bool) *Preview {
	return &Preview{enabled: enabled}
}

// Enabled reports whether frames are drawn to the preview.
func (p *Preview) Enabled() bool {
	return p.enabled
}

// Update encodes frame and makes it the latest preview image.
func (p *Preview) Update(frame *gocv.Mat) {
	if !p.enabled || frame == nil || frame.Empty() {
		return
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return
	}
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	buf.Close()

	p.mu.Lock()
	p.frame = data
	p.seq++
	p.mu.Unlock()
}

// Latest returns the most recent JPEG frame and its sequence number.
// ok is false when the surface is empty.
func (p *Preview) Latest() (frame []byte, seq uint64, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.frame == nil {
		return nil, p.seq, false
	}
	return p.frame, p.seq, true
}

// Clear empties the surface.
func (p *Preview) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frame = nil
	p.seq++
}

// Attach registers a viewer and returns the function that detaches it.
func (p *Preview) Attach() func() {
	p.mu.Lock()
	p.viewers++
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.viewers--
			p.mu.Unlock()
		})
	}
}

// Visible reports whether any view is currently attached.
// Views attach even when frame drawing is disabled.
func (p *Preview) Visible() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.viewers > 0
}
