package resource

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrRevoked is returned when reading an artifact whose handle was revoked.
var ErrRevoked = errors.New("artifact handle revoked")

// Handle is a revocable, reference-counted reference to artifact bytes.
// The bytes are dropped once the handle is revoked and every reader has released it.
type Handle struct {
	ID        string
	Slot      string
	Size      int
	CreatedAt time.Time

	mu      sync.Mutex
	data    []byte
	refs    int
	revoked bool
}

func newHandle(slot string, data []byte) *Handle {
	buf := make([]byte, len(data))
	copy(buf, data)

	return &Handle{
		ID:        uuid.New().String(),
		Slot:      slot,
		Size:      len(buf),
		CreatedAt: time.Now(),
		data:      buf,
	}
}

// Acquire takes a reference to the artifact bytes.
// The returned release function must be called once the bytes are no longer read.
func (h *Handle) Acquire() ([]byte, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.revoked {
		return nil, nil, ErrRevoked
	}
	h.refs++

	var once sync.Once
	release := func() {
		once.Do(h.unref)
	}
	return h.data, release, nil
}

func (h *Handle) unref() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.refs--
	if h.revoked && h.refs == 0 {
		h.data = nil
	}
}

// Revoked reports whether the handle was revoked.
func (h *Handle) Revoked() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.revoked
}

// Refs returns the number of outstanding readers.
func (h *Handle) Refs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

// revoke marks the handle revoked and reports whether it was live.
func (h *Handle) revoke() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.revoked {
		return false
	}
	h.revoked = true
	if h.refs == 0 {
		h.data = nil
	}
	return true
}
