package inference

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"
)

// MockBinding is a mock Binding for testing.
// It cycles through Sets, or returns Err when set.
type MockBinding struct {
	Sets  []PredictionSet
	Err   error
	Delay time.Duration

	mu          sync.Mutex
	index       int
	calls       int
	closed      bool
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

// NewMockBinding creates a MockBinding returning sets in order, looping.
func NewMockBinding(sets ...PredictionSet) *MockBinding {
	return &MockBinding{Sets: sets}
}

func (m *MockBinding) Labels() []string {
	if len(m.Sets) == 0 {
		return nil
	}
	labels := make([]string, len(m.Sets[0]))
	for i, p := range m.Sets[0] {
		labels[i] = p.Label
	}
	return labels
}

func (m *MockBinding) Predict(frame *gocv.Mat) (PredictionSet, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		cur := m.maxInFlight.Load()
		if n <= cur || m.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.closed {
		return nil, fmt.Errorf("%w: binding closed", ErrPrediction)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Sets) == 0 {
		return PredictionSet{}, nil
	}

	set := m.Sets[m.index%len(m.Sets)]
	m.index++
	return set, nil
}

func (m *MockBinding) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns the number of Predict calls.
func (m *MockBinding) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockBinding) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MaxInFlight returns the highest number of concurrent Predict calls observed.
func (m *MockBinding) MaxInFlight() int {
	return int(m.maxInFlight.Load())
}

// MockLoader is a mock Loader for testing. It records every requested URL.
type MockLoader struct {
	// New returns the binding for a load. Defaults to a fresh empty MockBinding.
	New   func(baseURL string) *MockBinding
	Err   error
	Delay time.Duration

	mu       sync.Mutex
	urls     []string
	bindings []*MockBinding
}

func (l *MockLoader) Load(ctx context.Context, baseURL string) (Binding, error) {
	l.mu.Lock()
	l.urls = append(l.urls, baseURL)
	err := l.Err
	l.mu.Unlock()

	if l.Delay > 0 {
		select {
		case <-time.After(l.Delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrModelLoad, ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}

	var b *MockBinding
	if l.New != nil {
		b = l.New(baseURL)
	} else {
		b = NewMockBinding()
	}

	l.mu.Lock()
	l.bindings = append(l.bindings, b)
	l.mu.Unlock()
	return b, nil
}

// SetErr changes the error returned by subsequent loads.
func (l *MockLoader) SetErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Err = err
}

// URLs returns the base URLs requested so far.
func (l *MockLoader) URLs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.urls))
	copy(out, l.urls)
	return out
}

// Bindings returns the bindings handed out so far.
func (l *MockLoader) Bindings() []*MockBinding {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*MockBinding, len(l.bindings))
	copy(out, l.bindings)
	return out
}
