// Package loop runs the camera-driven acquisition and inference loop.
package loop

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/signbridge/internal/capture"
	"github.com/ayusman/signbridge/internal/inference"
	"github.com/ayusman/signbridge/internal/observability"
)

// State is the lifecycle state of the acquisition loop.
type State int

const (
	Idle State = iota
	Initializing
	Running
	Error
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Error:
		return "error"
	default:
		return "idle"
	}
}

// Cameras acquires and releases the capture device.
type Cameras interface {
	AcquireCamera(dimension int, mirrored bool) (*capture.Session, error)
	ReleaseCamera(session *capture.Session) error
}

// Config holds the capture and cadence settings of the loop.
type Config struct {
	Dimension int
	Mirrored  bool
	Cadence   capture.Cadence

	// RefreshInterval is the tick period of the refresh clock used by FrameSynced.
	RefreshInterval time.Duration

	// Visible reports whether the view is being watched. FrameSynced skips ticks while it
	// returns false. Nil means always visible.
	Visible func() bool
}

// Loop owns at most one capture session and the model binding bound to it.
// Iterations run strictly one after another on the session goroutine.
type Loop struct {
	cfg       Config
	cameras   Cameras
	loader    inference.Loader
	onPredict func(inference.PredictionSet)
	logger    zerolog.Logger

	// emitMu is held while a prediction is published so Stop can fence publication.
	emitMu sync.Mutex

	mu        sync.Mutex
	state     State
	lastErr   error
	modelURL  string
	gen       uint64
	cancel    context.CancelFunc
	done      chan struct{}
	sessionID string
	last      inference.PredictionSet
	onState   []func(State, error)
}

// New creates an idle Loop. onPredict receives every prediction set of a running session;
// it must not call Stop.
func New(cfg Config, cameras Cameras, loader inference.Loader, onPredict func(inference.PredictionSet)) *Loop {
	if cfg.Dimension <= 0 {
		cfg.Dimension = capture.DefaultDimension
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Second / 60
	}
	if onPredict == nil {
		onPredict = func(inference.PredictionSet) {}
	}

	return &Loop{
		cfg:       cfg,
		cameras:   cameras,
		loader:    loader,
		onPredict: onPredict,
		logger:    observability.Component("loop"),
	}
}

// OnStateChange registers fn to be called after every state transition.
func (l *Loop) OnStateChange(fn func(State, error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onState = append(l.onState, fn)
}

// SetModelURL sets the model base URL used by the next Start.
func (l *Loop) SetModelURL(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.modelURL = url
}

// ModelURL returns the configured model base URL.
func (l *Loop) ModelURL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.modelURL
}

// Start acquires the camera, loads the model binding and begins iterating.
// It is a no-op while the loop is initializing or running.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.state == Initializing || l.state == Running {
		l.mu.Unlock()
		return
	}

	l.gen++
	gen := l.gen
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	l.lastErr = nil
	l.last = nil
	l.state = Initializing
	modelURL := l.modelURL
	l.mu.Unlock()

	l.logger.Info().Str("model_url", modelURL).Str("cadence", l.cfg.Cadence.String()).Msg("starting acquisition loop")
	l.notify(Initializing, nil)

	go l.run(ctx, gen, modelURL, done)
}

// Stop cancels the schedule, waits for the in-flight iteration to drain, closes the binding
// and releases the camera. Once Stop returns no further prediction is published.
// It is idempotent and must not be called from the prediction callback.
func (l *Loop) Stop() {
	l.emitMu.Lock()
	l.mu.Lock()
	l.gen++
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	prev := l.state
	l.state = Idle
	l.lastErr = nil
	l.sessionID = ""
	l.last = nil
	l.mu.Unlock()
	l.emitMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	if prev != Idle {
		l.logger.Info().Str("from", prev.String()).Msg("acquisition loop stopped")
		l.notify(Idle, nil)
	}
}

// Retry restarts a loop that failed to initialize. It is a no-op in any other state.
func (l *Loop) Retry() {
	l.mu.Lock()
	failed := l.state == Error
	l.mu.Unlock()

	if failed {
		l.Start()
	}
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// LastError returns the initialization error retained in the Error state.
func (l *Loop) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// SessionID returns the ID of the running capture session, or "".
func (l *Loop) SessionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionID
}

// LastPrediction returns the most recent published prediction set, for diagnostics.
func (l *Loop) LastPrediction() inference.PredictionSet {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

func (l *Loop) run(ctx context.Context, gen uint64, modelURL string, done chan struct{}) {
	defer close(done)

	session, err := l.cameras.AcquireCamera(l.cfg.Dimension, l.cfg.Mirrored)
	if err != nil {
		l.fail(gen, err)
		return
	}
	session.Cadence = l.cfg.Cadence

	binding, err := l.loader.Load(ctx, modelURL)
	if ctx.Err() == nil {
		observability.RecordModelLoad(err)
	}
	if err != nil {
		l.release(session)
		l.fail(gen, err)
		return
	}

	if l.markRunning(gen, session.ID) {
		l.iterate(ctx, gen, session, binding)
	}

	if err := binding.Close(); err != nil {
		l.logger.Warn().Err(err).Msg("model binding close failed")
	}
	l.release(session)
}

func (l *Loop) release(session *capture.Session) {
	if err := l.cameras.ReleaseCamera(session); err != nil {
		l.logger.Warn().Err(err).Str("session_id", session.ID).Msg("camera release failed")
	}
}

func (l *Loop) markRunning(gen uint64, sessionID string) bool {
	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return false
	}
	l.state = Running
	l.sessionID = sessionID
	l.mu.Unlock()

	l.logger.Info().Str("session_id", sessionID).Msg("acquisition loop running")
	l.notify(Running, nil)
	return true
}

// fail moves to Error unless the attempt was superseded by Stop.
func (l *Loop) fail(gen uint64, err error) {
	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return
	}
	l.state = Error
	l.lastErr = err
	cancel := l.cancel
	l.cancel = nil
	l.done = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	l.logger.Error().Err(err).Msg("acquisition loop failed to initialize")
	l.notify(Error, err)
}

func (l *Loop) notify(state State, err error) {
	observability.SetLoopState(state.String())

	l.mu.Lock()
	fns := make([]func(State, error), len(l.onState))
	copy(fns, l.onState)
	l.mu.Unlock()

	for _, fn := range fns {
		fn(state, err)
	}
}
