// Package mode coordinates translation direction and sign variant with the acquisition loop,
// the pose fetcher and the resources they use.
package mode

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/signbridge/internal/debounce"
	"github.com/ayusman/signbridge/internal/inference"
	"github.com/ayusman/signbridge/internal/loop"
	"github.com/ayusman/signbridge/internal/observability"
	"github.com/ayusman/signbridge/internal/resource"
	"github.com/ayusman/signbridge/internal/sign"
)

// Default settle periods.
const (
	DefaultVariantSettle   = time.Second
	DefaultDictationSettle = 500 * time.Millisecond
)

var (
	// ErrDirection is returned when a command does not apply to the active direction.
	ErrDirection = errors.New("command not available in the current direction")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("mode controller closed")
)

// State is the active mode combination.
type State struct {
	Direction sign.Direction `json:"direction"`
	Variant   sign.Variant   `json:"variant"`
}

// Acquisition is the control surface of the acquisition loop.
type Acquisition interface {
	Start()
	Stop()
	Retry()
	SetModelURL(url string)
	State() loop.State
	LastError() error
	LastPrediction() inference.PredictionSet
}

// Recognizer is the prediction debouncer.
type Recognizer interface {
	Reset()
}

// PoseFetcher is the remote fetch debouncer.
type PoseFetcher interface {
	Submit(variant sign.Variant, text string)
	LookupNow(variant sign.Variant, text string)
	Cancel()
}

// Resources releases the camera and artifacts.
type Resources interface {
	CameraReleased() <-chan struct{}
	ReleaseSlot(slot string)
	ReleaseAll() error
}

// Hooks are called on the controller goroutine. They must not call back into the Controller.
type Hooks struct {
	// Stable is called with each stabilized recognition result.
	Stable func(text string, st State)
	// Installed is called when a pose artifact for text is displayed.
	Installed func(text string, st State, h *resource.Handle)
}

// Config holds the controller settings.
type Config struct {
	Initial         State
	ModelURLs       map[sign.Variant]string
	VariantSettle   time.Duration
	DictationSettle time.Duration
	Diagnostics     bool
	Slot            string
	Hooks           Hooks
}

// Controller is the mode state machine. A single goroutine owns all state and handles
// commands in order.
type Controller struct {
	cfg        Config
	acq        Acquisition
	recognizer Recognizer
	fetcher    PoseFetcher
	resources  Resources
	dictation  *debounce.Debouncer[string]
	logger     zerolog.Logger

	cmds    chan command
	refresh chan struct{}
	quit    chan struct{}
	done    chan struct{}
	started sync.Once
	closed  sync.Once

	// Owned by the run goroutine.
	state      State
	input      string
	text       string
	prediction string
	artifact   *resource.Handle
	restartSeq uint64
	restarting bool

	mu      sync.RWMutex
	snap    Snapshot
	version uint64

	subMu sync.Mutex
	subs  map[chan Snapshot]struct{}
}

// New creates a stopped Controller.
func New(cfg Config, acq Acquisition, recognizer Recognizer, fetcher PoseFetcher, resources Resources) *Controller {
	if cfg.VariantSettle < 0 {
		cfg.VariantSettle = 0
	}
	if cfg.DictationSettle <= 0 {
		cfg.DictationSettle = DefaultDictationSettle
	}
	if cfg.Slot == "" {
		cfg.Slot = "pose"
	}

	c := &Controller{
		cfg:        cfg,
		acq:        acq,
		recognizer: recognizer,
		fetcher:    fetcher,
		resources:  resources,
		logger:     observability.Component("mode"),
		cmds:       make(chan command),
		refresh:    make(chan struct{}, 1),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		state:      cfg.Initial,
		subs:       make(map[chan Snapshot]struct{}),
	}
	c.dictation = debounce.New(cfg.DictationSettle, func(transcript string) {
		c.send(command{kind: cmdDictated, text: transcript})
	})

	acq.SetModelURL(cfg.ModelURLs[c.state.Variant])
	c.publish()
	return c
}

// Start launches the command goroutine. Entering SignToText as the initial direction
// starts the loop. Commands block until Start is called.
func (c *Controller) Start() {
	c.started.Do(func() {
		if c.state.Direction == sign.SignToText {
			c.acq.Start()
		}
		go c.run()
	})
}

// ToggleDirection switches between TextToSign and SignToText.
func (c *Controller) ToggleDirection() error {
	return c.call(command{kind: cmdToggleDirection})
}

// ToggleVariant switches between ASL and ISL.
func (c *Controller) ToggleVariant() error {
	return c.call(command{kind: cmdToggleVariant})
}

// SetInput updates the typed text. The lookup runs once typing settles.
func (c *Controller) SetInput(text string) error {
	return c.call(command{kind: cmdSetInput, text: text})
}

// RetryCamera retries a failed camera or model initialization.
func (c *Controller) RetryCamera() error {
	return c.call(command{kind: cmdRetry})
}

// Dictate feeds a speech transcript. Transcripts settle before they replace the input.
func (c *Controller) Dictate(transcript string) {
	if strings.TrimSpace(transcript) == "" {
		return
	}
	c.dictation.Call(transcript)
}

// Stabilized delivers a stabilized recognition label.
func (c *Controller) Stabilized(label string) {
	c.send(command{kind: cmdStabilized, text: label})
}

// Settled delivers typed text once its debounce fired.
func (c *Controller) Settled(text string) {
	c.send(command{kind: cmdSettled, text: text})
}

// ArtifactInstalled delivers a new pose artifact, or nil when it was cleared.
func (c *Controller) ArtifactInstalled(h *resource.Handle) {
	c.send(command{kind: cmdArtifact, handle: h})
}

// LoopChanged signals that the acquisition loop changed state.
func (c *Controller) LoopChanged(loop.State, error) {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := c.snap
	if c.cfg.Diagnostics && snap.Direction == sign.SignToText {
		snap.Diagnostics = c.acq.LastPrediction().Sorted()
	}
	return snap
}

// Mode returns the active mode combination.
func (c *Controller) Mode() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return State{Direction: c.snap.Direction, Variant: c.snap.Variant}
}

// Close stops the loop, cancels pending work and releases every resource.
func (c *Controller) Close() error {
	c.closed.Do(func() {
		close(c.quit)
	})
	c.started.Do(func() {
		go c.run()
	})
	<-c.done
	return nil
}

func (c *Controller) call(cmd command) error {
	cmd.reply = make(chan error, 1)
	if !c.send(cmd) {
		return ErrClosed
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-c.done:
		return ErrClosed
	}
}

func (c *Controller) send(cmd command) bool {
	select {
	case c.cmds <- cmd:
		return true
	case <-c.quit:
		return false
	}
}

func (c *Controller) run() {
	defer close(c.done)

	for {
		select {
		case <-c.quit:
			c.teardown()
			return
		case <-c.refresh:
			c.publish()
		case cmd := <-c.cmds:
			err := c.handle(cmd)
			if cmd.reply != nil {
				cmd.reply <- err
			}
			c.publish()
		}
	}
}

func (c *Controller) teardown() {
	c.restartSeq++
	c.dictation.Cancel()
	c.fetcher.Cancel()
	c.acq.Stop()
	c.recognizer.Reset()
	c.artifact = nil

	if err := c.resources.ReleaseAll(); err != nil {
		c.logger.Warn().Err(err).Msg("release on teardown failed")
	}
	c.publish()

	c.subMu.Lock()
	for ch := range c.subs {
		close(ch)
	}
	c.subs = nil
	c.subMu.Unlock()

	c.logger.Info().Msg("mode controller closed")
}
