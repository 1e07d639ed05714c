package mode

import (
	"time"

	"github.com/ayusman/signbridge/internal/inference"
	"github.com/ayusman/signbridge/internal/sign"
)

// Snapshot is the observable state of the translator.
type Snapshot struct {
	Version    uint64         `json:"version"`
	Direction  sign.Direction `json:"direction"`
	Variant    sign.Variant   `json:"variant"`
	Input      string         `json:"input"`
	Text       string         `json:"text"`
	Prediction string         `json:"prediction"`
	ArtifactID string         `json:"artifactId,omitempty"`
	Loop       string         `json:"loop"`
	LoopError  string         `json:"loopError,omitempty"`
	Restarting bool           `json:"restarting"`
	UpdatedAt  time.Time      `json:"updatedAt"`

	Diagnostics inference.PredictionSet `json:"diagnostics,omitempty"`
}

// Subscribe returns a channel receiving the latest snapshot after every change, and a
// function that unsubscribes. Slow subscribers only see the newest snapshot.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.subMu.Lock()
	if c.subs == nil {
		c.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	ch <- c.Snapshot()
	c.subs[ch] = struct{}{}
	c.subMu.Unlock()

	return ch, func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
}

// publish rebuilds the snapshot from the goroutine-owned state and notifies subscribers.
func (c *Controller) publish() {
	loopState := c.acq.State()

	c.mu.Lock()
	c.version++
	snap := Snapshot{
		Version:    c.version,
		Direction:  c.state.Direction,
		Variant:    c.state.Variant,
		Input:      c.input,
		Text:       c.text,
		Prediction: c.prediction,
		Loop:       loopState.String(),
		Restarting: c.restarting,
		UpdatedAt:  time.Now(),
	}
	if c.artifact != nil && !c.artifact.Revoked() {
		snap.ArtifactID = c.artifact.ID
	}
	if err := c.acq.LastError(); err != nil {
		snap.LoopError = err.Error()
	}
	c.snap = snap
	c.mu.Unlock()

	snap = c.Snapshot()

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
