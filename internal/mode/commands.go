package mode

import (
	"strings"
	"time"

	"github.com/ayusman/signbridge/internal/loop"
	"github.com/ayusman/signbridge/internal/observability"
	"github.com/ayusman/signbridge/internal/resource"
	"github.com/ayusman/signbridge/internal/sign"
)

type commandKind int

const (
	cmdToggleDirection commandKind = iota
	cmdToggleVariant
	cmdSetInput
	cmdSettled
	cmdDictated
	cmdStabilized
	cmdArtifact
	cmdRestart
	cmdRetry
)

type command struct {
	kind   commandKind
	text   string
	handle *resource.Handle
	seq    uint64
	reply  chan error
}

func (c *Controller) handle(cmd command) error {
	switch cmd.kind {
	case cmdToggleDirection:
		c.toggleDirection()
	case cmdToggleVariant:
		c.toggleVariant()
	case cmdSetInput:
		return c.setInput(cmd.text)
	case cmdSettled:
		c.settled(cmd.text)
	case cmdDictated:
		c.dictated(cmd.text)
	case cmdStabilized:
		c.stabilized(cmd.text)
	case cmdArtifact:
		c.installed(cmd.handle)
	case cmdRestart:
		c.restart(cmd.seq)
	case cmdRetry:
		if c.state.Direction != sign.SignToText {
			return ErrDirection
		}
		c.acq.Retry()
	}
	return nil
}

// clear drops the text, input, stabilized prediction and displayed artifact.
func (c *Controller) clear() {
	c.input = ""
	c.text = ""
	c.prediction = ""
	c.dictation.Cancel()
	c.fetcher.Cancel()
	c.recognizer.Reset()
	c.resources.ReleaseSlot(c.cfg.Slot)
	c.artifact = nil
}

func (c *Controller) toggleDirection() {
	c.state.Direction = c.state.Direction.Toggle()
	c.restartSeq++
	c.restarting = false
	c.clear()

	if c.state.Direction == sign.SignToText {
		c.acq.Start()
	} else {
		c.acq.Stop()
	}

	observability.RecordModeTransition("direction")
	c.logger.Info().Str("direction", c.state.Direction.String()).Msg("direction changed")
}

func (c *Controller) toggleVariant() {
	c.state.Variant = c.state.Variant.Toggle()
	c.acq.SetModelURL(c.cfg.ModelURLs[c.state.Variant])

	observability.RecordModeTransition("variant")
	c.logger.Info().Str("variant", c.state.Variant.String()).Msg("variant changed")

	if c.state.Direction == sign.SignToText {
		c.acq.Stop()
		c.recognizer.Reset()

		c.restartSeq++
		c.restarting = true
		go c.awaitRelease(c.restartSeq, c.resources.CameraReleased())
		return
	}

	// An edit still settling is looked up with the new variant once it settles.
	if c.input != c.text {
		c.fetcher.Submit(c.state.Variant, c.input)
		return
	}
	if strings.TrimSpace(c.text) != "" {
		c.fetcher.LookupNow(c.state.Variant, c.text)
	}
}

// awaitRelease waits until the device is fully released, then the settle delay, before
// asking the controller to restart the loop.
func (c *Controller) awaitRelease(seq uint64, released <-chan struct{}) {
	select {
	case <-released:
	case <-c.quit:
		return
	}

	if c.cfg.VariantSettle > 0 {
		timer := time.NewTimer(c.cfg.VariantSettle)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-c.quit:
			return
		}
	}

	c.send(command{kind: cmdRestart, seq: seq})
}

func (c *Controller) restart(seq uint64) {
	if seq != c.restartSeq || c.state.Direction != sign.SignToText {
		return
	}
	c.restarting = false
	c.text = ""
	c.prediction = ""
	c.acq.Start()
}

func (c *Controller) setInput(text string) error {
	if c.state.Direction != sign.TextToSign {
		return ErrDirection
	}
	c.input = text
	c.fetcher.Submit(c.state.Variant, text)
	return nil
}

func (c *Controller) settled(text string) {
	if c.state.Direction != sign.TextToSign || text != c.input {
		return
	}
	c.text = text
}

func (c *Controller) dictated(transcript string) {
	if c.state.Direction != sign.TextToSign {
		return
	}
	c.input = transcript
	c.text = transcript
	c.fetcher.LookupNow(c.state.Variant, transcript)
}

func (c *Controller) stabilized(label string) {
	if c.state.Direction != sign.SignToText || c.restarting || c.acq.State() != loop.Running {
		return
	}
	c.text = label
	c.prediction = label

	if c.cfg.Hooks.Stable != nil {
		c.cfg.Hooks.Stable(label, c.state)
	}
}

func (c *Controller) installed(h *resource.Handle) {
	if c.state.Direction != sign.TextToSign {
		if h != nil {
			c.resources.ReleaseSlot(c.cfg.Slot)
		}
		return
	}
	if h == nil {
		c.artifact = nil
		return
	}
	if h.Revoked() {
		return
	}
	c.artifact = h

	if c.cfg.Hooks.Installed != nil {
		c.cfg.Hooks.Installed(c.text, c.state, h)
	}
}
