package pose

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/signbridge/internal/debounce"
	"github.com/ayusman/signbridge/internal/observability"
	"github.com/ayusman/signbridge/internal/resource"
	"github.com/ayusman/signbridge/internal/sign"
)

// DefaultSettle is the inactivity window before typed text is looked up.
const DefaultSettle = time.Second

// DefaultSlot is the artifact slot the displayed pose lives in.
const DefaultSlot = "pose"

// Looker performs a single pose lookup.
type Looker interface {
	Lookup(ctx context.Context, variant sign.Variant, text string) ([]byte, error)
}

// Artifacts installs and releases artifact handles.
type Artifacts interface {
	InstallArtifact(slot string, data []byte) *resource.Handle
	ReleaseSlot(slot string)
}

// FetcherConfig holds the fetcher settings and callbacks.
type FetcherConfig struct {
	Settle  time.Duration
	Timeout time.Duration // Zero leaves lookups bounded only by the transport
	Slot    string

	// OnSettled is called with the text once typing has settled, before the lookup.
	OnSettled func(text string)
	// OnArtifact is called with each installed handle, or nil when the artifact was cleared.
	OnArtifact func(h *resource.Handle)
}

type request struct {
	variant sign.Variant
	text    string
}

// Fetcher debounces text edits into at most one outstanding pose lookup.
// A response superseded by a newer request is discarded, and a failed lookup keeps the
// previously installed artifact.
type Fetcher struct {
	looker    Looker
	artifacts Artifacts
	cfg       FetcherConfig
	settle    *debounce.Debouncer[request]
	logger    zerolog.Logger

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewFetcher creates a Fetcher.
func NewFetcher(looker Looker, artifacts Artifacts, cfg FetcherConfig) *Fetcher {
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	if cfg.Slot == "" {
		cfg.Slot = DefaultSlot
	}
	if cfg.OnSettled == nil {
		cfg.OnSettled = func(string) {}
	}
	if cfg.OnArtifact == nil {
		cfg.OnArtifact = func(*resource.Handle) {}
	}

	f := &Fetcher{
		looker:    looker,
		artifacts: artifacts,
		cfg:       cfg,
		logger:    observability.Component("pose"),
	}
	f.settle = debounce.New(cfg.Settle, f.settled)
	return f
}

// settled runs when edits stop. A Cancel or LookupNow that lands while OnSettled
// is running wins over the settled edit.
func (f *Fetcher) settled(r request) {
	f.mu.Lock()
	seen := f.seq
	f.mu.Unlock()

	f.cfg.OnSettled(r.text)

	f.mu.Lock()
	if seen != f.seq {
		f.mu.Unlock()
		f.logger.Debug().Str("text", r.text).Msg("settled edit cancelled before lookup")
		return
	}
	f.startLocked(r)
	f.mu.Unlock()
}

// Submit schedules a lookup of text once edits stop for the settling period.
func (f *Fetcher) Submit(variant sign.Variant, text string) {
	f.settle.Call(request{variant: variant, text: text})
}

// LookupNow drops any pending edit and looks text up immediately.
func (f *Fetcher) LookupNow(variant sign.Variant, text string) {
	f.settle.Cancel()
	f.dispatch(request{variant: variant, text: text})
}

// Cancel drops the pending edit and discards the in-flight lookup. No callback fires for them.
func (f *Fetcher) Cancel() {
	f.settle.Cancel()

	f.mu.Lock()
	f.seq++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.mu.Unlock()
}

// Wait blocks until every started lookup goroutine has returned.
func (f *Fetcher) Wait() {
	f.wg.Wait()
}

func (f *Fetcher) dispatch(r request) {
	f.mu.Lock()
	f.startLocked(r)
	f.mu.Unlock()
}

// startLocked supersedes the in-flight lookup and starts r. f.mu must be held.
func (f *Fetcher) startLocked(r request) {
	f.seq++
	seq := f.seq
	if f.cancel != nil {
		f.cancel()
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if f.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), f.cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	f.cancel = cancel
	f.wg.Add(1)

	go func() {
		defer f.wg.Done()
		defer cancel()

		if strings.TrimSpace(r.text) == "" {
			f.clear(seq)
			return
		}
		f.fetch(ctx, seq, r)
	}()
}

func (f *Fetcher) clear(seq uint64) {
	f.mu.Lock()
	if seq != f.seq {
		f.mu.Unlock()
		return
	}
	f.artifacts.ReleaseSlot(f.cfg.Slot)
	f.mu.Unlock()

	f.cfg.OnArtifact(nil)
}

func (f *Fetcher) fetch(ctx context.Context, seq uint64, r request) {
	start := time.Now()
	data, err := f.looker.Lookup(ctx, r.variant, r.text)
	took := time.Since(start)

	f.mu.Lock()
	if seq != f.seq {
		f.mu.Unlock()
		observability.RecordPoseFetch("discarded", took)
		f.logger.Debug().Str("text", r.text).Msg("superseded pose lookup discarded")
		return
	}
	if err != nil {
		f.mu.Unlock()
		observability.RecordPoseFetch("error", took)
		f.logger.Warn().Err(err).
			Str("text", r.text).
			Str("variant", r.variant.String()).
			Msg("pose lookup failed, keeping previous artifact")
		return
	}
	h := f.artifacts.InstallArtifact(f.cfg.Slot, data)
	f.mu.Unlock()

	observability.RecordPoseFetch("ok", took)
	f.logger.Info().
		Str("text", r.text).
		Str("variant", r.variant.String()).
		Int("bytes", len(data)).
		Dur("took", took).
		Msg("pose artifact installed")

	f.cfg.OnArtifact(h)
}
