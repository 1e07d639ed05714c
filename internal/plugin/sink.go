package plugin

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ayusman/signbridge/internal/observability"
)

// Runner executes a single plugin request.
type Runner interface {
	Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error)
}

// Delivery is a translation handed to the plugin sinks.
type Delivery struct {
	TranslationID string
	Text          string
	Direction     string
	Variant       string
}

// Result is the outcome of delivering to one plugin.
type Result struct {
	TranslationID string
	Plugin        string
	Response      *Response
	Err           error
}

// Succeeded reports whether the plugin ran and reported success.
func (r Result) Succeeded() bool {
	return r.Err == nil && r.Response != nil && r.Response.Success
}

// Sink fans deliveries out to every accepting plugin from a fixed pool of workers.
// Deliver never blocks; deliveries arriving while the queue is full are dropped.
type Sink struct {
	manager  *Manager
	runner   Runner
	onResult func(Result)
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan Delivery
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewSink starts workers goroutines draining a queue of queueSize deliveries.
func NewSink(manager *Manager, runner Runner, workers, queueSize int, onResult func(Result)) *Sink {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	if onResult == nil {
		onResult = func(Result) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sink{
		manager:  manager,
		runner:   runner,
		onResult: onResult,
		logger:   observability.Component("plugin"),
		ctx:      ctx,
		cancel:   cancel,
		queue:    make(chan Delivery, queueSize),
	}

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Deliver queues d. It reports false when d was dropped.
func (s *Sink) Deliver(d Delivery) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.queue <- d:
		return true
	default:
		observability.RecordPluginDelivery("dropped")
		s.logger.Warn().Str("text", d.Text).Msg("plugin queue full, dropping delivery")
		return false
	}
}

// Close stops accepting deliveries, finishes the queued ones, and waits for the workers.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	s.cancel()
}

func (s *Sink) worker() {
	defer s.wg.Done()

	for d := range s.queue {
		for _, p := range s.manager.Accepting(d.Direction) {
			s.run(p, d)
		}
	}
}

func (s *Sink) run(p *Plugin, d Delivery) {
	resp, err := s.runner.Execute(s.ctx, p, &Request{
		Action:    ActionTranslate,
		Text:      d.Text,
		Direction: d.Direction,
		Variant:   d.Variant,
	})

	result := Result{
		TranslationID: d.TranslationID,
		Plugin:        p.Manifest.Name,
		Response:      resp,
		Err:           err,
	}

	if result.Succeeded() {
		observability.RecordPluginDelivery("ok")
	} else {
		observability.RecordPluginDelivery("error")
		ev := s.logger.Warn().Str("plugin", p.Manifest.Name).Str("text", d.Text)
		if err != nil {
			ev = ev.Err(err)
		} else if resp != nil {
			ev = ev.Str("error", resp.Error)
		}
		ev.Msg("plugin delivery failed")
	}

	s.onResult(result)
}
