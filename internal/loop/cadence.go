package loop

import (
	"context"
	"time"

	"github.com/ayusman/signbridge/internal/capture"
	"github.com/ayusman/signbridge/internal/inference"
	"github.com/ayusman/signbridge/internal/observability"
)

// iterate runs iterations on the configured cadence until ctx is cancelled.
func (l *Loop) iterate(ctx context.Context, gen uint64, session *capture.Session, binding inference.Binding) {
	var ticks <-chan time.Time
	if l.cfg.Cadence.Mode == capture.FrameSynced {
		ticker := time.NewTicker(l.cfg.RefreshInterval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		if !l.wait(ctx, ticks) {
			return
		}
		l.step(gen, session, binding)
	}
}

// wait blocks until the next iteration is due. It returns false once ctx is cancelled.
func (l *Loop) wait(ctx context.Context, ticks <-chan time.Time) bool {
	if ticks == nil {
		timer := time.NewTimer(l.cfg.Cadence.Interval)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return ctx.Err() == nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticks:
			if ctx.Err() != nil {
				return false
			}
			if l.cfg.Visible == nil || l.cfg.Visible() {
				return true
			}
		}
	}
}

// step refreshes the frame, predicts and publishes. Per-frame failures are logged and counted.
func (l *Loop) step(gen uint64, session *capture.Session, binding inference.Binding) {
	frame, err := session.Refresh()
	if err != nil {
		observability.RecordLoopFailure("frame")
		l.logger.Warn().Err(err).Str("session_id", session.ID).Msg("frame refresh failed")
		return
	}
	defer frame.Close()

	start := time.Now()
	set, err := binding.Predict(frame)
	if err != nil {
		observability.RecordLoopFailure("predict")
		l.logger.Warn().Err(err).Str("session_id", session.ID).Msg("prediction failed")
		return
	}
	observability.RecordIteration(time.Since(start))

	l.publish(gen, set)
}

// publish hands set to the prediction callback unless the session was stopped meanwhile.
func (l *Loop) publish(gen uint64, set inference.PredictionSet) {
	l.emitMu.Lock()
	defer l.emitMu.Unlock()

	l.mu.Lock()
	if gen != l.gen || l.state != Running {
		l.mu.Unlock()
		return
	}
	l.last = set
	l.mu.Unlock()

	l.onPredict(set)
}
