// Package recognize turns per-frame predictions into a stabilized text value.
package recognize

import (
	"time"

	"github.com/ayusman/signbridge/internal/debounce"
	"github.com/ayusman/signbridge/internal/inference"
	"github.com/ayusman/signbridge/internal/observability"
)

// Defaults for the prediction policy.
const (
	DefaultThreshold = 0.5
	DefaultSettle    = 50 * time.Millisecond
)

// Debouncer proposes every label above the confidence threshold and publishes the most
// recent proposal once proposals stop arriving for the settling period.
// No smoothing or averaging is applied across frames.
type Debouncer struct {
	threshold float64
	settle    *debounce.Debouncer[string]
}

// New creates a Debouncer that calls onStable with each stabilized label.
func New(threshold float64, settle time.Duration, onStable func(label string)) *Debouncer {
	return &Debouncer{
		threshold: threshold,
		settle: debounce.New(settle, func(label string) {
			observability.RecordStabilized()
			onStable(label)
		}),
	}
}

// OnPrediction proposes the labels in set whose probability exceeds the threshold.
func (d *Debouncer) OnPrediction(set inference.PredictionSet) {
	for _, p := range set.Above(d.threshold) {
		d.settle.Call(p.Label)
	}
}

// Reset drops a pending proposal.
func (d *Debouncer) Reset() {
	d.settle.Cancel()
}

// Threshold returns the confidence threshold.
func (d *Debouncer) Threshold() float64 {
	return d.threshold
}
