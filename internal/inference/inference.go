// Package inference loads image-classification model bindings and runs them on camera frames.
package inference

import (
	"context"
	"errors"
	"sort"

	"gocv.io/x/gocv"
)

var (
	// ErrModelLoad is returned when a model binding cannot be loaded:
	// malformed URL, network failure or incompatible metadata.
	ErrModelLoad = errors.New("model load failed")

	// ErrPrediction is returned for a transient per-frame inference failure.
	ErrPrediction = errors.New("prediction failed")
)

// Prediction is the probability of a single class.
type Prediction struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// PredictionSet holds one prediction per known class, in model label order.
type PredictionSet []Prediction

// Above returns the predictions whose probability exceeds threshold, in order.
func (s PredictionSet) Above(threshold float64) []Prediction {
	var out []Prediction
	for _, p := range s {
		if p.Probability > threshold {
			out = append(out, p)
		}
	}
	return out
}

// Top returns the most probable prediction.
func (s PredictionSet) Top() (Prediction, bool) {
	if len(s) == 0 {
		return Prediction{}, false
	}
	best := s[0]
	for _, p := range s[1:] {
		if p.Probability > best.Probability {
			best = p
		}
	}
	return best, true
}

// Sorted returns a copy ordered by descending probability.
func (s PredictionSet) Sorted() PredictionSet {
	out := make(PredictionSet, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Probability > out[j].Probability
	})
	return out
}

// Binding is a loaded model ready to classify frames.
// Implementations allow only one Predict at a time.
type Binding interface {
	Labels() []string
	Predict(frame *gocv.Mat) (PredictionSet, error)
	Close() error
}

// Loader resolves a model base URL into a ready Binding.
type Loader interface {
	Load(ctx context.Context, baseURL string) (Binding, error)
}
