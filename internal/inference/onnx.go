package inference

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// InitRuntime loads the onnxruntime shared library. Only the first call has an effect.
func InitRuntime(libPath string) error {
	runtimeOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		runtimeErr = ort.InitializeEnvironment()
	})
	return runtimeErr
}

// ShutdownRuntime releases the onnxruntime environment.
func ShutdownRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// OnnxBinding classifies frames with an ONNX model through onnxruntime.
type OnnxBinding struct {
	labels  []string
	size    int
	layout  string
	softmax bool

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewOnnxBinding builds a session for model. InitRuntime must have succeeded first.
func NewOnnxBinding(model *Model) (Binding, error) {
	if !ort.IsInitialized() {
		return nil, errors.New("onnxruntime is not initialized")
	}

	size := model.Metadata.ImageSize
	layout := strings.ToLower(model.Topology.Layout)
	if layout == "" {
		layout = LayoutNHWC
	}

	inputShape := ort.NewShape(1, int64(size), int64(size), 3)
	if layout == LayoutNCHW {
		inputShape = ort.NewShape(1, 3, int64(size), int64(size))
	}

	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(model.Metadata.Labels))))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSessionWithONNXData(
		model.Weights,
		[]string{model.Topology.InputName},
		[]string{model.Topology.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}

	labels := make([]string, len(model.Metadata.Labels))
	copy(labels, model.Metadata.Labels)

	return &OnnxBinding{
		labels:  labels,
		size:    size,
		layout:  layout,
		softmax: model.Topology.Softmax,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// Labels returns the class labels in output order.
func (b *OnnxBinding) Labels() []string {
	return b.labels
}

// Predict runs the model on frame. Calls are serialized.
func (b *OnnxBinding) Predict(frame *gocv.Mat) (PredictionSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil, fmt.Errorf("%w: binding closed", ErrPrediction)
	}

	if err := PrepareFrame(frame, b.size, b.layout, b.input.GetData()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrediction, err)
	}
	if err := b.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: run: %v", ErrPrediction, err)
	}

	scores := b.output.GetData()
	if len(scores) != len(b.labels) {
		return nil, fmt.Errorf("%w: got %d scores for %d labels", ErrPrediction, len(scores), len(b.labels))
	}

	probs := make([]float64, len(scores))
	for i, v := range scores {
		probs[i] = float64(v)
	}
	if b.softmax {
		softmax(probs)
	}

	set := make(PredictionSet, len(b.labels))
	for i, label := range b.labels {
		set[i] = Prediction{Label: label, Probability: probs[i]}
	}
	return set, nil
}

// Close destroys the session and its tensors. It is safe to call more than once.
func (b *OnnxBinding) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}

	var errs []error
	errs = append(errs, b.session.Destroy(), b.input.Destroy(), b.output.Destroy())
	b.session = nil
	b.input = nil
	b.output = nil

	return errors.Join(errs...)
}

// PrepareFrame resizes frame to size x size, converts BGR to RGB, scales pixels to [-1, 1]
// and writes the result into dst using layout.
func PrepareFrame(frame *gocv.Mat, size int, layout string, dst []float32) error {
	if frame == nil || frame.Empty() {
		return errors.New("empty frame")
	}
	if frame.Channels() != 3 {
		return fmt.Errorf("expected 3 channels, got %d", frame.Channels())
	}
	if len(dst) != size*size*3 {
		return fmt.Errorf("tensor holds %d values, need %d", len(dst), size*size*3)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(*frame, &resized, image.Pt(size, size), 0, 0, gocv.InterpolationArea)

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(resized, &rgb, gocv.ColorBGRToRGB)

	scaled := gocv.NewMat()
	defer scaled.Close()
	rgb.ConvertToWithParams(&scaled, gocv.MatTypeCV32FC3, 1.0/127.5, -1)

	pixels, err := scaled.DataPtrFloat32()
	if err != nil {
		return err
	}

	if layout != LayoutNCHW {
		copy(dst, pixels)
		return nil
	}

	plane := size * size
	for i := 0; i < plane; i++ {
		dst[i] = pixels[i*3]
		dst[plane+i] = pixels[i*3+1]
		dst[2*plane+i] = pixels[i*3+2]
	}
	return nil
}

func softmax(v []float64) {
	if len(v) == 0 {
		return
	}
	peak := v[0]
	for _, x := range v[1:] {
		if x > peak {
			peak = x
		}
	}
	var sum float64
	for i, x := range v {
		v[i] = math.Exp(x - peak)
		sum += v[i]
	}
	for i := range v {
		v[i] /= sum
	}
}
