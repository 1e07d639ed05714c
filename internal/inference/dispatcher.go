package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/signbridge/internal/observability"
)

// Descriptor file names resolved against the model base URL.
const (
	TopologyFile = "model.json"
	MetadataFile = "metadata.json"
)

// Tensor layouts accepted by the topology descriptor.
const (
	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"
)

// Topology describes the model graph and where its weights live.
type Topology struct {
	Format     string `json:"format"`
	Weights    string `json:"weights"`
	InputName  string `json:"inputName"`
	OutputName string `json:"outputName"`
	Layout     string `json:"layout,omitempty"`
	Softmax    bool   `json:"softmax,omitempty"`
}

// Metadata describes the classes a model was trained on.
type Metadata struct {
	ModelName string   `json:"modelName"`
	Labels    []string `json:"labels"`
	ImageSize int      `json:"imageSize"`
}

// Model is everything needed to construct a Binding.
type Model struct {
	BaseURL  string
	Topology Topology
	Metadata Metadata
	Weights  []byte
}

// BindingFactory builds a Binding from a fetched model.
type BindingFactory func(model *Model) (Binding, error)

// Dispatcher fetches model descriptors over HTTP (or file://) and builds bindings.
type Dispatcher struct {
	client     *http.Client
	newBinding BindingFactory
	logger     zerolog.Logger
}

// NewDispatcher creates a Dispatcher. A nil client gets a transport that also serves file:// URLs
// and imposes no timeout.
func NewDispatcher(client *http.Client, factory BindingFactory) *Dispatcher {
	if client == nil {
		client = NewModelClient(0)
	}
	return &Dispatcher{
		client:     client,
		newBinding: factory,
		logger:     observability.Component("inference"),
	}
}

// NewModelClient returns an HTTP client able to fetch http(s):// and file:// model URLs.
func NewModelClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	return &http.Client{Transport: transport, Timeout: timeout}
}

// Load fetches the model at baseURL and builds a binding for it.
// All failures wrap ErrModelLoad.
func (d *Dispatcher) Load(ctx context.Context, baseURL string) (Binding, error) {
	start := time.Now()

	model, err := d.Fetch(ctx, baseURL)
	if err != nil {
		return nil, err
	}

	binding, err := d.newBinding(model)
	if err != nil {
		return nil, fmt.Errorf("%w: build binding: %v", ErrModelLoad, err)
	}

	d.logger.Info().
		Str("model", model.Metadata.ModelName).
		Str("url", baseURL).
		Int("labels", len(model.Metadata.Labels)).
		Dur("took", time.Since(start)).
		Msg("model binding loaded")

	return binding, nil
}

// Fetch resolves and downloads the topology descriptor, metadata descriptor and weights.
func (d *Dispatcher) Fetch(ctx context.Context, baseURL string) (*Model, error) {
	base, err := parseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	var (
		wg       sync.WaitGroup
		topology Topology
		metadata Metadata
		topoErr  error
		metaErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		topoErr = d.getJSON(ctx, resolve(base, TopologyFile), &topology)
	}()
	go func() {
		defer wg.Done()
		metaErr = d.getJSON(ctx, resolve(base, MetadataFile), &metadata)
	}()
	wg.Wait()

	if topoErr != nil {
		return nil, fmt.Errorf("%w: topology: %v", ErrModelLoad, topoErr)
	}
	if metaErr != nil {
		return nil, fmt.Errorf("%w: metadata: %v", ErrModelLoad, metaErr)
	}

	if err := validate(topology, metadata); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	weights, err := d.get(ctx, resolve(base, topology.Weights))
	if err != nil {
		return nil, fmt.Errorf("%w: weights: %v", ErrModelLoad, err)
	}

	return &Model{
		BaseURL:  base.String(),
		Topology: topology,
		Metadata: metadata,
		Weights:  weights,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty model URL", ErrModelLoad)
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed model URL %q: %v", ErrModelLoad, raw, err)
	}
	switch base.Scheme {
	case "http", "https", "file":
	default:
		return nil, fmt.Errorf("%w: unsupported model URL scheme %q", ErrModelLoad, base.Scheme)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base, nil
}

func resolve(base *url.URL, name string) string {
	return base.ResolveReference(&url.URL{Path: name}).String()
}

func validate(t Topology, m Metadata) error {
	if !strings.EqualFold(t.Format, "onnx") {
		return fmt.Errorf("unsupported model format %q", t.Format)
	}
	if t.Weights == "" {
		return fmt.Errorf("topology has no weights")
	}
	switch strings.ToLower(t.Layout) {
	case "", LayoutNHWC, LayoutNCHW:
	default:
		return fmt.Errorf("unsupported tensor layout %q", t.Layout)
	}
	if len(m.Labels) == 0 {
		return fmt.Errorf("metadata has no labels")
	}
	if m.ImageSize <= 0 {
		return fmt.Errorf("invalid image size %d", m.ImageSize)
	}
	return nil
}

func (d *Dispatcher) getJSON(ctx context.Context, target string, v any) error {
	body, err := d.get(ctx, target)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	return nil
}

func (d *Dispatcher) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d", target, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
