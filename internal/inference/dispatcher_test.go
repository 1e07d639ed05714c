package inference

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayusman/signbridge/testdata"
)

func captureFactory(got **Model) BindingFactory {
	return func(m *Model) (Binding, error) {
		*got = m
		return NewMockBinding(), nil
	}
}

func TestDispatcher_Load(t *testing.T) {
	srv := testdata.ModelServer()
	defer srv.Close()

	tests := []struct {
		name       string
		base       string
		wantModel  string
		wantLabels int
		wantLayout string
		wantWeight string
	}{
		{
			name:       "asl with trailing slash",
			base:       srv.URL + "/asl/",
			wantModel:  "asl-alphabet",
			wantLabels: 5,
			wantLayout: LayoutNHWC,
			wantWeight: "onnx-weights-asl",
		},
		{
			name:       "isl without trailing slash",
			base:       srv.URL + "/isl",
			wantModel:  "isl-words",
			wantLabels: 4,
			wantLayout: LayoutNCHW,
			wantWeight: "onnx-weights-isl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var model *Model
			d := NewDispatcher(srv.Client(), captureFactory(&model))

			binding, err := d.Load(context.Background(), tt.base)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			defer binding.Close()

			if model.Metadata.ModelName != tt.wantModel {
				t.Errorf("ModelName = %q, want %q", model.Metadata.ModelName, tt.wantModel)
			}
			if len(model.Metadata.Labels) != tt.wantLabels {
				t.Errorf("labels = %d, want %d", len(model.Metadata.Labels), tt.wantLabels)
			}
			if model.Topology.Layout != tt.wantLayout {
				t.Errorf("Layout = %q, want %q", model.Topology.Layout, tt.wantLayout)
			}
			if string(model.Weights) != tt.wantWeight {
				t.Errorf("Weights = %q, want %q", model.Weights, tt.wantWeight)
			}
			if !strings.HasSuffix(model.BaseURL, "/") {
				t.Errorf("BaseURL %q should end with a slash", model.BaseURL)
			}
		})
	}
}

func TestDispatcher_LoadErrors(t *testing.T) {
	srv := testdata.ModelServer()
	defer srv.Close()

	tests := []struct {
		name string
		base string
	}{
		{name: "empty url", base: ""},
		{name: "malformed url", base: "http://[::1"},
		{name: "unsupported scheme", base: "ftp://models.example.com/asl/"},
		{name: "missing model", base: srv.URL + "/missing/"},
		{name: "incompatible metadata", base: srv.URL + "/broken/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(srv.Client(), func(*Model) (Binding, error) {
				t.Fatal("binding factory should not be called")
				return nil, nil
			})

			_, err := d.Load(context.Background(), tt.base)
			if !errors.Is(err, ErrModelLoad) {
				t.Errorf("Load() error = %v, want ErrModelLoad", err)
			}
		})
	}
}

func TestDispatcher_FactoryError(t *testing.T) {
	srv := testdata.ModelServer()
	defer srv.Close()

	d := NewDispatcher(srv.Client(), func(*Model) (Binding, error) {
		return nil, errors.New("bad graph")
	})

	if _, err := d.Load(context.Background(), srv.URL+"/asl/"); !errors.Is(err, ErrModelLoad) {
		t.Errorf("Load() error = %v, want ErrModelLoad", err)
	}
}

func TestDispatcher_FetchesDescriptorsTogether(t *testing.T) {
	var inFlight, peak atomic.Int32
	models := http.FileServer(http.FS(testdata.Models()))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".json") {
			n := inFlight.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(30 * time.Millisecond)
			inFlight.Add(-1)
		}
		models.ServeHTTP(w, r)
	}))
	defer srv.Close()

	var model *Model
	d := NewDispatcher(srv.Client(), captureFactory(&model))
	if _, err := d.Load(context.Background(), srv.URL+"/asl/"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if peak.Load() != 2 {
		t.Errorf("descriptors fetched with peak concurrency %d, want 2", peak.Load())
	}
}

func TestDispatcher_LoadCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	d := NewDispatcher(srv.Client(), func(*Model) (Binding, error) { return NewMockBinding(), nil })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := d.Load(ctx, srv.URL+"/asl/"); !errors.Is(err, ErrModelLoad) {
		t.Errorf("Load() error = %v, want ErrModelLoad", err)
	}
}

func TestNewModelClient_FileURL(t *testing.T) {
	dir := t.TempDir()
	writeFixtureModel(t, dir)

	var model *Model
	d := NewDispatcher(nil, captureFactory(&model))
	if _, err := d.Load(context.Background(), "file://"+dir); err != nil {
		t.Fatalf("Load(file://) error = %v", err)
	}
	if model.Metadata.ModelName != "asl-alphabet" {
		t.Errorf("ModelName = %q, want asl-alphabet", model.Metadata.ModelName)
	}
}
