package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayusman/signbridge/internal/observability"
	"github.com/ayusman/signbridge/internal/resource"
)

func TestServer_Health(t *testing.T) {
	s := New(Config{
		Version: "1.2.3",
		HealthChecks: map[string]observability.HealthCheckFunc{
			"camera":    func(context.Context) error { return nil },
			"dictation": func(context.Context) error { return errors.New("no api key") },
		},
	})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		contentType := rec.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}

		var response observability.HealthStatus
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Status != "degraded" {
			t.Errorf("expected status 'degraded', got %q", response.Status)
		}
		if response.Service != "signbridge" || response.Version != "1.2.3" {
			t.Errorf("service/version = %s/%s", response.Service, response.Version)
		}
		if response.Dependencies["camera"].Status != "healthy" {
			t.Errorf("camera = %+v", response.Dependencies["camera"])
		}
		if response.Dependencies["dictation"].Message != "no api key" {
			t.Errorf("dictation = %+v", response.Dependencies["dictation"])
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

		for _, method := range methods {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/nonexistent", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestServer_OptionalRoutes(t *testing.T) {
	bare := New(Config{})
	full := New(Config{
		Metrics:     true,
		Translator:  &fakeTranslator{},
		Artifacts:   resource.NewManager(nil, nil),
		Preview:     &fakePreview{},
		Synthesizer: &fakeSynth{},
	})

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{name: "metrics", method: http.MethodGet, path: "/metrics"},
		{name: "state", method: http.MethodGet, path: "/api/state"},
		{name: "speak", method: http.MethodPost, path: "/api/speak"},
		{name: "artifact", method: http.MethodGet, path: "/api/artifacts/unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			bare.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != http.StatusNotFound {
				t.Errorf("unconfigured %s: status = %d, want 404", tt.path, rec.Code)
			}

			rec = httptest.NewRecorder()
			full.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{"text":"hi"}`)))
			if rec.Code == http.StatusNotFound && tt.name != "artifact" {
				t.Errorf("configured %s: status = 404", tt.path)
			}
			if tt.name == "artifact" && !strings.Contains(rec.Body.String(), "artifact not found") {
				t.Errorf("artifact route not wired: %s", rec.Body.String())
			}
		})
	}
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := "<html><body>Hello, World!</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	cssContent := "body { color: red; }"
	if err := os.WriteFile(filepath.Join(tmpDir, "style.css"), []byte(cssContent), 0644); err != nil {
		t.Fatalf("failed to create test CSS file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir})

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody string
	}{
		{name: "index at root", path: "/", wantCode: http.StatusOK, wantBody: testContent},
		{name: "direct file", path: "/style.css", wantCode: http.StatusOK, wantBody: cssContent},
		{name: "missing file", path: "/nonexistent.html", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestServer_NoStaticDir(t *testing.T) {
	s := New(Config{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestServer_ShutdownBeforeListen(t *testing.T) {
	s := New(Config{})
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() before ListenAndServe = %v", err)
	}
}
