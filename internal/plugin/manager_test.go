package plugin

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, root string, m Manifest) string {
	t.Helper()

	dir := filepath.Join(root, m.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return dir
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()
	pluginDir := writeManifest(t, tmpDir, Manifest{
		Name:        "test-plugin",
		Version:     "1.0.0",
		Description: "A test plugin",
		Executable:  "test-plugin",
		Directions:  []string{"signToText", "textToSign"},
	})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	plugin := plugins[0]
	if plugin.Manifest.Name != "test-plugin" {
		t.Errorf("expected plugin name 'test-plugin', got %q", plugin.Manifest.Name)
	}
	if plugin.Manifest.Description != "A test plugin" {
		t.Errorf("expected description 'A test plugin', got %q", plugin.Manifest.Description)
	}
	if len(plugin.Manifest.Directions) != 2 {
		t.Errorf("expected 2 directions, got %d", len(plugin.Manifest.Directions))
	}
	if plugin.Path != pluginDir {
		t.Errorf("expected path %q, got %q", pluginDir, plugin.Path)
	}
	if plugin.Executable != filepath.Join(pluginDir, "test-plugin") {
		t.Errorf("executable = %q", plugin.Executable)
	}
}

func TestManager_Discover_Skips(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
	}{
		{
			name: "invalid json",
			setup: func(t *testing.T, dir string) {
				os.MkdirAll(filepath.Join(dir, "bad"), 0755)
				os.WriteFile(filepath.Join(dir, "bad", "plugin.json"), []byte("not valid json"), 0644)
			},
		},
		{
			name: "missing executable",
			setup: func(t *testing.T, dir string) {
				writeManifest(t, dir, Manifest{Name: "no-exec"})
			},
		},
		{
			name: "directory without manifest",
			setup: func(t *testing.T, dir string) {
				os.MkdirAll(filepath.Join(dir, "empty"), 0755)
			},
		},
		{
			name: "stray file",
			setup: func(t *testing.T, dir string) {
				os.WriteFile(filepath.Join(dir, "README"), []byte("hi"), 0644)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)

			manager := NewManager(dir)
			if err := manager.Discover(); err != nil {
				t.Fatalf("Discover() failed unexpectedly: %v", err)
			}
			if n := len(manager.List()); n != 0 {
				t.Errorf("expected 0 plugins, got %d", n)
			}
		})
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := NewManager("/path/that/does/not/exist")

	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed on non-existent dir: %v", err)
	}
	if n := len(manager.List()); n != 0 {
		t.Fatalf("expected 0 plugins, got %d", n)
	}
}

func TestManager_ListSorted(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		writeManifest(t, tmpDir, Manifest{Name: name, Executable: name})
	}

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	want := []string{"alpha", "mid", "zeta"}
	if len(plugins) != len(want) {
		t.Fatalf("expected %d plugins, got %d", len(want), len(plugins))
	}
	for i, p := range plugins {
		if p.Manifest.Name != want[i] {
			t.Errorf("plugins[%d] = %q, want %q", i, p.Manifest.Name, want[i])
		}
	}
}

func TestManager_Get(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, Manifest{Name: "my-plugin", Version: "2.0.0", Executable: "my-plugin-bin"})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugin, err := manager.Get("my-plugin")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if plugin.Manifest.Version != "2.0.0" {
		t.Errorf("expected version '2.0.0', got %q", plugin.Manifest.Version)
	}

	if _, err := manager.Get("nonexistent-plugin"); err != ErrPluginNotFound {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
}

func TestManifest_Accepts(t *testing.T) {
	tests := []struct {
		name       string
		directions []string
		direction  string
		want       bool
	}{
		{name: "default accepts recognition", direction: "signToText", want: true},
		{name: "default rejects lookups", direction: "textToSign", want: false},
		{name: "explicit lookups", directions: []string{"textToSign"}, direction: "textToSign", want: true},
		{name: "explicit excludes recognition", directions: []string{"textToSign"}, direction: "signToText", want: false},
		{name: "both", directions: []string{"signToText", "textToSign"}, direction: "textToSign", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Manifest{Name: "p", Directions: tt.directions}
			if got := m.Accepts(tt.direction); got != tt.want {
				t.Errorf("Accepts(%q) = %v, want %v", tt.direction, got, tt.want)
			}
		})
	}
}

func TestManager_Accepting(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, Manifest{Name: "keyboard", Executable: "keyboard"})
	writeManifest(t, tmpDir, Manifest{Name: "logger", Executable: "logger", Directions: []string{"signToText", "textToSign"}})
	writeManifest(t, tmpDir, Manifest{Name: "display", Executable: "display", Directions: []string{"textToSign"}})

	manager := NewManager(tmpDir)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	names := func(ps []*Plugin) []string {
		var out []string
		for _, p := range ps {
			out = append(out, p.Manifest.Name)
		}
		return out
	}

	if got := names(manager.Accepting("signToText")); len(got) != 2 || got[0] != "keyboard" || got[1] != "logger" {
		t.Errorf("Accepting(signToText) = %v", got)
	}
	if got := names(manager.Accepting("textToSign")); len(got) != 2 || got[0] != "display" || got[1] != "logger" {
		t.Errorf("Accepting(textToSign) = %v", got)
	}
}

func TestManager_PluginDir(t *testing.T) {
	pluginDir := "/path/to/plugins"
	manager := NewManager(pluginDir)

	if manager.PluginDir() != pluginDir {
		t.Errorf("expected plugin dir %q, got %q", pluginDir, manager.PluginDir())
	}
}
