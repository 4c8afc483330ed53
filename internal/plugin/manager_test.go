package plugin

import (
	"encoding/json"
	"errors"
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
	root := t.TempDir()

	dir := writeManifest(t, root, Manifest{Name: "notify", Version: "1.0.0", Executable: "notify.sh", Actions: []string{"beep", "banner"}})
	writeManifest(t, root, Manifest{Name: "any", Executable: "run"})

	// Skipped: no manifest, invalid manifest, missing executable, plain file.
	os.MkdirAll(filepath.Join(root, "empty"), 0755)
	os.MkdirAll(filepath.Join(root, "broken"), 0755)
	os.WriteFile(filepath.Join(root, "broken", "plugin.json"), []byte("{"), 0644)
	writeManifest(t, root, Manifest{Name: "noexec"})
	os.WriteFile(filepath.Join(root, "README"), []byte("hi"), 0644)

	m := NewManager(root)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := m.List()
	if len(plugins) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(plugins))
	}
	if plugins[0].Manifest.Name != "any" || plugins[1].Manifest.Name != "notify" {
		t.Errorf("expected plugins sorted by name, got %q, %q", plugins[0].Manifest.Name, plugins[1].Manifest.Name)
	}

	p, err := m.Get("notify")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Path != dir || p.Executable != filepath.Join(dir, "notify.sh") {
		t.Errorf("unexpected plugin location %+v", p)
	}
}

func TestManager_DiscoverMissingDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "missing"))
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}
	if len(m.List()) != 0 {
		t.Error("expected no plugins")
	}
}

func TestManager_Resolve(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, Manifest{Name: "notify", Executable: "notify.sh", Actions: []string{"beep"}})
	writeManifest(t, root, Manifest{Name: "any", Executable: "run"})

	m := NewManager(root)
	if err := m.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	tests := []struct {
		plugin, action string
		wantErr        error
	}{
		{"notify", "beep", nil},
		{"notify", "banner", ErrUnknownAction},
		{"any", "whatever", nil},
		{"missing", "beep", ErrPluginNotFound},
	}
	for _, tt := range tests {
		_, err := m.Resolve(tt.plugin, tt.action)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("Resolve(%q, %q) error = %v, want %v", tt.plugin, tt.action, err, tt.wantErr)
		}
	}
}
