package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ayusman/mudra/internal/lgr"
)

var (
	// ErrPluginNotFound is returned when a requested plugin is not installed.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrUnknownAction is returned when a plugin does not declare an action.
	ErrUnknownAction = errors.New("plugin does not support action")
)

// Manager discovers plugins in a directory. Each subdirectory holding a
// plugin.json manifest is one plugin.
type Manager struct {
	pluginDir string
	plugins   map[string]*Plugin
	mu        sync.RWMutex
}

// NewManager creates a Manager for pluginDir.
func NewManager(pluginDir string) *Manager {
	return &Manager{
		pluginDir: pluginDir,
		plugins:   make(map[string]*Plugin),
	}
}

// Discover rescans the plugin directory, replacing the known plugins.
// A missing directory yields no plugins. Unreadable manifests are skipped.
func (m *Manager) Discover() error {
	found := make(map[string]*Plugin)

	entries, err := os.ReadDir(m.pluginDir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pluginPath := filepath.Join(m.pluginDir, entry.Name())
		data, err := os.ReadFile(filepath.Join(pluginPath, "plugin.json"))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			lgr.Logger.Warn("skipping plugin", slog.String("dir", pluginPath), slog.Any("error", err))
			continue
		}

		var manifest Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			lgr.Logger.Warn("skipping plugin with invalid manifest", slog.String("dir", pluginPath), slog.Any("error", err))
			continue
		}
		if manifest.Name == "" || manifest.Executable == "" {
			lgr.Logger.Warn("skipping plugin without name or executable", slog.String("dir", pluginPath))
			continue
		}

		found[manifest.Name] = &Plugin{
			Manifest:   manifest,
			Path:       pluginPath,
			Executable: filepath.Join(pluginPath, manifest.Executable),
		}
	}

	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()

	lgr.Logger.Debug("plugins discovered", slog.String("dir", m.pluginDir), slog.Int("count", len(found)))
	return nil
}

// Get returns a plugin by name.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugin, ok := m.plugins[name]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return plugin, nil
}

// Resolve returns the plugin that serves action.
func (m *Manager) Resolve(name, action string) (*Plugin, error) {
	plugin, err := m.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, name)
	}
	if !plugin.Manifest.HasAction(action) {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownAction, name, action)
	}
	return plugin, nil
}

// List returns the discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, plugin := range m.plugins {
		plugins = append(plugins, plugin)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Manifest.Name < plugins[j].Manifest.Name
	})
	return plugins
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
