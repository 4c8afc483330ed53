// Package plugin runs external actions bound to recognized gestures.
package plugin

import (
	"encoding/json"
	"slices"
	"time"
)

// Manifest describes a plugin's metadata and the actions it accepts.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// HasAction reports whether the plugin declares action. A manifest with no
// actions accepts any.
func (m Manifest) HasAction(action string) bool {
	return len(m.Actions) == 0 || slices.Contains(m.Actions, action)
}

// Request is written to a plugin's stdin as JSON.
type Request struct {
	Action   string          `json:"action"`
	Gesture  string          `json:"gesture"`
	Detector string          `json:"detector"`
	Class    int             `json:"class"`
	Score    float32         `json:"score"`
	At       time.Time       `json:"at"`
	Config   json.RawMessage `json:"config"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin and its location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
