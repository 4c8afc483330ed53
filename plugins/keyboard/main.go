// Command keyboard is a mudra plugin that turns gestures into key presses
// on macOS through AppleScript.
//
// Actions:
//
//	keystroke   types the binding's "key" with optional "modifiers"
//	media-play-pause, media-next, media-prev, volume-up, volume-down
//	            press the matching media key
//
// Binding config example: {"key": "t", "modifiers": ["command"]}
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ayusman/mudra/internal/plugin"
)

// keyConfig is the binding configuration of a keystroke action.
type keyConfig struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

var modifierMap = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

// mediaKeys maps media actions to System Events key codes.
var mediaKeys = map[string]int{
	"media-play-pause": 100,
	"media-next":       101,
	"media-prev":       98,
	"volume-up":        72,
	"volume-down":      73,
}

func main() {
	var req plugin.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		respond(fmt.Errorf("decode request: %w", err))
		return
	}

	script, err := buildScript(req)
	if err == nil {
		err = runAppleScript(script)
	}
	respond(err)
}

// buildScript returns the AppleScript for a request.
func buildScript(req plugin.Request) (string, error) {
	if code, ok := mediaKeys[req.Action]; ok {
		return fmt.Sprintf(`tell application "System Events" to key code %d`, code), nil
	}
	if req.Action != "keystroke" {
		return "", fmt.Errorf("unknown action: %s", req.Action)
	}

	var cfg keyConfig
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return "", fmt.Errorf("parse config: %w", err)
		}
	}
	if cfg.Key == "" {
		return "", fmt.Errorf("key is required")
	}
	return keystrokeScript(cfg.Key, cfg.Modifiers), nil
}

func keystrokeScript(key string, modifiers []string) string {
	key = strings.ReplaceAll(key, `"`, `\"`)

	var mods []string
	for _, mod := range modifiers {
		if m, ok := modifierMap[strings.ToLower(mod)]; ok {
			mods = append(mods, m)
		}
	}
	if len(mods) == 0 {
		return fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, key)
	}
	return fmt.Sprintf(`tell application "System Events" to keystroke "%s" using {%s}`, key, strings.Join(mods, ", "))
}

func respond(err error) {
	resp := plugin.Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func runAppleScript(script string) error {
	output, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
