package main

import (
	"encoding/json"
	"testing"

	"github.com/ayusman/mudra/internal/plugin"
)

func TestBuildScript(t *testing.T) {
	tests := []struct {
		name    string
		req     plugin.Request
		want    string
		wantErr bool
	}{
		{
			name: "plain key",
			req:  plugin.Request{Action: "keystroke", Config: json.RawMessage(`{"key":"a"}`)},
			want: `tell application "System Events" to keystroke "a"`,
		},
		{
			name: "modifiers",
			req:  plugin.Request{Action: "keystroke", Config: json.RawMessage(`{"key":"t","modifiers":["Cmd","shift","hyper"]}`)},
			want: `tell application "System Events" to keystroke "t" using {command down, shift down}`,
		},
		{
			name: "quoted key",
			req:  plugin.Request{Action: "keystroke", Config: json.RawMessage(`{"key":"\""}`)},
			want: `tell application "System Events" to keystroke "\""`,
		},
		{
			name: "media key",
			req:  plugin.Request{Action: "media-next", Gesture: "ThumbsUp"},
			want: `tell application "System Events" to key code 101`,
		},
		{name: "missing key", req: plugin.Request{Action: "keystroke", Config: json.RawMessage(`{}`)}, wantErr: true},
		{name: "bad config", req: plugin.Request{Action: "keystroke", Config: json.RawMessage(`[`)}, wantErr: true},
		{name: "unknown action", req: plugin.Request{Action: "launch"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildScript(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildScript() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("buildScript() = %q, want %q", got, tt.want)
			}
		})
	}
}
