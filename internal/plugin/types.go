// Package plugin delivers translated text to external sink executables.
package plugin

import "encoding/json"

// ActionTranslate is the action sent with every delivered translation.
const ActionTranslate = "translate"

// Manifest describes a plugin's metadata and the directions it accepts.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Directions  []string        `json:"directions,omitempty"` // Empty accepts signToText only
	Config      json.RawMessage `json:"config,omitempty"`
}

// Accepts reports whether the plugin wants translations produced in direction.
func (m Manifest) Accepts(direction string) bool {
	if len(m.Directions) == 0 {
		return direction == "signToText"
	}
	for _, d := range m.Directions {
		if d == direction {
			return true
		}
	}
	return false
}

// Request is sent to a plugin on stdin.
type Request struct {
	Action    string          `json:"action"`
	Text      string          `json:"text"`
	Direction string          `json:"direction"`
	Variant   string          `json:"variant"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
