// Package main provides a keyboard sink plugin for macOS.
// It types each translated text into the focused application via AppleScript.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action    string          `json:"action"`
	Text      string          `json:"text"`
	Direction string          `json:"direction"`
	Variant   string          `json:"variant"`
	Config    json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config controls how text is typed.
type Config struct {
	Submit    bool   `json:"submit"`    // press return after the text
	Separator string `json:"separator"` // appended after the text
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Action != "translate" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	if err := handleTranslate(req); err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	writeSuccessResponse()
}

func handleTranslate(req Request) error {
	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return fmt.Errorf("text is required")
	}

	return runAppleScript(buildTypeScript(text+cfg.Separator, cfg.Submit))
}

// buildTypeScript generates an AppleScript typing text, optionally followed by return.
func buildTypeScript(text string, submit bool) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(text)
	script := fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, escaped)
	if submit {
		script += "\n" + `tell application "System Events" to key code 36`
	}
	return script
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: false,
		Error:   errMsg,
	})
}

func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{
		Success: true,
	})
}

// runAppleScript executes an AppleScript program and returns any error.
func runAppleScript(script string) error {
	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
