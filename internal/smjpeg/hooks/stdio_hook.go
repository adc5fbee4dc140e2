// Stdio hook implementation: writes structured event data to stdout/stderr.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// StdioHook outputs event data in various formats.
type StdioHook struct {
	id     string
	format string // "json" or "env"
	output *os.File
}

// NewStdioHook creates a new stdio hook.
func NewStdioHook(id, format string) *StdioHook {
	return &StdioHook{id: id, format: format, output: os.Stderr}
}

// SetOutput sets the output destination (default: stderr).
func (h *StdioHook) SetOutput(output *os.File) *StdioHook {
	h.output = output
	return h
}

// Execute outputs the event data in the configured format.
func (h *StdioHook) Execute(ctx context.Context, event Event) error {
	switch h.format {
	case "json":
		return h.outputJSON(event)
	case "env":
		return h.outputEnv(event)
	default:
		return fmt.Errorf("stdio hook %s: unsupported format: %s", h.id, h.format)
	}
}

// Type returns the hook type.
func (h *StdioHook) Type() string { return "stdio" }

// ID returns the hook ID.
func (h *StdioHook) ID() string { return h.id }

func (h *StdioHook) outputJSON(event Event) error {
	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("stdio hook %s: failed to marshal JSON: %w", h.id, err)
	}
	if _, err := fmt.Fprintf(h.output, "SMJPEG_EVENT: %s\n", string(jsonData)); err != nil {
		return fmt.Errorf("stdio hook %s: failed to write JSON: %w", h.id, err)
	}
	return nil
}

func (h *StdioHook) outputEnv(event Event) error {
	lines := []string{
		"# SMJPEG Event: " + string(event.Type),
		fmt.Sprintf("SMJPEG_EVENT_TYPE=%s", string(event.Type)),
		fmt.Sprintf("SMJPEG_TIMESTAMP=%d", event.Timestamp),
	}
	if event.MovieID != "" {
		lines = append(lines, "SMJPEG_MOVIE_ID="+event.MovieID)
	}
	if event.Track != "" {
		lines = append(lines, "SMJPEG_TRACK="+event.Track)
	}
	for key, value := range event.Data {
		envKey := "SMJPEG_" + strings.ToUpper(key)
		lines = append(lines, fmt.Sprintf("%s=%v", envKey, value))
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(h.output, line); err != nil {
			return fmt.Errorf("stdio hook %s: failed to write env line: %w", h.id, err)
		}
	}
	return nil
}
