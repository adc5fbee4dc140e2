// Hook interface and configuration for playback lifecycle notifications.
package hooks

import (
	"context"
)

// Hook represents a handler that can be executed when a playback event occurs.
type Hook interface {
	// Execute runs the hook with the given event.
	Execute(ctx context.Context, event Event) error

	// Type returns the hook type identifier.
	Type() string

	// ID returns a unique identifier for this hook instance.
	ID() string
}

// Config represents the configuration for the hook manager.
type Config struct {
	// Timeout is a duration string (default: 30s). NewManager only checks
	// that it parses; hook executions are not bounded by it.
	Timeout string `json:"timeout"`

	// Maximum number of concurrent hook executions (default: 10).
	Concurrency int `json:"concurrency"`

	// Whether to enable structured stdio output: "json", "env", or "".
	StdioFormat string `json:"stdio_format"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:     "30s",
		Concurrency: 10,
		StdioFormat: "",
	}
}
