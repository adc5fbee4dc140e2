// Shell hook implementation: invokes an external command on each event,
// passing event fields as environment variables.
package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ShellHook runs a shell command for each triggered event.
type ShellHook struct {
	id      string
	command string
	args    []string
	timeout time.Duration
}

// NewShellHook creates a shell hook that runs command with args.
func NewShellHook(id, command string, args []string, timeout time.Duration) *ShellHook {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShellHook{id: id, command: command, args: args, timeout: timeout}
}

// Execute runs the configured command with the event encoded as environment
// variables, returning a wrapped error on non-zero exit or timeout.
func (h *ShellHook) Execute(ctx context.Context, event Event) error {
	runCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, h.command, h.args...)
	cmd.Env = append(cmd.Env, eventEnviron(event)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("shell hook %s: timed out after %s", h.id, h.timeout)
		}
		return fmt.Errorf("shell hook %s: %w: %s", h.id, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Type returns the hook type.
func (h *ShellHook) Type() string { return "shell" }

// ID returns the hook ID.
func (h *ShellHook) ID() string { return h.id }

func eventEnviron(event Event) []string {
	env := []string{
		"SMJPEG_EVENT_TYPE=" + string(event.Type),
		fmt.Sprintf("SMJPEG_TIMESTAMP=%d", event.Timestamp),
	}
	if event.MovieID != "" {
		env = append(env, "SMJPEG_MOVIE_ID="+event.MovieID)
	}
	if event.Track != "" {
		env = append(env, "SMJPEG_TRACK="+event.Track)
	}
	for key, value := range event.Data {
		env = append(env, fmt.Sprintf("SMJPEG_%s=%v", strings.ToUpper(key), value))
	}
	return env
}
