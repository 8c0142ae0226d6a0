// Package router navigates the host application when a notification is activated.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/jmylchreest/nudge/internal/engine"
)

// ErrNoOpener is returned when no URL opener command is available.
var ErrNoOpener = errors.New("no url opener available")

// openTimeout bounds a single opener invocation.
const openTimeout = 5 * time.Second

// Log is a Router that only records navigation requests.
type Log struct {
	logger *slog.Logger
}

var _ engine.Router = (*Log)(nil)

// NewLog creates a logging router.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Navigate logs path.
func (l *Log) Navigate(_ context.Context, path string) error {
	l.logger.Info("navigate", "path", path)
	return nil
}

// Opener is a Router that opens BaseURL+path with a desktop URL handler.
type Opener struct {
	baseURL string
	command string
	logger  *slog.Logger
	run     func(ctx context.Context, name string, args ...string) error
}

var _ engine.Router = (*Opener)(nil)

// NewOpener creates an Opener. command may be empty, in which case an
// installed opener is detected.
func NewOpener(baseURL, command string, logger *slog.Logger) *Opener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Opener{
		baseURL: strings.TrimRight(baseURL, "/"),
		command: command,
		logger:  logger,
		run:     runCommand,
	}
}

// URL returns the address path resolves to. Absolute URLs pass through.
func (o *Opener) URL(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if o.baseURL == "" {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return o.baseURL + path
}

// Navigate opens the URL for path.
func (o *Opener) Navigate(ctx context.Context, path string) error {
	cmd := o.command
	if cmd == "" {
		cmd = detectOpenerCommand()
	}
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return ErrNoOpener
	}

	target := o.URL(path)

	ctx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()

	args := append(parts[1:], target)
	if err := o.run(ctx, parts[0], args...); err != nil {
		return fmt.Errorf("failed to open %s: %w", target, err)
	}
	o.logger.Debug("opened url", "url", target, "command", parts[0])
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// detectOpenerCommand returns the first installed URL opener.
func detectOpenerCommand() string {
	for _, c := range []string{"xdg-open", "open", "wslview"} {
		if _, err := exec.LookPath(c); err == nil {
			return c
		}
	}
	return ""
}
