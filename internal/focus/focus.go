// Package focus tracks and restores the window that held focus when a
// capture began, so the transcript lands where the user was typing.
package focus

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Window identifies a previously focused window. The ID is platform-opaque.
type Window struct {
	ID string
}

// Zero reports whether the window was never captured.
func (w Window) Zero() bool { return w.ID == "" }

// Tracker captures the focused window and restores focus to it later. Focus
// handling is best-effort everywhere; the daemon never depends on it.
type Tracker interface {
	Capture() (Window, error)
	Restore(Window) error
}

// New returns the platform tracker, or Noop where focus restoration is not
// available.
func New(logger *slog.Logger) Tracker {
	switch runtime.GOOS {
	case "linux":
		return &xdoTracker{logger: logger}
	default:
		return Noop{}
	}
}

// Noop is a Tracker that does nothing.
type Noop struct{}

func (Noop) Capture() (Window, error) { return Window{}, nil }
func (Noop) Restore(Window) error     { return nil }

// xdoTracker uses xdotool on X11. Under Wayland both calls fail and the
// daemon proceeds without focus restoration.
type xdoTracker struct {
	logger *slog.Logger
}

func (t *xdoTracker) Capture() (Window, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "xdotool", "getactivewindow").Output()
	if err != nil {
		return Window{}, fmt.Errorf("xdotool getactivewindow: %w", err)
	}
	return Window{ID: strings.TrimSpace(string(out))}, nil
}

func (t *xdoTracker) Restore(w Window) error {
	if w.Zero() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := exec.CommandContext(ctx, "xdotool", "windowactivate", "--sync", w.ID).Run(); err != nil {
		return fmt.Errorf("xdotool windowactivate: %w", err)
	}
	return nil
}
