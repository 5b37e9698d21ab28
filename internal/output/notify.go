package output

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"time"
)

// Notifier is the user-visible channel for recoverable errors and status.
// Notification failure is never an error to the caller; it is logged and
// forgotten.
type Notifier interface {
	Notify(title, message string)
}

// NewNotifier returns a desktop notifier when enabled, otherwise one that
// only logs.
func NewNotifier(desktop bool, logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "notify")
	if desktop {
		return &DesktopNotifier{logger: logger}
	}
	return &LogNotifier{logger: logger}
}

// DesktopNotifier shows a desktop notification via notify-send (Linux) or
// osascript (macOS).
type DesktopNotifier struct {
	logger *slog.Logger
}

// Notify implements Notifier.
func (n *DesktopNotifier) Notify(title, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", message, title)
		cmd = exec.CommandContext(ctx, "osascript", "-e", script)
	case "linux":
		cmd = exec.CommandContext(ctx, "notify-send", title, message)
	default:
		n.logger.Info(message, "title", title)
		return
	}

	if err := cmd.Run(); err != nil {
		n.logger.Warn("desktop notification failed", "error", err)
		n.logger.Info(message, "title", title)
	}
}

// LogNotifier reports notifications through the logger only.
type LogNotifier struct {
	logger *slog.Logger
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(title, message string) {
	n.logger.Info(message, "title", title)
}
