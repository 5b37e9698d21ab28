package output

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Injector types text into the focused application using the platform's
// injection tool. On Wayland that is wtype, on X11 xdotool, on macOS
// osascript. Failures (missing tool, denied accessibility permission) are
// returned so a fallback sink can take over.
type Injector struct {
	run func(ctx context.Context, name string, args ...string) error
}

// NewInjector creates an Injector.
func NewInjector() *Injector {
	return &Injector{run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Deliver implements Sink.
func (i *Injector) Deliver(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("tell application %q to keystroke %q", "System Events", text)
		return i.run(ctx, "osascript", "-e", script)
	case "linux":
		if err := i.run(ctx, "wtype", text); err == nil {
			return nil
		}
		return i.run(ctx, "xdotool", "type", "--clearmodifiers", "--", text)
	}

	return fmt.Errorf("keystroke injection not supported on %s", runtime.GOOS)
}
