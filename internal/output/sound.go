package output

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// Sound plays short audible cues so the user knows when the microphone is
// hot without looking at the screen. Playback failure is logged and
// forgotten, like notifications.
type Sound interface {
	CaptureStarted()
	CaptureStopped()
}

// NewSound returns a desktop sound player when enabled, otherwise one that
// does nothing.
func NewSound(enabled bool, logger *slog.Logger) Sound {
	if logger == nil {
		logger = slog.Default()
	}
	if enabled {
		return &DesktopSound{
			logger: logger.With("component", "sound"),
			run:    runCommand,
		}
	}
	return NoSound{}
}

// DesktopSound plays system sounds via afplay (macOS) or paplay (Linux,
// freedesktop sound theme).
type DesktopSound struct {
	logger *slog.Logger
	run    func(ctx context.Context, name string, args ...string) error
}

// CaptureStarted implements Sound.
func (s *DesktopSound) CaptureStarted() {
	switch runtime.GOOS {
	case "darwin":
		s.play("afplay", "/System/Library/Sounds/Pop.aiff")
	case "linux":
		s.play("paplay", "/usr/share/sounds/freedesktop/stereo/dialog-information.oga")
	}
}

// CaptureStopped implements Sound.
func (s *DesktopSound) CaptureStopped() {
	switch runtime.GOOS {
	case "darwin":
		s.play("afplay", "/System/Library/Sounds/Bottle.aiff")
	case "linux":
		s.play("paplay", "/usr/share/sounds/freedesktop/stereo/complete.oga")
	}
}

func (s *DesktopSound) play(name string, args ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.run(ctx, name, args...); err != nil {
		s.logger.Debug("sound playback failed", "player", name, "error", err)
	}
}

// NoSound is the player used when sound effects are disabled.
type NoSound struct{}

func (NoSound) CaptureStarted() {}
func (NoSound) CaptureStopped() {}
