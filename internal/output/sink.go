package output

import (
	"context"
	"log/slog"

	"github.com/emmett/scribe/internal/config"
)

// Sink delivers finished text to the previously focused application.
type Sink interface {
	Deliver(ctx context.Context, text string) error
}

// NewSink builds the sink selected by the output mode.
func NewSink(cfg *config.Config, notifier Notifier, logger *slog.Logger) Sink {
	switch cfg.Output.Mode {
	case config.OutputInjection:
		return NewInjector()
	case config.OutputClipboard:
		return ClipboardSink{}
	default:
		return NewAutoSink(NewInjector(), ClipboardSink{}, notifier, logger)
	}
}

// AutoSink attempts keystroke injection and falls back to the clipboard,
// telling the user a manual paste is needed.
type AutoSink struct {
	primary  Sink
	fallback Sink
	notifier Notifier
	logger   *slog.Logger
}

// NewAutoSink creates an AutoSink.
func NewAutoSink(primary, fallback Sink, notifier Notifier, logger *slog.Logger) *AutoSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoSink{
		primary:  primary,
		fallback: fallback,
		notifier: notifier,
		logger:   logger.With("component", "output"),
	}
}

// Deliver implements Sink.
func (s *AutoSink) Deliver(ctx context.Context, text string) error {
	err := s.primary.Deliver(ctx, text)
	if err == nil {
		return nil
	}
	s.logger.Warn("injection failed, falling back to clipboard", "error", err)

	if fbErr := s.fallback.Deliver(ctx, text); fbErr != nil {
		return fbErr
	}
	if s.notifier != nil {
		s.notifier.Notify("Transcript ready", "Copied to clipboard. Paste it manually.")
	}
	return nil
}
