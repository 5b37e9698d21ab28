package input

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.design/x/hotkey"
)

// Listener registers the global capture and cancel hotkeys and translates
// raw key events into intents on a buffered channel. Delivery never blocks:
// if the orchestrator is behind, the intent is dropped with a warning rather
// than stalling the platform key event loop.
type Listener struct {
	mode    TriggerMode
	intents chan Intent
	logger  *slog.Logger

	hk       *hotkey.Hotkey
	cancelHk *hotkey.Hotkey
	mapper   mapper
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewListener creates a Listener for the given trigger mode.
func NewListener(mode TriggerMode, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		mode:    mode,
		intents: make(chan Intent, 16),
		logger:  logger.With("component", "input"),
		mapper:  mapper{mode: mode},
		done:    make(chan struct{}),
	}
}

// Intents returns the channel on which intents are delivered.
func (l *Listener) Intents() <-chan Intent {
	return l.intents
}

// Start registers the hotkeys and begins listening. cancelCombo may be
// empty, in which case no cancel key is registered. A registration failure
// wraps ErrPermission and is fatal to the daemon.
func (l *Listener) Start(ctx context.Context, combo, cancelCombo string) error {
	mods, key, err := ParseCombo(combo)
	if err != nil {
		return fmt.Errorf("invalid hotkey: %w", err)
	}

	l.hk = hotkey.New(mods, key)
	if err := l.hk.Register(); err != nil {
		return fmt.Errorf("%w: register %q: %v", ErrPermission, combo, err)
	}

	if cancelCombo != "" {
		cmods, ckey, err := ParseCombo(cancelCombo)
		if err != nil {
			l.hk.Unregister()
			return fmt.Errorf("invalid cancel hotkey: %w", err)
		}
		l.cancelHk = hotkey.New(cmods, ckey)
		if err := l.cancelHk.Register(); err != nil {
			l.hk.Unregister()
			return fmt.Errorf("%w: register %q: %v", ErrPermission, cancelCombo, err)
		}
	}

	ctx, l.cancel = context.WithCancel(ctx)

	go l.listen(ctx)

	return nil
}

func (l *Listener) listen(ctx context.Context) {
	defer close(l.done)

	// A nil channel blocks forever, which disables the cancel arm of the
	// select when no cancel combo is configured.
	var cancelDown <-chan hotkey.Event
	if l.cancelHk != nil {
		cancelDown = l.cancelHk.Keydown()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-l.hk.Keydown():
			if !ok {
				return
			}
			if intent, ok := l.mapper.keyDown(); ok {
				l.emit(intent)
			}
		case _, ok := <-l.hk.Keyup():
			if !ok {
				return
			}
			if intent, ok := l.mapper.keyUp(); ok {
				l.emit(intent)
			}
		case _, ok := <-cancelDown:
			if !ok {
				return
			}
			l.emit(l.mapper.cancel())
		}
	}
}

// emit performs a non-blocking send; the listener must never wait on the
// orchestrator.
func (l *Listener) emit(intent Intent) {
	select {
	case l.intents <- intent:
	default:
		l.logger.Warn("intent channel full, dropping", "intent", intent.String())
	}
}

// Stop unregisters the hotkeys and stops the listening goroutine.
func (l *Listener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	if l.hk != nil {
		l.hk.Unregister()
	}
	if l.cancelHk != nil {
		l.cancelHk.Unregister()
	}
	select {
	case <-l.done:
	case <-time.After(100 * time.Millisecond):
	}
}
