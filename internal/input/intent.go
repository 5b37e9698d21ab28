package input

import (
	"errors"
	"fmt"
)

// ErrPermission indicates the global hotkey hook could not be installed.
// This is fatal at startup: without the hook the daemon is deaf.
var ErrPermission = errors.New("hotkey hook could not be installed")

// Intent is a logical capture event derived from raw key state.
type Intent int

const (
	// BeginCapture starts a recording session.
	BeginCapture Intent = iota

	// EndCapture finishes the recording and hands it to transcription.
	EndCapture

	// Cancel discards whatever is in flight.
	Cancel
)

func (i Intent) String() string {
	switch i {
	case BeginCapture:
		return "begin-capture"
	case EndCapture:
		return "end-capture"
	case Cancel:
		return "cancel"
	}
	return fmt.Sprintf("intent(%d)", int(i))
}

// TriggerMode is the policy mapping raw key events to intents.
type TriggerMode int

const (
	// Toggle alternates begin/end on each complete press.
	Toggle TriggerMode = iota

	// PushToTalk begins on key-down and ends on key-up.
	PushToTalk
)

// ParseTriggerMode maps a configuration string to a TriggerMode.
func ParseTriggerMode(s string) (TriggerMode, error) {
	switch s {
	case "toggle":
		return Toggle, nil
	case "push-to-talk":
		return PushToTalk, nil
	}
	return 0, fmt.Errorf("unknown trigger mode %q", s)
}

// mapper turns raw key-down/key-up events for the capture combo into
// intents. It is not safe for concurrent use; the listener drives it from a
// single goroutine.
type mapper struct {
	mode TriggerMode

	// toggle phase: true while a toggle session is considered open
	open bool

	// push-to-talk: true while the combo is physically held, so OS
	// key-repeat events do not re-emit BeginCapture
	held bool
}

// keyDown processes a key-down event and reports the intent to emit, if any.
func (m *mapper) keyDown() (Intent, bool) {
	switch m.mode {
	case Toggle:
		m.open = !m.open
		if m.open {
			return BeginCapture, true
		}
		return EndCapture, true
	case PushToTalk:
		if m.held {
			return 0, false // key repeat
		}
		m.held = true
		return BeginCapture, true
	}
	return 0, false
}

// keyUp processes a key-up event and reports the intent to emit, if any.
func (m *mapper) keyUp() (Intent, bool) {
	if m.mode != PushToTalk {
		return 0, false
	}
	if !m.held {
		return 0, false
	}
	m.held = false
	return EndCapture, true
}

// cancel resets the mapper so the next press starts a fresh session.
func (m *mapper) cancel() Intent {
	m.open = false
	m.held = false
	return Cancel
}
