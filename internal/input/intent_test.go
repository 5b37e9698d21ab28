package input

import "testing"

func collect(events []string, m *mapper) []Intent {
	var out []Intent
	for _, ev := range events {
		switch ev {
		case "down":
			if in, ok := m.keyDown(); ok {
				out = append(out, in)
			}
		case "up":
			if in, ok := m.keyUp(); ok {
				out = append(out, in)
			}
		case "cancel":
			out = append(out, m.cancel())
		}
	}
	return out
}

func TestToggleAlternates(t *testing.T) {
	m := &mapper{mode: Toggle}

	// Two complete presses: begin then end, not two begins.
	got := collect([]string{"down", "up", "down", "up"}, m)
	want := []Intent{BeginCapture, EndCapture}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestPushToTalkSuppressesKeyRepeat(t *testing.T) {
	m := &mapper{mode: PushToTalk}

	// Key-down, three repeats while held, key-up.
	got := collect([]string{"down", "down", "down", "down", "up"}, m)
	want := []Intent{BeginCapture, EndCapture}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if got[0] != BeginCapture || got[1] != EndCapture {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestPushToTalkStrayKeyUp(t *testing.T) {
	m := &mapper{mode: PushToTalk}
	if _, ok := m.keyUp(); ok {
		t.Fatal("key-up without key-down should emit nothing")
	}
}

func TestCancelResetsTogglePhase(t *testing.T) {
	m := &mapper{mode: Toggle}

	got := collect([]string{"down", "cancel", "down"}, m)
	want := []Intent{BeginCapture, Cancel, BeginCapture}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	// After a cancel the next press must open a new session, not close
	// the aborted one.
	if got[2] != BeginCapture {
		t.Fatalf("press after cancel emitted %v, want BeginCapture", got[2])
	}
}

func TestCancelResetsHeldKey(t *testing.T) {
	m := &mapper{mode: PushToTalk}
	m.keyDown()
	m.cancel()
	if _, ok := m.keyUp(); ok {
		t.Fatal("key-up after cancel should emit nothing")
	}
	if in, ok := m.keyDown(); !ok || in != BeginCapture {
		t.Fatalf("key-down after cancel got (%v, %v), want BeginCapture", in, ok)
	}
}

func TestParseTriggerMode(t *testing.T) {
	if m, err := ParseTriggerMode("toggle"); err != nil || m != Toggle {
		t.Errorf("toggle: got (%v, %v)", m, err)
	}
	if m, err := ParseTriggerMode("push-to-talk"); err != nil || m != PushToTalk {
		t.Errorf("push-to-talk: got (%v, %v)", m, err)
	}
	if _, err := ParseTriggerMode("hold"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
