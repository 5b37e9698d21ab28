package daemon

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emmett/scribe/internal/audio"
	"github.com/emmett/scribe/internal/focus"
	"github.com/emmett/scribe/internal/input"
	"github.com/emmett/scribe/internal/stt"
)

// speechPCM returns a buffer loud enough to pass the speech check.
func speechPCM() []byte {
	pcm := make([]byte, 16000) // half a second at 16kHz mono
	for i := 0; i < len(pcm)/2; i++ {
		v := int16(8000)
		if i%2 == 0 {
			v = -8000
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm
}

type fakeRecorder struct {
	startCalls int
	stopCalls  int
	startErr   error
	buf        []byte
}

func (f *fakeRecorder) Start(ctx context.Context) error {
	f.startCalls++
	return f.startErr
}

func (f *fakeRecorder) Stop() ([]byte, error) {
	f.stopCalls++
	return f.buf, nil
}

type fakeEngine struct {
	text  string
	err   error
	calls int
}

func (f *fakeEngine) Name() string { return "stub" }
func (f *fakeEngine) Close() error { return nil }

func (f *fakeEngine) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	f.calls++
	return f.text, f.err
}

type chanSink struct {
	mu    sync.Mutex
	texts []string
	err   error
	ch    chan string
}

func newChanSink() *chanSink {
	return &chanSink{ch: make(chan string, 4)}
}

func (f *chanSink) Deliver(ctx context.Context, text string) error {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	f.ch <- text
	return f.err
}

func (f *chanSink) delivered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []string
}

func (f *fakeNotifier) Notify(title, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, title+": "+message)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notes)
}

type fakeSound struct {
	started int
	stopped int
}

func (f *fakeSound) CaptureStarted() { f.started++ }
func (f *fakeSound) CaptureStopped() { f.stopped++ }

type fakeTracker struct {
	captured int
	restored int
}

func (f *fakeTracker) Capture() (focus.Window, error) {
	f.captured++
	return focus.Window{ID: "42"}, nil
}

func (f *fakeTracker) Restore(w focus.Window) error {
	f.restored++
	return nil
}

type testRig struct {
	daemon   *Daemon
	recorder *fakeRecorder
	engine   *fakeEngine
	sink     *chanSink
	notifier *fakeNotifier
	sound    *fakeSound
	tracker  *fakeTracker
	intents  chan input.Intent
}

func newRig(maxRecording time.Duration) *testRig {
	rig := &testRig{
		recorder: &fakeRecorder{buf: speechPCM()},
		engine:   &fakeEngine{text: "hello world"},
		sink:     newChanSink(),
		notifier: &fakeNotifier{},
		sound:    &fakeSound{},
		tracker:  &fakeTracker{},
		intents:  make(chan input.Intent, 16),
	}
	rig.daemon = New(Config{
		Recorder:         rig.recorder,
		Engine:           rig.engine,
		Sink:             rig.sink,
		Notifier:         rig.notifier,
		Sound:            rig.sound,
		Tracker:          rig.tracker,
		Intents:          rig.intents,
		SampleRate:       16000,
		MaxRecordingTime: maxRecording,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return rig
}

// drainJob simulates the worker for tests that drive the state machine
// synchronously.
func (r *testRig) drainJob(t *testing.T) {
	t.Helper()
	select {
	case j := <-r.daemon.jobs:
		text, err := r.engine.Transcribe(context.Background(), j.pcm, 16000)
		r.daemon.handleResult(context.Background(), result{seq: j.seq, text: text, err: err})
	default:
		t.Fatal("no transcription job dispatched")
	}
}

func TestHappyPathDeliversExactlyOnce(t *testing.T) {
	rig := newRig(0)
	ctx := context.Background()

	rig.daemon.beginCapture(ctx)
	if rig.daemon.state != StateRecording {
		t.Fatalf("state = %s, want recording", rig.daemon.state)
	}
	if rig.recorder.startCalls != 1 {
		t.Fatalf("start calls = %d", rig.recorder.startCalls)
	}
	if rig.tracker.captured != 1 {
		t.Fatalf("focus captured %d times", rig.tracker.captured)
	}

	rig.daemon.endCapture(ctx)
	if rig.daemon.state != StateTranscribing {
		t.Fatalf("state = %s, want transcribing", rig.daemon.state)
	}

	rig.drainJob(t)

	if rig.daemon.state != StateIdle {
		t.Fatalf("state = %s, want idle", rig.daemon.state)
	}
	got := rig.sink.delivered()
	if len(got) != 1 || got[0] != "hello world" {
		t.Fatalf("sink received %v, want exactly one %q", got, "hello world")
	}
	if rig.tracker.restored != 1 {
		t.Fatalf("focus restored %d times", rig.tracker.restored)
	}
}

func TestEmptyBufferSkipsEngine(t *testing.T) {
	rig := newRig(0)
	rig.recorder.buf = nil
	ctx := context.Background()

	rig.daemon.beginCapture(ctx)
	rig.daemon.endCapture(ctx)

	if rig.daemon.state != StateIdle {
		t.Fatalf("state = %s, want idle", rig.daemon.state)
	}
	if len(rig.daemon.jobs) != 0 {
		t.Fatal("no job should be dispatched for an empty buffer")
	}
	if rig.engine.calls != 0 {
		t.Fatal("engine must not be invoked for an empty buffer")
	}
	if len(rig.sink.delivered()) != 0 {
		t.Fatal("sink must not be invoked for an empty buffer")
	}
	if rig.notifier.count() != 0 {
		t.Fatal("silence is not an error to the user")
	}
}

func TestSilentBufferSkipsEngine(t *testing.T) {
	rig := newRig(0)
	rig.recorder.buf = make([]byte, 32000) // digital silence
	ctx := context.Background()

	rig.daemon.beginCapture(ctx)
	rig.daemon.endCapture(ctx)

	if rig.daemon.state != StateIdle {
		t.Fatalf("state = %s, want idle", rig.daemon.state)
	}
	if rig.engine.calls != 0 {
		t.Fatal("engine must not be invoked for silence")
	}
}

func TestBeginWhileTranscribingIsIgnored(t *testing.T) {
	rig := newRig(0)
	ctx := context.Background()

	rig.daemon.beginCapture(ctx)
	rig.daemon.endCapture(ctx)
	if rig.daemon.state != StateTranscribing {
		t.Fatalf("state = %s, want transcribing", rig.daemon.state)
	}

	rig.daemon.beginCapture(ctx)

	if rig.daemon.state != StateTranscribing {
		t.Fatalf("state = %s, want transcribing still", rig.daemon.state)
	}
	if rig.recorder.startCalls != 1 {
		t.Fatalf("recorder started %d times, want 1", rig.recorder.startCalls)
	}
}

func TestEngineErrorReturnsToIdle(t *testing.T) {
	rig := newRig(0)
	rig.engine.err = &stt.EngineError{Engine: "stub", Err: errors.New("model melted")}
	ctx := context.Background()

	rig.daemon.beginCapture(ctx)
	rig.daemon.endCapture(ctx)
	rig.drainJob(t)

	if rig.daemon.state != StateIdle {
		t.Fatalf("state = %s, want idle after engine error", rig.daemon.state)
	}
	if rig.notifier.count() != 1 {
		t.Fatalf("expected 1 error notification, got %d", rig.notifier.count())
	}
	if len(rig.sink.delivered()) != 0 {
		t.Fatal("sink must not receive a failed transcription")
	}

	// The daemon must be immediately ready for a new session.
	rig.daemon.beginCapture(ctx)
	if rig.daemon.state != StateRecording {
		t.Fatalf("state = %s, want recording after recovery", rig.daemon.state)
	}
}

func TestDeviceErrorStaysIdle(t *testing.T) {
	rig := newRig(0)
	rig.recorder.startErr = fmt.Errorf("%w: nothing plugged in", audio.ErrDevice)
	ctx := context.Background()

	rig.daemon.beginCapture(ctx)

	if rig.daemon.state != StateIdle {
		t.Fatalf("state = %s, want idle", rig.daemon.state)
	}
	if rig.daemon.session != nil {
		t.Fatal("no session should exist after a device error")
	}
	if rig.notifier.count() != 1 {
		t.Fatalf("expected device notification, got %d", rig.notifier.count())
	}
}

func TestCancelDuringRecordingDiscardsBuffer(t *testing.T) {
	rig := newRig(0)
	ctx := context.Background()

	rig.daemon.beginCapture(ctx)
	rig.daemon.cancelSession()

	if rig.daemon.state != StateIdle {
		t.Fatalf("state = %s, want idle", rig.daemon.state)
	}
	if rig.recorder.stopCalls != 1 {
		t.Fatalf("recorder stopped %d times, want 1", rig.recorder.stopCalls)
	}
	if rig.engine.calls != 0 {
		t.Fatal("engine must not be invoked after cancel")
	}
	if len(rig.daemon.jobs) != 0 {
		t.Fatal("no job should be dispatched after cancel")
	}
}

func TestCancelDuringTranscribingDiscardsResult(t *testing.T) {
	rig := newRig(0)
	ctx := context.Background()

	rig.daemon.beginCapture(ctx)
	rig.daemon.endCapture(ctx)
	rig.daemon.cancelSession()

	if rig.daemon.state != StateIdle {
		t.Fatalf("state = %s, want idle", rig.daemon.state)
	}

	// The abandoned engine call still drains, but a new capture must wait
	// for it.
	rig.daemon.beginCapture(ctx)
	if rig.recorder.startCalls != 1 {
		t.Fatal("begin-capture must be rejected while the abandoned call is in flight")
	}

	rig.drainJob(t)

	if len(rig.sink.delivered()) != 0 {
		t.Fatal("stale result must be discarded")
	}
	if rig.notifier.count() != 0 {
		t.Fatal("a canceled session is not an error")
	}

	// Drained now, so a new session may start.
	rig.daemon.beginCapture(ctx)
	if rig.daemon.state != StateRecording {
		t.Fatalf("state = %s, want recording", rig.daemon.state)
	}
}

func TestSoundCuesAroundCapture(t *testing.T) {
	rig := newRig(0)
	ctx := context.Background()

	rig.daemon.beginCapture(ctx)
	if rig.sound.started != 1 {
		t.Fatalf("start cue played %d times, want 1", rig.sound.started)
	}
	rig.daemon.endCapture(ctx)
	if rig.sound.stopped != 1 {
		t.Fatalf("stop cue played %d times, want 1", rig.sound.stopped)
	}

	// Cancel during a later recording still plays the stop cue.
	rig.drainJob(t)
	rig.daemon.beginCapture(ctx)
	rig.daemon.cancelSession()
	if rig.sound.stopped != 2 {
		t.Fatalf("stop cue played %d times, want 2", rig.sound.stopped)
	}
}

func TestNoSoundCueOnDeviceError(t *testing.T) {
	rig := newRig(0)
	rig.recorder.startErr = fmt.Errorf("%w: nothing plugged in", audio.ErrDevice)

	rig.daemon.beginCapture(context.Background())

	if rig.sound.started != 0 {
		t.Fatal("start cue must not play when the recorder fails to start")
	}
}

func TestEndCaptureWhileIdleIsIgnored(t *testing.T) {
	rig := newRig(0)
	rig.daemon.endCapture(context.Background())

	if rig.daemon.state != StateIdle {
		t.Fatalf("state = %s, want idle", rig.daemon.state)
	}
	if rig.recorder.stopCalls != 0 {
		t.Fatal("recorder must not be stopped when idle")
	}
}

func TestArbitraryIntentSequencesKeepStateDefined(t *testing.T) {
	rig := newRig(0)
	ctx := context.Background()

	sequence := []input.Intent{
		input.EndCapture, input.Cancel, input.BeginCapture, input.BeginCapture,
		input.Cancel, input.Cancel, input.BeginCapture, input.EndCapture,
	}
	for _, intent := range sequence {
		rig.daemon.handleIntent(ctx, intent)
		// Drain any dispatched job so later intents see both phases.
		select {
		case j := <-rig.daemon.jobs:
			rig.daemon.handleResult(ctx, result{seq: j.seq, text: "x"})
		default:
		}
		if s := rig.daemon.state.String(); strings.HasPrefix(s, "state(") {
			t.Fatalf("undefined state after %s: %s", intent, s)
		}
	}
}

func TestRunEndToEnd(t *testing.T) {
	rig := newRig(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		rig.daemon.Run(ctx)
	}()

	rig.intents <- input.BeginCapture
	rig.intents <- input.EndCapture

	select {
	case text := <-rig.sink.ch:
		if text != "hello world" {
			t.Errorf("delivered %q, want %q", text, "hello world")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not shut down")
	}
}

func TestRunAutoStopsAtMaxDuration(t *testing.T) {
	rig := newRig(30 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go rig.daemon.Run(ctx)

	// Begin only; the max-duration timer must synthesize the end.
	rig.intents <- input.BeginCapture

	select {
	case text := <-rig.sink.ch:
		if text != "hello world" {
			t.Errorf("delivered %q, want %q", text, "hello world")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for auto-stop delivery")
	}
}
