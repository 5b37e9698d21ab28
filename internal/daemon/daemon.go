package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emmett/scribe/internal/audio"
	"github.com/emmett/scribe/internal/focus"
	"github.com/emmett/scribe/internal/input"
	"github.com/emmett/scribe/internal/output"
	"github.com/emmett/scribe/internal/stt"
)

// State is the orchestrator state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateTranscribing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateTranscribing:
		return "transcribing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Recorder is what the daemon needs from the audio recorder.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() ([]byte, error)
}

// Config wires the daemon's collaborators.
type Config struct {
	Recorder Recorder
	Engine   stt.Engine
	Sink     output.Sink
	Notifier output.Notifier
	Sound    output.Sound
	Tracker  focus.Tracker
	Intents  <-chan input.Intent

	SampleRate       int
	MaxRecordingTime time.Duration
	Speech           audio.SpeechConfig
	Logger           *slog.Logger
}

// session is one begin-capture-to-output cycle. The daemon goroutine is its
// sole owner and mutator.
type session struct {
	id        uuid.UUID
	seq       uint64
	startedAt time.Time
	window    focus.Window
}

type job struct {
	seq uint64
	pcm []byte
}

type result struct {
	seq  uint64
	text string
	err  error
}

// Daemon serializes all session state transitions on a single controller
// goroutine and dispatches transcription to a worker pool of one, so the
// hotkey path is never blocked by inference or network latency.
type Daemon struct {
	recorder Recorder
	engine   stt.Engine
	sink     output.Sink
	notifier output.Notifier
	sound    output.Sound
	tracker  focus.Tracker
	logger   *slog.Logger

	intents    <-chan input.Intent
	jobs       chan job
	results    chan result
	sampleRate int
	maxTime    time.Duration
	speech     audio.SpeechConfig
	maxTimer   *time.Timer

	// All fields below are touched only by the controller goroutine.
	state    State
	session  *session
	nextSeq  uint64
	inflight int
}

// New creates a Daemon. Run must be called before intents are handled.
func New(cfg Config) *Daemon {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	speech := cfg.Speech
	if speech.FrameBytes == 0 {
		speech = audio.DefaultSpeechConfig()
	}

	sound := cfg.Sound
	if sound == nil {
		sound = output.NoSound{}
	}

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	return &Daemon{
		recorder:   cfg.Recorder,
		engine:     cfg.Engine,
		sink:       cfg.Sink,
		notifier:   cfg.Notifier,
		sound:      sound,
		tracker:    cfg.Tracker,
		logger:     logger.With("component", "daemon"),
		intents:    cfg.Intents,
		jobs:       make(chan job, 1),
		results:    make(chan result, 1),
		sampleRate: cfg.SampleRate,
		maxTime:    cfg.MaxRecordingTime,
		speech:     speech,
		maxTimer:   timer,
	}
}

// Run processes intents until the context is canceled or the intent channel
// closes. Intents are handled in arrival order; sessions never overlap.
func (d *Daemon) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.worker(ctx)
	}()

	defer func() {
		if d.state == StateRecording {
			d.recorder.Stop()
		}
		wg.Wait()
	}()

	d.logger.Info("daemon running", "engine", d.engine.Name())

	for {
		select {
		case <-ctx.Done():
			return nil
		case intent, ok := <-d.intents:
			if !ok {
				return nil
			}
			d.handleIntent(ctx, intent)
		case res := <-d.results:
			d.handleResult(ctx, res)
		case <-d.maxTimer.C:
			d.logger.Info("max recording duration reached, stopping capture")
			d.endCapture(ctx)
		}
	}
}

// worker executes transcription jobs, one at a time.
func (d *Daemon) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.jobs:
			text, err := d.engine.Transcribe(ctx, j.pcm, d.sampleRate)
			select {
			case d.results <- result{seq: j.seq, text: text, err: err}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (d *Daemon) handleIntent(ctx context.Context, intent input.Intent) {
	switch intent {
	case input.BeginCapture:
		d.beginCapture(ctx)
	case input.EndCapture:
		d.endCapture(ctx)
	case input.Cancel:
		d.cancelSession()
	default:
		d.logger.Warn("unknown intent", "intent", intent)
	}
}

func (d *Daemon) beginCapture(ctx context.Context) {
	if d.state != StateIdle {
		d.logger.Debug("ignoring begin-capture", "state", d.state.String())
		return
	}
	if d.inflight > 0 {
		// An abandoned engine call is still running; it cannot be
		// preempted, so a new session must wait for it to drain.
		d.logger.Debug("ignoring begin-capture, transcription still in flight")
		return
	}

	window, err := d.tracker.Capture()
	if err != nil {
		d.logger.Debug("focus capture failed", "error", err)
	}

	if err := d.recorder.Start(ctx); err != nil {
		if errors.Is(err, audio.ErrDevice) {
			d.logger.Error("microphone unavailable", "error", err)
			d.notify("Recording failed", "Microphone unavailable. Check your input device.")
		} else {
			d.logger.Error("recorder start failed", "error", err)
			d.notify("Recording failed", err.Error())
		}
		return
	}

	d.nextSeq++
	d.session = &session{
		id:        uuid.New(),
		seq:       d.nextSeq,
		startedAt: time.Now(),
		window:    window,
	}
	d.state = StateRecording
	if d.maxTime > 0 {
		d.maxTimer.Reset(d.maxTime)
	}
	d.sound.CaptureStarted()
	d.logger.Info("recording started", "session", d.session.id.String())
}

func (d *Daemon) endCapture(ctx context.Context) {
	if d.state != StateRecording {
		d.logger.Debug("ignoring end-capture", "state", d.state.String())
		return
	}
	d.stopMaxTimer()

	pcm, err := d.recorder.Stop()
	if err != nil {
		d.logger.Warn("recorder stop failed", "error", err)
	}
	d.sound.CaptureStopped()

	if len(pcm) == 0 || !audio.HasSpeech(pcm, d.speech) {
		d.logger.Info("no speech detected, discarding recording",
			"session", d.session.id.String(), "bytes", len(pcm))
		d.session = nil
		d.state = StateIdle
		return
	}

	d.logger.Info("transcribing", "session", d.session.id.String(), "bytes", len(pcm))
	d.state = StateTranscribing
	d.inflight++
	// Never blocks: begin-capture is rejected while a job is in flight,
	// so the job channel is always free here.
	d.jobs <- job{seq: d.session.seq, pcm: pcm}
}

func (d *Daemon) handleResult(ctx context.Context, res result) {
	d.inflight--

	if d.session == nil || res.seq != d.session.seq {
		d.logger.Debug("discarding stale transcription result", "seq", res.seq)
		return
	}

	sess := d.session
	d.session = nil
	d.state = StateIdle

	if res.err != nil {
		d.logger.Error("transcription failed", "session", sess.id.String(), "error", res.err)
		d.notify("Transcription failed", res.err.Error())
		return
	}
	if res.text == "" {
		d.logger.Info("empty transcript", "session", sess.id.String())
		return
	}

	if err := d.tracker.Restore(sess.window); err != nil {
		d.logger.Debug("focus restore failed", "error", err)
	}

	if err := d.sink.Deliver(ctx, res.text); err != nil {
		d.logger.Error("delivery failed", "session", sess.id.String(), "error", err)
		d.notify("Delivery failed", err.Error())
		return
	}

	d.logger.Info("transcript delivered",
		"session", sess.id.String(),
		"chars", len(res.text),
		"took", time.Since(sess.startedAt).String())
}

// cancelSession discards whatever is in flight and returns to idle. A
// running engine call cannot be preempted; its result is discarded on
// arrival instead.
func (d *Daemon) cancelSession() {
	switch d.state {
	case StateIdle:
		return
	case StateRecording:
		d.stopMaxTimer()
		if _, err := d.recorder.Stop(); err != nil {
			d.logger.Warn("recorder stop failed", "error", err)
		}
		d.sound.CaptureStopped()
		d.logger.Info("recording canceled", "session", d.session.id.String())
	case StateTranscribing:
		d.logger.Info("transcription abandoned", "session", d.session.id.String())
	}
	d.session = nil
	d.state = StateIdle
}

func (d *Daemon) stopMaxTimer() {
	if !d.maxTimer.Stop() {
		select {
		case <-d.maxTimer.C:
		default:
		}
	}
}

func (d *Daemon) notify(title, message string) {
	if d.notifier != nil {
		d.notifier.Notify(title, message)
	}
}
