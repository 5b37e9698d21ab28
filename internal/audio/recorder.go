package audio

import (
	"context"
	"log/slog"
	"sync"
)

// Recorder captures microphone input into an in-memory PCM buffer between
// Start and Stop. A fresh capturer is created per recording session, the way
// a fresh malgo device is cheapest to reason about.
//
// Ownership of the buffer is strict: while recording, the collector
// goroutine is the only writer; after Stop returns, the caller is the only
// reader and the recorder keeps no reference.
type Recorder struct {
	config      CaptureConfig
	maxBytes    int
	newCapturer func(CaptureConfig) (Capturer, error)
	logger      *slog.Logger

	mu        sync.Mutex
	capturing bool
	capturer  Capturer
	wg        sync.WaitGroup

	// buf is written by the collector goroutine only; Stop reads it after
	// wg.Wait establishes the happens-before edge.
	buf []byte
}

// NewRecorder creates a Recorder. maxSeconds caps the buffer: once the cap
// is reached further samples are dropped until Stop.
func NewRecorder(config CaptureConfig, maxSeconds int, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	bytesPerSecond := int(config.SampleRate) * int(config.Channels) * 2 // 16-bit samples
	return &Recorder{
		config:      config,
		maxBytes:    bytesPerSecond * maxSeconds,
		newCapturer: NewCapturer,
		logger:      logger.With("component", "recorder"),
	}
}

// Capturing returns true while a recording session is active.
func (r *Recorder) Capturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capturing
}

// Start begins capture. Calling Start while already capturing is a no-op
// with a warning, not an error. A device failure wraps ErrDevice.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capturing {
		r.logger.Warn("start called while already recording, ignoring")
		return nil
	}

	capturer, err := r.newCapturer(r.config)
	if err != nil {
		return err
	}
	if err := capturer.Start(ctx); err != nil {
		return err
	}

	r.capturer = capturer
	r.buf = nil
	r.capturing = true

	r.wg.Add(1)
	go r.collect(capturer)

	return nil
}

// collect drains the capturer until its sample channel closes.
func (r *Recorder) collect(capturer Capturer) {
	defer r.wg.Done()

	capped := false
	samples := capturer.Samples()
	errs := capturer.Errors()

	for {
		select {
		case sample, ok := <-samples:
			if !ok {
				return
			}
			if len(r.buf)+len(sample.Data) > r.maxBytes {
				if !capped {
					r.logger.Warn("recording buffer cap reached, dropping further audio",
						"max_bytes", r.maxBytes)
					capped = true
				}
				continue
			}
			r.buf = append(r.buf, sample.Data...)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			r.logger.Warn("capture error", "error", err)
		}
	}
}

// Stop ends capture and returns the accumulated buffer, transferring
// ownership to the caller. Stop without a prior Start returns an empty
// buffer and no error.
func (r *Recorder) Stop() ([]byte, error) {
	r.mu.Lock()
	if !r.capturing {
		r.mu.Unlock()
		return nil, nil
	}
	r.capturing = false
	capturer := r.capturer
	r.capturer = nil
	r.mu.Unlock()

	// Stopping the capturer closes its sample channel, which lets the
	// collector drain remaining samples and exit.
	if err := capturer.Stop(); err != nil {
		r.logger.Warn("capturer stop failed", "error", err)
	}
	r.wg.Wait()

	buf := r.buf
	r.buf = nil
	return buf, nil
}
