package audio

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// malgoCapturer implements the Capturer interface using malgo (miniaudio)
type malgoCapturer struct {
	config   CaptureConfig
	device   *malgo.Device
	audioCtx *malgo.AllocatedContext
	samples  chan Sample
	errors   chan error
	running  bool
	mu       sync.RWMutex
	stopChan chan struct{}
}

func newMalgoCapturer(config CaptureConfig) (*malgoCapturer, error) {
	return &malgoCapturer{
		config:   config,
		samples:  make(chan Sample, 10),
		errors:   make(chan error, 10),
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins audio capture
func (m *malgoCapturer) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("capturer is already running")
	}
	m.running = true
	m.mu.Unlock()

	fail := func(err error) error {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return err
	}

	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fail(fmt.Errorf("%w: init context: %v", ErrDevice, err))
	}
	m.audioCtx = audioCtx

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = m.config.Channels
	deviceConfig.SampleRate = m.config.SampleRate
	deviceConfig.PeriodSizeInFrames = m.config.BufferFrames

	if m.config.DeviceName != "" {
		id, err := m.findDevice(m.config.DeviceName)
		if err != nil {
			m.teardownContext()
			return fail(err)
		}
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	// Data callback, invoked on the audio thread whenever a period of
	// input is available. The bytes are copied before handoff and the send
	// is non-blocking so a slow consumer can never stall the audio thread.
	var callbacks malgo.DeviceCallbacks
	callbacks.Data = func(pOutputSamples, pInputSamples []byte, frameCount uint32) {
		data := make([]byte, len(pInputSamples))
		copy(data, pInputSamples)

		sample := Sample{
			Data:      data,
			Timestamp: time.Now(),
			Frames:    frameCount,
		}

		select {
		case m.samples <- sample:
		default:
			select {
			case m.errors <- fmt.Errorf("sample buffer overflow, dropping frames"):
			default:
			}
		}
	}

	device, err := malgo.InitDevice(m.audioCtx.Context, deviceConfig, callbacks)
	if err != nil {
		m.teardownContext()
		return fail(fmt.Errorf("%w: init device: %v", ErrDevice, err))
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		m.teardownContext()
		return fail(fmt.Errorf("%w: start device: %v", ErrDevice, err))
	}

	// Context monitor. Stop is serialized on the running flag, so whichever
	// of this goroutine and an external Stop call gets there first performs
	// the teardown and the other returns immediately.
	go func() {
		select {
		case <-ctx.Done():
			m.Stop()
		case <-m.stopChan:
		}
	}()

	return nil
}

// findDevice resolves a device name to its malgo device ID by
// case-insensitive substring match.
func (m *malgoCapturer) findDevice(name string) (malgo.DeviceID, error) {
	infos, err := m.audioCtx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceID{}, fmt.Errorf("%w: enumerate devices: %v", ErrDevice, err)
	}

	want := strings.ToLower(name)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), want) {
			return info.ID, nil
		}
	}

	return malgo.DeviceID{}, fmt.Errorf("%w: no capture device matching %q", ErrDevice, name)
}

func (m *malgoCapturer) teardownContext() {
	if m.audioCtx != nil {
		m.audioCtx.Uninit()
		m.audioCtx.Free()
		m.audioCtx = nil
	}
}

// Stop stops audio capture and closes the sample channel. It is safe to
// call from any goroutine; only the first call tears down.
func (m *malgoCapturer) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopChan)

	var err error
	if m.device != nil {
		// Uninit waits for the audio thread, so no callback can touch the
		// channels after this point.
		if derr := m.device.Stop(); derr != nil {
			err = fmt.Errorf("failed to stop device: %w", derr)
		}
		m.device.Uninit()
	}

	m.teardownContext()

	close(m.samples)
	close(m.errors)

	return err
}

// Samples returns a channel that receives audio samples
func (m *malgoCapturer) Samples() <-chan Sample {
	return m.samples
}

// Errors returns a channel that receives capture errors
func (m *malgoCapturer) Errors() <-chan error {
	return m.errors
}

// IsRunning returns true if capture is currently active
func (m *malgoCapturer) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}
