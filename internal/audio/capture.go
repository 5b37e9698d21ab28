package audio

import (
	"context"
	"errors"
	"time"
)

// ErrDevice indicates no usable audio input device. The daemon treats it as
// recoverable: notify the user and return to idle.
var ErrDevice = errors.New("audio input device unavailable")

// CaptureConfig holds configuration for audio capture
type CaptureConfig struct {
	// SampleRate is the number of samples per second (Hz)
	SampleRate uint32

	// Channels is the number of audio channels (1 = mono)
	Channels uint32

	// BufferFrames is the number of frames per capture period
	BufferFrames uint32

	// SampleBufferSize is the size of the channel buffer for samples
	SampleBufferSize int

	// DeviceName selects the input device by case-insensitive substring
	// match. Empty string = default device.
	DeviceName string
}

// DefaultCaptureConfig returns a capture configuration suitable for STT:
// 16kHz mono 16-bit PCM in 30ms periods.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:       16000,
		Channels:         1,
		BufferFrames:     480, // 30ms at 16kHz
		SampleBufferSize: 50,
	}
}

// Sample represents a chunk of captured audio data
type Sample struct {
	Data      []byte    // Raw 16-bit PCM
	Timestamp time.Time // When the sample was captured
	Frames    uint32    // Number of audio frames in this sample
}

// Capturer is the interface for audio capture implementations
type Capturer interface {
	// Start begins audio capture
	Start(ctx context.Context) error

	// Stop stops audio capture and closes the sample channel
	Stop() error

	// Samples returns a channel that receives audio samples
	Samples() <-chan Sample

	// Errors returns a channel that receives capture errors
	Errors() <-chan error

	// IsRunning returns true if capture is currently active
	IsRunning() bool
}

// NewCapturer creates a new audio capturer with the given configuration
func NewCapturer(config CaptureConfig) (Capturer, error) {
	return newMalgoCapturer(config)
}
