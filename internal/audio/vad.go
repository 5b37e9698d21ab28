package audio

import (
	"math"
)

// SpeechConfig tunes the energy-based speech check applied to finished
// recordings.
type SpeechConfig struct {
	// EnergyThreshold is the minimum RMS energy for a frame to count as
	// speech. Typical values: 0.001 to 0.1 (lower = more sensitive).
	EnergyThreshold float64

	// MinSpeechFrames is how many frames must exceed the threshold before
	// the buffer is considered to contain speech. At 30ms frames, 3 frames
	// is 90ms of speech.
	MinSpeechFrames int

	// FrameBytes is the analysis window in bytes of 16-bit PCM.
	FrameBytes int
}

// DefaultSpeechConfig returns a moderate-sensitivity configuration for
// 16kHz mono 16-bit audio.
func DefaultSpeechConfig() SpeechConfig {
	return SpeechConfig{
		EnergyThreshold: 0.01,
		MinSpeechFrames: 3,
		FrameBytes:      480 * 2, // 30ms at 16kHz
	}
}

// HasSpeech reports whether the PCM buffer contains enough above-threshold
// frames to be worth transcribing. Silent recordings are short-circuited to
// an empty transcript without waking the engine. A zero-value config falls
// back to DefaultSpeechConfig.
func HasSpeech(pcm []byte, config SpeechConfig) bool {
	if len(pcm) == 0 {
		return false
	}
	if config.FrameBytes <= 0 {
		config = DefaultSpeechConfig()
	}

	speechFrames := 0
	for i := 0; i < len(pcm); i += config.FrameBytes {
		end := i + config.FrameBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if frameEnergy(pcm[i:end]) > config.EnergyThreshold {
			speechFrames++
			if speechFrames >= config.MinSpeechFrames {
				return true
			}
		}
	}

	return false
}

// frameEnergy calculates the RMS energy of a 16-bit PCM frame
func frameEnergy(data []byte) float64 {
	sampleCount := len(data) / 2
	if sampleCount == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < sampleCount; i++ {
		// 16-bit little-endian sample, normalized to -1.0..1.0
		sample := int16(data[i*2]) | int16(data[i*2+1])<<8
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}

	return math.Sqrt(sum / float64(sampleCount))
}
