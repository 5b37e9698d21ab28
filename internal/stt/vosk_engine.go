package stt

import (
	"context"
	"encoding/json"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"
)

// VoskEngine is the local fast engine: in-process vosk inference, low
// latency, approximate accuracy.
type VoskEngine struct {
	modelPath string

	mu         sync.Mutex
	model      *vosk.VoskModel
	recognizer *vosk.VoskRecognizer
	rate       int
}

// voskResult represents the JSON result from vosk
type voskResult struct {
	Text string `json:"text"`
}

// NewVoskEngine creates a vosk engine. The model is loaded on first use.
func NewVoskEngine(modelPath string) *VoskEngine {
	return &VoskEngine{modelPath: modelPath}
}

// Name identifies the engine in logs and errors
func (v *VoskEngine) Name() string { return "local-fast" }

// ensureLoaded loads the model and builds a recognizer for the sample rate.
// Callers hold v.mu.
func (v *VoskEngine) ensureLoaded(sampleRate int) error {
	if v.recognizer != nil && v.rate == sampleRate {
		return nil
	}

	if v.model == nil {
		vosk.SetLogLevel(-1) // suppress vosk's own logging

		model, err := vosk.NewModel(v.modelPath)
		if err != nil {
			return engineErrf(v.Name(), "load model %s: %v", v.modelPath, err)
		}
		if model == nil {
			return engineErrf(v.Name(), "load model %s: model returned nil", v.modelPath)
		}
		v.model = model
	}

	if v.recognizer != nil {
		v.recognizer.Free()
	}
	recognizer, err := vosk.NewRecognizer(v.model, float64(sampleRate))
	if err != nil {
		return engineErrf(v.Name(), "create recognizer: %v", err)
	}
	v.recognizer = recognizer
	v.rate = sampleRate

	return nil
}

// Transcribe feeds the whole buffer through the recognizer in 30ms chunks
// and returns the final hypothesis.
func (v *VoskEngine) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.ensureLoaded(sampleRate); err != nil {
		return "", err
	}

	chunkSize := sampleRate / 100 * 3 * 2 // 30ms of 16-bit samples
	for i := 0; i < len(pcm); i += chunkSize {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		end := i + chunkSize
		if end > len(pcm) {
			end = len(pcm)
		}
		v.recognizer.AcceptWaveform(pcm[i:end])
	}

	// FinalResult also resets the recognizer for the next session.
	resultJSON := v.recognizer.FinalResult()
	var result voskResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return "", engineErrf(v.Name(), "parse result: %v", err)
	}

	return result.Text, nil
}

// Close releases the recognizer and model
func (v *VoskEngine) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.recognizer != nil {
		v.recognizer.Free()
		v.recognizer = nil
	}
	if v.model != nil {
		v.model.Free()
		v.model = nil
	}
	return nil
}
