package stt

import (
	"context"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// WhisperEngine is the local accurate engine: in-process whisper.cpp
// inference, higher latency than vosk, noticeably better accuracy.
type WhisperEngine struct {
	modelPath string
	language  string

	mu    sync.Mutex
	model whisper.Model
}

// NewWhisperEngine creates a whisper.cpp engine. The model is loaded on
// first use. language may be empty for auto-detection.
func NewWhisperEngine(modelPath, language string) *WhisperEngine {
	return &WhisperEngine{modelPath: modelPath, language: language}
}

// Name identifies the engine in logs and errors
func (w *WhisperEngine) Name() string { return "local-accurate" }

// Transcribe runs the whole buffer through whisper and concatenates the
// resulting segments.
func (w *WhisperEngine) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model == nil {
		model, err := whisper.New(w.modelPath)
		if err != nil {
			return "", engineErrf(w.Name(), "load model %s: %v", w.modelPath, err)
		}
		w.model = model
	}

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", engineErrf(w.Name(), "create context: %v", err)
	}

	if w.language != "" && w.language != "auto" {
		if err := wctx.SetLanguage(w.language); err != nil {
			return "", engineErrf(w.Name(), "set language %q: %v", w.language, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := wctx.Process(pcmToFloat32(pcm), nil, nil, nil); err != nil {
		return "", engineErrf(w.Name(), "process audio: %v", err)
	}

	var text strings.Builder
	for {
		segment, err := wctx.NextSegment()
		if err != nil {
			break
		}
		text.WriteString(segment.Text)
		text.WriteString(" ")
	}

	return strings.TrimSpace(text.String()), nil
}

// Close releases the model
func (w *WhisperEngine) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model != nil {
		err := w.model.Close()
		w.model = nil
		return err
	}
	return nil
}

// pcmToFloat32 converts 16-bit little-endian PCM to the normalized float
// samples whisper expects.
func pcmToFloat32(pcm []byte) []float32 {
	const maxInt16 = 32768.0
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		samples[i] = float32(s) / maxInt16
	}
	return samples
}
