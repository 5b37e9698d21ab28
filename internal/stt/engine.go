package stt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/emmett/scribe/internal/config"
)

// Engine converts a finished audio buffer into text. Implementations load
// their model lazily on first use; an empty or silent buffer yields an empty
// string, not an error.
//
// Engines are not required to be safe for concurrent invocation. The daemon
// runs at most one transcription at a time.
type Engine interface {
	// Name identifies the engine in logs and errors
	Name() string

	// Transcribe converts 16-bit mono PCM to text
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error)

	// Close releases model resources
	Close() error
}

// EngineError wraps an unrecoverable engine failure (model load, network,
// invalid audio). The daemon reports it and returns to idle.
type EngineError struct {
	Engine string
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Engine, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func engineErrf(engine, format string, args ...any) *EngineError {
	return &EngineError{Engine: engine, Err: fmt.Errorf(format, args...)}
}

// New constructs the engine selected by the configuration.
func New(cfg *config.Config) (Engine, error) {
	switch cfg.Engine.Name {
	case config.EngineLocalFast:
		path := cfg.Engine.VoskModelPath
		if path == "" {
			path = defaultModelPath("vosk-model-small-en-us-0.15")
		}
		return NewVoskEngine(path), nil

	case config.EngineLocalAccurate:
		path := cfg.Engine.WhisperModelPath
		if path == "" {
			path = defaultModelPath("ggml-base.bin")
		}
		return NewWhisperEngine(path, cfg.Engine.Language), nil

	case config.EngineRemoteAPI:
		apiKey := cfg.Engine.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		return NewAPIEngine(apiKey, cfg.Engine.APIModel, cfg.Engine.Language)
	}

	return nil, engineErrf(cfg.Engine.Name, "unknown engine")
}

// defaultModelPath places models under the user config dir, next to the
// daemon's own configuration.
func defaultModelPath(name string) string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join("models", name)
	}
	return filepath.Join(configDir, "scribe", "models", name)
}
