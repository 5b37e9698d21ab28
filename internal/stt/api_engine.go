package stt

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/emmett/scribe/internal/audio"
)

// APIEngine is the remote engine: it ships the recording to the OpenAI
// transcription API as an in-memory WAV file. Network failures surface as
// EngineError; retry policy, if any, belongs to the caller.
type APIEngine struct {
	client   *openai.Client
	model    string
	language string
}

// NewAPIEngine creates a remote engine. The key must already be resolved
// (config value or environment); an empty key fails construction so the
// daemon refuses to start rather than failing on the first hotkey press.
func NewAPIEngine(apiKey, model, language string) (*APIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("remote-api engine requires an API key (config api_key or OPENAI_API_KEY)")
	}
	if model == "" {
		model = "whisper-1"
	}
	return &APIEngine{
		client:   openai.NewClient(apiKey),
		model:    model,
		language: language,
	}, nil
}

// Name identifies the engine in logs and errors
func (a *APIEngine) Name() string { return "remote-api" }

// Transcribe encodes the buffer as WAV and calls the transcription API.
func (a *APIEngine) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	if len(pcm) == 0 {
		return "", nil
	}

	wavData, err := audio.EncodeWAV(pcm, sampleRate, 1)
	if err != nil {
		return "", engineErrf(a.Name(), "encode wav: %v", err)
	}

	req := openai.AudioRequest{
		Model:    a.model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(wavData),
		Language: a.language,
	}

	resp, err := a.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", engineErrf(a.Name(), "transcription request: %v", err)
	}

	return strings.TrimSpace(resp.Text), nil
}

// Close is a no-op; the HTTP client holds no model resources.
func (a *APIEngine) Close() error { return nil }
