package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Engine names accepted in the configuration.
const (
	EngineLocalFast     = "local-fast"     // vosk, low latency
	EngineLocalAccurate = "local-accurate" // whisper.cpp, higher latency
	EngineRemoteAPI     = "remote-api"     // OpenAI transcription API
)

// Trigger modes accepted in the configuration.
const (
	ModeToggle     = "toggle"
	ModePushToTalk = "push-to-talk"
)

// Output modes accepted in the configuration.
const (
	OutputInjection = "injection"
	OutputClipboard = "clipboard"
	OutputAuto      = "auto"
)

// Config represents the daemon configuration
type Config struct {
	// Hotkey settings
	Hotkey struct {
		Combo  string `yaml:"combo"`
		Cancel string `yaml:"cancel"`
		Mode   string `yaml:"mode"`
	} `yaml:"hotkey"`

	// Engine settings
	Engine struct {
		Name             string `yaml:"name"`
		Language         string `yaml:"language"`
		APIKey           string `yaml:"api_key"`
		APIModel         string `yaml:"api_model"`
		VoskModelPath    string `yaml:"vosk_model_path"`
		WhisperModelPath string `yaml:"whisper_model_path"`
	} `yaml:"engine"`

	// Audio settings
	Audio struct {
		Device              string `yaml:"device"`
		SampleRate          int    `yaml:"sample_rate"`
		MaxRecordingSeconds int    `yaml:"max_recording_seconds"`
	} `yaml:"audio"`

	// Output settings
	Output struct {
		Mode         string `yaml:"mode"`
		Notify       bool   `yaml:"notify"`
		SoundEffects bool   `yaml:"sound_effects"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Hotkey.Combo = "ctrl+shift+space"
	cfg.Hotkey.Cancel = "ctrl+shift+escape"
	cfg.Hotkey.Mode = ModeToggle

	cfg.Engine.Name = EngineLocalFast
	cfg.Engine.Language = ""
	cfg.Engine.APIModel = "whisper-1"

	cfg.Audio.SampleRate = 16000
	cfg.Audio.MaxRecordingSeconds = 300

	cfg.Output.Mode = OutputAuto
	cfg.Output.Notify = true
	cfg.Output.SoundEffects = true

	return cfg
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadWithFallback attempts to load configuration from multiple locations
// Priority: explicit path > ~/.scriberc > <user config dir>/scribe/config.yaml
func LoadWithFallback(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(homeDir, ".scriberc")
		if _, err := os.Stat(userConfigPath); err == nil {
			cfg, err := Load(userConfigPath)
			if err == nil {
				return cfg, nil
			}
		}
	}

	configDir, err := os.UserConfigDir()
	if err == nil {
		systemConfigPath := filepath.Join(configDir, "scribe", "config.yaml")
		if _, err := os.Stat(systemConfigPath); err == nil {
			cfg, err := Load(systemConfigPath)
			if err == nil {
				return cfg, nil
			}
		}
	}

	// No config file found, return defaults
	return DefaultConfig(), nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration and normalizes numeric ranges.
// Unknown enum values are rejected: a misconfigured daemon must fail at
// startup, not at the first hotkey press.
func (c *Config) Validate() error {
	switch c.Engine.Name {
	case EngineLocalFast, EngineLocalAccurate, EngineRemoteAPI:
	default:
		return fmt.Errorf("unknown engine %q (want %s, %s or %s)",
			c.Engine.Name, EngineLocalFast, EngineLocalAccurate, EngineRemoteAPI)
	}

	switch c.Hotkey.Mode {
	case ModeToggle, ModePushToTalk:
	default:
		return fmt.Errorf("unknown trigger mode %q (want %s or %s)",
			c.Hotkey.Mode, ModeToggle, ModePushToTalk)
	}

	switch c.Output.Mode {
	case OutputInjection, OutputClipboard, OutputAuto:
	default:
		return fmt.Errorf("unknown output mode %q (want %s, %s or %s)",
			c.Output.Mode, OutputInjection, OutputClipboard, OutputAuto)
	}

	if c.Hotkey.Combo == "" {
		return fmt.Errorf("hotkey combo must not be empty")
	}

	if c.Audio.MaxRecordingSeconds < 1 {
		slog.Warn("max_recording_seconds below minimum, clamping",
			"value", c.Audio.MaxRecordingSeconds, "min", 1)
		c.Audio.MaxRecordingSeconds = 1
	} else if c.Audio.MaxRecordingSeconds > 600 {
		slog.Warn("max_recording_seconds above maximum, clamping",
			"value", c.Audio.MaxRecordingSeconds, "max", 600)
		c.Audio.MaxRecordingSeconds = 600
	}

	// All three engines expect 16kHz mono; the recorder does no resampling.
	if c.Audio.SampleRate != 16000 {
		slog.Warn("sample_rate is fixed at 16000", "value", c.Audio.SampleRate)
		c.Audio.SampleRate = 16000
	}

	return nil
}
