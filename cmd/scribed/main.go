package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/emmett/scribe/internal/audio"
	"github.com/emmett/scribe/internal/config"
	"github.com/emmett/scribe/internal/daemon"
	"github.com/emmett/scribe/internal/focus"
	"github.com/emmett/scribe/internal/input"
	"github.com/emmett/scribe/internal/output"
	"github.com/emmett/scribe/internal/stt"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configFile  = flag.String("config", "", "Path to configuration file (default: ~/.scriberc or ~/.config/scribe/config.yaml)")
	engineName  = flag.String("engine", "", "Transcription engine: local-fast, local-accurate, remote-api")
	hotkeyCombo = flag.String("hotkey", "", "Capture hotkey combo, e.g. ctrl+shift+space")
	triggerMode = flag.String("mode", "", "Hotkey trigger mode: toggle or push-to-talk")
	pidPath     = flag.String("pidfile", "", "PID file path (default: runtime dir)")
	logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("scribed v%s (commit: %s, built: %s)\n", Version, GitCommit, BuildTime)
		return
	}

	command := "run"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	logger := newLogger(*logLevel)

	var err error
	switch command {
	case "run":
		err = run(logger)
	case "start":
		err = start(logger)
	case "stop":
		err = stop()
	case "status":
		err = status()
	default:
		err = fmt.Errorf("unknown command %q (want run, start, stop or status)", command)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.LoadWithFallback(*configFile)
	if err != nil {
		logger.Warn("failed to load config, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	if *engineName != "" {
		cfg.Engine.Name = *engineName
	}
	if *hotkeyCombo != "" {
		cfg.Hotkey.Combo = *hotkeyCombo
	}
	if *triggerMode != "" {
		cfg.Hotkey.Mode = *triggerMode
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func pidFile() *daemon.PIDFile {
	path := *pidPath
	if path == "" {
		path = daemon.DefaultPIDPath()
	}
	return daemon.NewPIDFile(path)
}

// run is the foreground daemon loop.
func run(logger *slog.Logger) error {
	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}

	pf := pidFile()
	if pid, err := pf.Alive(); err == nil {
		return fmt.Errorf("already running (pid %d)", pid)
	}
	if err := pf.Write(); err != nil {
		return err
	}
	defer pf.Remove()

	engine, err := stt.New(cfg)
	if err != nil {
		return fmt.Errorf("create %s engine: %w", cfg.Engine.Name, err)
	}
	defer engine.Close()

	captureCfg := audio.DefaultCaptureConfig()
	captureCfg.SampleRate = cfg.Audio.SampleRate
	captureCfg.DeviceName = cfg.Audio.Device
	recorder := audio.NewRecorder(captureCfg, cfg.Audio.MaxRecordingSeconds, logger)

	notifier := output.NewNotifier(cfg.Output.Notify, logger)
	sound := output.NewSound(cfg.Output.SoundEffects, logger)
	sink := output.NewSink(cfg, notifier, logger)
	tracker := focus.New(logger)

	mode, err := input.ParseTriggerMode(cfg.Hotkey.Mode)
	if err != nil {
		return err
	}
	listener := input.NewListener(mode, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := listener.Start(ctx, cfg.Hotkey.Combo, cfg.Hotkey.Cancel); err != nil {
		if errors.Is(err, input.ErrPermission) {
			return fmt.Errorf("%w (grant input monitoring permission and retry)", err)
		}
		return err
	}
	defer listener.Stop()

	d := daemon.New(daemon.Config{
		Recorder:         recorder,
		Engine:           engine,
		Sink:             sink,
		Notifier:         notifier,
		Sound:            sound,
		Tracker:          tracker,
		Intents:          listener.Intents(),
		SampleRate:       cfg.Audio.SampleRate,
		MaxRecordingTime: time.Duration(cfg.Audio.MaxRecordingSeconds) * time.Second,
		Logger:           logger,
	})

	logger.Info("scribed started",
		"version", Version,
		"engine", cfg.Engine.Name,
		"hotkey", cfg.Hotkey.Combo,
		"mode", cfg.Hotkey.Mode)

	return d.Run(ctx)
}

// start launches a detached run and returns once the child is off the
// ground.
func start(logger *slog.Logger) error {
	pf := pidFile()
	if pid, err := pf.Alive(); err == nil {
		return fmt.Errorf("already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	args := []string{"run"}
	flag.Visit(func(f *flag.Flag) {
		args = append(args, "-"+f.Name+"="+f.Value.String())
	})

	cmd := exec.Command(exe, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	logger.Info("scribed started in background", "pid", cmd.Process.Pid)
	return cmd.Process.Release()
}

func stop() error {
	pf := pidFile()
	pid, err := pf.Alive()
	if err != nil {
		if errors.Is(err, daemon.ErrNotRunning) {
			fmt.Println("scribed is not running")
			return nil
		}
		return err
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	fmt.Printf("sent SIGTERM to scribed (pid %d)\n", pid)
	return nil
}

func status() error {
	pid, err := pidFile().Alive()
	if err != nil {
		if errors.Is(err, daemon.ErrNotRunning) {
			fmt.Println("scribed is not running")
			return nil
		}
		return err
	}
	fmt.Printf("scribed is running (pid %d)\n", pid)
	return nil
}
