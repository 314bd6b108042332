// Command hark is the main entry point for the hark wake-word listener
// daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MrWong99/hark/internal/app"
	"github.com/MrWong99/hark/internal/config"
	"github.com/MrWong99/hark/internal/observe"
	"github.com/MrWong99/hark/pkg/audio"
	"github.com/MrWong99/hark/pkg/audio/portaudio"
	"github.com/MrWong99/hark/pkg/audio/wavfile"
	"github.com/MrWong99/hark/pkg/provider/stt"
	"github.com/MrWong99/hark/pkg/provider/stt/vosk"
	"github.com/MrWong99/hark/pkg/provider/stt/whisper"
	"github.com/MrWong99/hark/pkg/provider/wake"
	"github.com/MrWong99/hark/pkg/provider/wake/porcupine"
	"github.com/MrWong99/hark/pkg/provider/wake/transcript"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	listDevices := flag.Bool("list-devices", false, "print available audio input devices and exit")
	flag.Parse()

	if *listDevices {
		return printDevices()
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "hark: config file %q not found — a minimal config needs stt.model_path set\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "hark: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	levelVar := new(slog.LevelVar)
	levelVar.Set(cfg.Log.Level.Level())
	logger := newLogger(cfg.Log.Format, levelVar)
	slog.SetDefault(logger)

	slog.Info("hark starting",
		"config", *configPath,
		"source", string(cfg.Audio.Source),
		"log_level", string(cfg.Log.Level),
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	// Registers the global meter provider backed by the Prometheus exporter,
	// so the pipeline instruments land on the admin /metrics endpoint.
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "hark"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Backend registry ──────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinBackends(reg)

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(cfg, reg,
		app.WithConfigWatch(*configPath),
		app.WithLogLevelVar(levelVar),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, application.WakeBackend())

	slog.Info("listening — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Backend wiring ──────────────────────────────────────────────────────────────

// builtinBackends maps backend categories to the implementations compiled
// into this binary. Used for startup logging.
var builtinBackends = map[string][]string{
	"source": {"portaudio", "wavfile"},
	"wake":   {"porcupine", "transcript"},
	"stt":    {"whisper", "vosk"},
}

// registerBuiltinBackends wires all built-in backend factories into reg.
// The CGO-backed packages (PortAudio, Porcupine, Whisper, Vosk) are imported
// only here, so library consumers of the internal packages stay free of
// native dependencies.
func registerBuiltinBackends(reg *config.Registry) {
	// ── Audio sources ───────────────────────────────────────────────────────

	reg.RegisterSource(config.SourcePortAudio, func(cfg *config.Config) (audio.Source, error) {
		return portaudio.New(portaudio.Config{
			SampleRate: cfg.Audio.SampleRate,
			FrameSize:  cfg.Audio.FrameSize,
			Device:     cfg.Audio.Device,
		}), nil
	})

	reg.RegisterSource(config.SourceWAVFile, func(cfg *config.Config) (audio.Source, error) {
		return wavfile.New(wavfile.Config{
			Path:       cfg.Audio.WAVPath,
			SampleRate: cfg.Audio.SampleRate,
			FrameSize:  cfg.Audio.FrameSize,
			Realtime:   cfg.Audio.Realtime,
		}), nil
	})

	// ── Wake detectors ──────────────────────────────────────────────────────

	reg.RegisterDetector(config.WakePorcupine, func(cfg *config.Config, _ stt.Transcriber) (wake.Detector, error) {
		return porcupine.New(porcupine.Config{
			AccessKey:   cfg.Wake.AccessKey,
			Keyword:     cfg.Wake.Keyword,
			KeywordPath: cfg.Wake.KeywordPath,
			Sensitivity: float32(cfg.Wake.Sensitivity),
		})
	})

	reg.RegisterDetector(config.WakeTranscript, func(cfg *config.Config, tr stt.Transcriber) (wake.Detector, error) {
		return transcript.New(tr, cfg.Wake.Phrase,
			transcript.WithSampleRate(cfg.Audio.SampleRate),
			transcript.WithWindow(cfg.Wake.Window.Std()),
			transcript.WithCheckInterval(cfg.Wake.CheckInterval.Std()),
			transcript.WithCheckWindow(cfg.Wake.CheckWindow.Std()),
			transcript.WithPhoneticAssist(cfg.Wake.Phonetic),
		)
	})

	// ── Speech-to-text ──────────────────────────────────────────────────────

	reg.RegisterTranscriber(config.STTWhisper, func(cfg *config.Config, entry config.STTBackendConfig) (stt.Transcriber, error) {
		return whisper.New(entry.ModelPath,
			whisper.WithLanguage(entry.Language),
			whisper.WithSampleRate(cfg.Audio.SampleRate),
		)
	})

	reg.RegisterTranscriber(config.STTVosk, func(cfg *config.Config, entry config.STTBackendConfig) (stt.Transcriber, error) {
		return vosk.New(entry.ModelPath,
			vosk.WithSampleRate(cfg.Audio.SampleRate),
		)
	})

	// Debug log of all registered backends.
	for kind, names := range builtinBackends {
		for _, name := range names {
			slog.Debug("registered backend", "kind", kind, "name", name)
		}
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, wakeBackend config.WakeBackend) {
	fmt.Println("╔════════════════════════════════════════╗")
	fmt.Println("║         hark — startup summary         ║")
	fmt.Println("╠════════════════════════════════════════╣")

	source := string(cfg.Audio.Source)
	switch {
	case cfg.Audio.Source == config.SourceWAVFile:
		source += " / " + filepath.Base(cfg.Audio.WAVPath)
	case cfg.Audio.Device != "":
		source += " / " + cfg.Audio.Device
	}
	printRow("Source", source)
	printRow("Audio", fmt.Sprintf("%d Hz / %d samples", cfg.Audio.SampleRate, cfg.Audio.FrameSize))

	if wakeBackend == config.WakeTranscript {
		printRow("Wake", fmt.Sprintf("transcript / %q", cfg.Wake.Phrase))
	} else {
		keyword := cfg.Wake.Keyword
		if cfg.Wake.KeywordPath != "" {
			keyword = filepath.Base(cfg.Wake.KeywordPath)
		}
		printRow("Wake", fmt.Sprintf("%s / %q", wakeBackend, keyword))
	}

	printRow("STT", string(cfg.STT.Backend)+" / "+filepath.Base(cfg.STT.ModelPath))
	if n := len(cfg.STT.Fallbacks); n > 0 {
		printRow("Fallbacks", fmt.Sprintf("%d", n))
	}
	printRow("VAD", string(cfg.Capture.VAD))

	if cfg.Dump.Dir != "" {
		printRow("Dumps", cfg.Dump.Dir)
	} else {
		printRow("Dumps", "(disabled)")
	}
	if cfg.Admin.Addr != "" {
		printRow("Admin", cfg.Admin.Addr)
	} else {
		printRow("Admin", "(disabled)")
	}
	fmt.Println("╚════════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 25 {
		value = value[:22] + "…"
	}
	fmt.Printf("║  %-10s: %-25s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(format config.LogFormat, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// printDevices lists input-capable audio devices for the -list-devices flag.
func printDevices() int {
	names, err := portaudio.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "hark: %v\n", err)
		return 1
	}
	if len(names) == 0 {
		fmt.Println("no input devices found")
		return 0
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return 0
}
