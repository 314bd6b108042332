package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// accessKeyEnv is consulted when wake.access_key is empty.
const accessKeyEnv = "PICOVOICE_ACCESS_KEY"

// Load reads the YAML configuration file at path and returns a [Config]
// with defaults applied and validation passed.
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Unknown fields are rejected. An empty document
// yields the default config (which still fails validation until
// stt.model_path is set).
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found, so a
// single pass reports every problem. Suspicious but legal combinations are
// logged as warnings instead.
func Validate(cfg *Config) error {
	var errs []error

	// Log
	if !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}
	if !cfg.Log.Format.IsValid() {
		errs = append(errs, fmt.Errorf("log.format %q is invalid; valid values: text, json", cfg.Log.Format))
	}

	// Audio
	if !cfg.Audio.Source.IsValid() {
		errs = append(errs, fmt.Errorf("audio.source %q is invalid; valid values: portaudio, wavfile", cfg.Audio.Source))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must be positive", cfg.Audio.FrameSize))
	}
	if cfg.Audio.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.queue_size %d must be positive", cfg.Audio.QueueSize))
	}
	if cfg.Audio.Source == SourceWAVFile && cfg.Audio.WAVPath == "" {
		errs = append(errs, errors.New("audio.wav_path is required when audio.source is wavfile"))
	}

	// Wake
	if !cfg.Wake.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("wake.backend %q is invalid; valid values: porcupine, transcript", cfg.Wake.Backend))
	}
	if cfg.Wake.Phrase == "" {
		errs = append(errs, errors.New("wake.phrase is required"))
	}
	if cfg.Wake.Sensitivity < 0 || cfg.Wake.Sensitivity > 1 {
		errs = append(errs, fmt.Errorf("wake.sensitivity %.2f is out of range [0, 1]", cfg.Wake.Sensitivity))
	}
	if cfg.Wake.Window <= 0 {
		errs = append(errs, fmt.Errorf("wake.window %v must be positive", cfg.Wake.Window.Std()))
	}
	if cfg.Wake.CheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("wake.check_interval %v must be positive", cfg.Wake.CheckInterval.Std()))
	}
	if cfg.Wake.CheckWindow <= 0 {
		errs = append(errs, fmt.Errorf("wake.check_window %v must be positive", cfg.Wake.CheckWindow.Std()))
	} else if cfg.Wake.CheckWindow > cfg.Wake.Window {
		errs = append(errs, fmt.Errorf("wake.check_window %v exceeds wake.window %v", cfg.Wake.CheckWindow.Std(), cfg.Wake.Window.Std()))
	}

	// Capture
	if !cfg.Capture.VAD.IsValid() {
		errs = append(errs, fmt.Errorf("capture.vad %q is invalid; valid values: energy, flux", cfg.Capture.VAD))
	}
	if cfg.Capture.SilenceThreshold < 0 || cfg.Capture.SilenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("capture.silence_threshold %.3f is out of range [0, 1]", cfg.Capture.SilenceThreshold))
	}
	if cfg.Capture.SilenceDuration <= 0 {
		errs = append(errs, fmt.Errorf("capture.silence_duration %v must be positive", cfg.Capture.SilenceDuration.Std()))
	}
	if cfg.Capture.MaxDuration <= 0 {
		errs = append(errs, fmt.Errorf("capture.max_duration %v must be positive", cfg.Capture.MaxDuration.Std()))
	}

	// STT
	if !cfg.STT.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("stt.backend %q is invalid; valid values: whisper, vosk", cfg.STT.Backend))
	}
	if cfg.STT.ModelPath == "" {
		errs = append(errs, errors.New("stt.model_path is required"))
	}
	if cfg.STT.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("stt.timeout %v must be positive", cfg.STT.Timeout.Std()))
	}
	for i, fb := range cfg.STT.Fallbacks {
		prefix := fmt.Sprintf("stt.fallbacks[%d]", i)
		if !fb.Backend.IsValid() {
			errs = append(errs, fmt.Errorf("%s.backend %q is invalid; valid values: whisper, vosk", prefix, fb.Backend))
		}
		if fb.ModelPath == "" {
			errs = append(errs, fmt.Errorf("%s.model_path is required", prefix))
		}
	}

	// Listener
	if cfg.Listener.ShutdownGrace <= 0 {
		errs = append(errs, fmt.Errorf("listener.shutdown_grace %v must be positive", cfg.Listener.ShutdownGrace.Std()))
	}

	// Cross-field warnings.
	if cfg.Wake.Backend == WakePorcupine && cfg.Wake.AccessKey == "" && os.Getenv(accessKeyEnv) == "" {
		slog.Warn("wake.access_key is empty and PICOVOICE_ACCESS_KEY is not set; wake detection will fall back to the transcript backend")
	}
	if cfg.Wake.Backend == WakePorcupine && cfg.Audio.SampleRate != 16000 {
		slog.Warn("porcupine expects 16 kHz audio; wake detection quality will degrade",
			"sample_rate", cfg.Audio.SampleRate)
	}
	if cfg.Capture.SilenceDuration > cfg.Capture.MaxDuration {
		slog.Warn("capture.silence_duration exceeds capture.max_duration; every capture will run to the max duration",
			"silence_duration", cfg.Capture.SilenceDuration.Std(),
			"max_duration", cfg.Capture.MaxDuration.Std(),
		)
	}

	return errors.Join(errs...)
}
