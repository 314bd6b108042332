// Package config provides the configuration schema, loader, backend
// registry, and hot-reload watcher for the hark voice listener.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can use Go duration strings
// such as "250ms" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to the slog level it names. Unrecognised values map to
// slog.LevelInfo.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat selects the slog handler encoding.
type LogFormat string

const (
	LogText LogFormat = "text"
	LogJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogText || f == LogJSON
}

// SourceKind selects the audio capture implementation.
type SourceKind string

const (
	// SourcePortAudio captures from a microphone via PortAudio.
	SourcePortAudio SourceKind = "portaudio"

	// SourceWAVFile replays a WAV file as if it were live capture.
	SourceWAVFile SourceKind = "wavfile"
)

// IsValid reports whether s is a recognised source kind.
func (s SourceKind) IsValid() bool {
	return s == SourcePortAudio || s == SourceWAVFile
}

// WakeBackend selects the wake word detection implementation.
type WakeBackend string

const (
	// WakePorcupine uses the Picovoice Porcupine keyword-spotting engine.
	WakePorcupine WakeBackend = "porcupine"

	// WakeTranscript matches the wake phrase against rolling transcriptions.
	WakeTranscript WakeBackend = "transcript"
)

// IsValid reports whether w is a recognised wake backend.
func (w WakeBackend) IsValid() bool {
	return w == WakePorcupine || w == WakeTranscript
}

// VADKind selects the voice activity detector used during capture.
type VADKind string

const (
	// VADEnergy compares mean absolute amplitude against a threshold.
	VADEnergy VADKind = "energy"

	// VADFlux detects onsets via spectral flux.
	VADFlux VADKind = "flux"
)

// IsValid reports whether v is a recognised VAD kind.
func (v VADKind) IsValid() bool {
	return v == VADEnergy || v == VADFlux
}

// STTBackend selects a speech-to-text implementation.
type STTBackend string

const (
	STTWhisper STTBackend = "whisper"
	STTVosk    STTBackend = "vosk"
)

// IsValid reports whether s is a recognised speech-to-text backend.
func (s STTBackend) IsValid() bool {
	return s == STTWhisper || s == STTVosk
}

// Config is the root configuration structure for hark.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Audio    AudioConfig    `yaml:"audio"`
	Wake     WakeConfig     `yaml:"wake"`
	Capture  CaptureConfig  `yaml:"capture"`
	STT      STTConfig      `yaml:"stt"`
	Dump     DumpConfig     `yaml:"dump"`
	Listener ListenerConfig `yaml:"listener"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level controls verbosity. Default: info.
	Level LogLevel `yaml:"level"`

	// Format selects the handler encoding (text or json). Default: text.
	Format LogFormat `yaml:"format"`
}

// AdminConfig holds settings for the optional admin HTTP server.
type AdminConfig struct {
	// Addr is the TCP address the admin server listens on (e.g. ":9090").
	// Empty disables the server entirely.
	Addr string `yaml:"addr"`
}

// AudioConfig holds settings for the capture stage.
type AudioConfig struct {
	// Source selects the capture implementation. Default: portaudio.
	Source SourceKind `yaml:"source"`

	// SampleRate is the capture rate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// FrameSize is the number of samples per frame. Default: 4096.
	FrameSize int `yaml:"frame_size"`

	// QueueSize is the frame queue capacity. Frames arriving while the
	// queue is full are dropped. Default: 32.
	QueueSize int `yaml:"queue_size"`

	// Device selects the input device by substring match on its name.
	// Empty uses the system default. PortAudio only.
	Device string `yaml:"device"`

	// WAVPath is the input file for the wavfile source.
	WAVPath string `yaml:"wav_path"`

	// Realtime paces wavfile playback at the file's natural speed instead
	// of pushing frames as fast as the pipeline accepts them.
	Realtime bool `yaml:"realtime"`
}

// WakeConfig holds settings for wake word detection.
type WakeConfig struct {
	// Backend selects the detection implementation. Default: porcupine.
	// When porcupine cannot be initialised (missing access key, engine
	// unavailable), assembly falls back to the transcript backend.
	Backend WakeBackend `yaml:"backend"`

	// Phrase is the wake phrase matched by the transcript backend.
	// Default: "ada".
	Phrase string `yaml:"phrase"`

	// Sensitivity tunes porcupine in [0, 1]; higher values detect more at
	// the cost of false positives. 0 means the default of 0.5.
	Sensitivity float64 `yaml:"sensitivity"`

	// AccessKey is the Picovoice access key. When empty, the
	// PICOVOICE_ACCESS_KEY environment variable is consulted.
	AccessKey string `yaml:"access_key"`

	// Keyword selects a porcupine built-in keyword. Default: "hey siri".
	Keyword string `yaml:"keyword"`

	// KeywordPath points at a custom .ppn keyword model and takes
	// precedence over Keyword when set.
	KeywordPath string `yaml:"keyword_path"`

	// Window is the rolling audio window the transcript backend keeps.
	// Default: 3s.
	Window Duration `yaml:"window"`

	// CheckInterval is how much new audio must accumulate between
	// transcription checks. Default: 1s.
	CheckInterval Duration `yaml:"check_interval"`

	// CheckWindow is how much trailing audio each check transcribes.
	// Must not exceed Window. Default: 1s.
	CheckWindow Duration `yaml:"check_window"`

	// Phonetic enables near-miss phrase matching in the transcript
	// backend (double metaphone + Jaro-Winkler).
	Phonetic bool `yaml:"phonetic"`
}

// CaptureConfig holds settings for utterance segmentation.
type CaptureConfig struct {
	// VAD selects the voice activity detector. Default: energy.
	VAD VADKind `yaml:"vad"`

	// SilenceThreshold is the mean absolute amplitude below which a frame
	// counts as silence, in [0, 1]. 0 means the default of 0.01.
	SilenceThreshold float64 `yaml:"silence_threshold"`

	// SilenceDuration is how much trailing silence ends a capture.
	// Default: 1s.
	SilenceDuration Duration `yaml:"silence_duration"`

	// MaxDuration caps the length of a single capture. Default: 5s.
	MaxDuration Duration `yaml:"max_duration"`
}

// STTConfig holds settings for the speech-to-text stage.
type STTConfig struct {
	// Backend selects the primary implementation. Default: whisper.
	Backend STTBackend `yaml:"backend"`

	// ModelPath is the model file (whisper) or directory (vosk) for the
	// primary backend. Required.
	ModelPath string `yaml:"model_path"`

	// Language hints the transcription language. Default: "en".
	Language string `yaml:"language"`

	// Timeout bounds a single transcription call. Default: 30s.
	Timeout Duration `yaml:"timeout"`

	// Fallbacks lists additional backends tried in order when the primary
	// fails. Each gets its own circuit breaker.
	Fallbacks []STTBackendConfig `yaml:"fallbacks"`
}

// STTBackendConfig describes one speech-to-text backend selection, either
// the primary or a fallback entry.
type STTBackendConfig struct {
	Backend   STTBackend `yaml:"backend"`
	ModelPath string     `yaml:"model_path"`

	// Language hints the transcription language. Fallback entries inherit
	// the primary's language when empty.
	Language string `yaml:"language"`
}

// Primary returns the primary backend selection in the same shape as the
// entries in Fallbacks.
func (c STTConfig) Primary() STTBackendConfig {
	return STTBackendConfig{
		Backend:   c.Backend,
		ModelPath: c.ModelPath,
		Language:  c.Language,
	}
}

// DumpConfig holds settings for the utterance dump store.
type DumpConfig struct {
	// Dir is the directory captured utterances are written to as WAV
	// files. Empty disables dumping.
	Dir string `yaml:"dir"`
}

// ListenerConfig holds settings for the listener lifecycle.
type ListenerConfig struct {
	// ShutdownGrace bounds how long Stop waits for the processing loop to
	// finish (it may be mid-transcription). Default: 5s.
	ShutdownGrace Duration `yaml:"shutdown_grace"`
}

// Default returns a [Config] populated with the documented defaults.
// The returned config is not valid as-is: stt.model_path must be set.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
// The loader calls this before validation; callers constructing configs in
// code can use it to normalise them the same way.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = LogInfo
	}
	if c.Log.Format == "" {
		c.Log.Format = LogText
	}
	if c.Audio.Source == "" {
		c.Audio.Source = SourcePortAudio
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.FrameSize == 0 {
		c.Audio.FrameSize = 4096
	}
	if c.Audio.QueueSize == 0 {
		c.Audio.QueueSize = 32
	}
	if c.Wake.Backend == "" {
		c.Wake.Backend = WakePorcupine
	}
	if c.Wake.Phrase == "" {
		c.Wake.Phrase = "ada"
	}
	if c.Wake.Sensitivity == 0 {
		c.Wake.Sensitivity = 0.5
	}
	if c.Wake.Keyword == "" {
		c.Wake.Keyword = "hey siri"
	}
	if c.Wake.Window == 0 {
		c.Wake.Window = Duration(3 * time.Second)
	}
	if c.Wake.CheckInterval == 0 {
		c.Wake.CheckInterval = Duration(time.Second)
	}
	if c.Wake.CheckWindow == 0 {
		c.Wake.CheckWindow = Duration(time.Second)
	}
	if c.Capture.VAD == "" {
		c.Capture.VAD = VADEnergy
	}
	if c.Capture.SilenceThreshold == 0 {
		c.Capture.SilenceThreshold = 0.01
	}
	if c.Capture.SilenceDuration == 0 {
		c.Capture.SilenceDuration = Duration(time.Second)
	}
	if c.Capture.MaxDuration == 0 {
		c.Capture.MaxDuration = Duration(5 * time.Second)
	}
	if c.STT.Backend == "" {
		c.STT.Backend = STTWhisper
	}
	if c.STT.Language == "" {
		c.STT.Language = "en"
	}
	if c.STT.Timeout == 0 {
		c.STT.Timeout = Duration(30 * time.Second)
	}
	for i := range c.STT.Fallbacks {
		if c.STT.Fallbacks[i].Language == "" {
			c.STT.Fallbacks[i].Language = c.STT.Language
		}
	}
	if c.Listener.ShutdownGrace == 0 {
		c.Listener.ShutdownGrace = Duration(5 * time.Second)
	}
}
