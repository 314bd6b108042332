package config

import "slices"

// ConfigDiff describes what changed between two configs and how the running
// process can absorb it. Live-tunable changes (capture parameters, log
// level) apply without a restart; everything else is structural.
type ConfigDiff struct {
	// Paths lists every changed config path in dotted form, sorted.
	Paths []string

	// CaptureChanged is true when any live capture tunable changed
	// (capture.silence_threshold, capture.silence_duration,
	// capture.max_duration).
	CaptureChanged bool

	// LogLevelChanged is true when log.level changed. NewLogLevel holds
	// the new value.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// Structural lists changed paths that need a restart to take effect,
	// sorted.
	Structural []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool { return len(d.Paths) == 0 }

// liveCapturePaths are applied to a running listener via UpdateCapture.
var liveCapturePaths = map[string]bool{
	"capture.silence_threshold": true,
	"capture.silence_duration":  true,
	"capture.max_duration":      true,
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	record := func(path string, changed bool) {
		if !changed {
			return
		}
		d.Paths = append(d.Paths, path)
		switch {
		case path == "log.level":
			d.LogLevelChanged = true
			d.NewLogLevel = new.Log.Level
		case liveCapturePaths[path]:
			d.CaptureChanged = true
		default:
			d.Structural = append(d.Structural, path)
		}
	}

	record("log.level", old.Log.Level != new.Log.Level)
	record("log.format", old.Log.Format != new.Log.Format)
	record("admin.addr", old.Admin.Addr != new.Admin.Addr)

	record("audio.source", old.Audio.Source != new.Audio.Source)
	record("audio.sample_rate", old.Audio.SampleRate != new.Audio.SampleRate)
	record("audio.frame_size", old.Audio.FrameSize != new.Audio.FrameSize)
	record("audio.queue_size", old.Audio.QueueSize != new.Audio.QueueSize)
	record("audio.device", old.Audio.Device != new.Audio.Device)
	record("audio.wav_path", old.Audio.WAVPath != new.Audio.WAVPath)
	record("audio.realtime", old.Audio.Realtime != new.Audio.Realtime)

	record("wake.backend", old.Wake.Backend != new.Wake.Backend)
	record("wake.phrase", old.Wake.Phrase != new.Wake.Phrase)
	record("wake.sensitivity", old.Wake.Sensitivity != new.Wake.Sensitivity)
	record("wake.access_key", old.Wake.AccessKey != new.Wake.AccessKey)
	record("wake.keyword", old.Wake.Keyword != new.Wake.Keyword)
	record("wake.keyword_path", old.Wake.KeywordPath != new.Wake.KeywordPath)
	record("wake.window", old.Wake.Window != new.Wake.Window)
	record("wake.check_interval", old.Wake.CheckInterval != new.Wake.CheckInterval)
	record("wake.check_window", old.Wake.CheckWindow != new.Wake.CheckWindow)
	record("wake.phonetic", old.Wake.Phonetic != new.Wake.Phonetic)

	record("capture.vad", old.Capture.VAD != new.Capture.VAD)
	record("capture.silence_threshold", old.Capture.SilenceThreshold != new.Capture.SilenceThreshold)
	record("capture.silence_duration", old.Capture.SilenceDuration != new.Capture.SilenceDuration)
	record("capture.max_duration", old.Capture.MaxDuration != new.Capture.MaxDuration)

	record("stt.backend", old.STT.Backend != new.STT.Backend)
	record("stt.model_path", old.STT.ModelPath != new.STT.ModelPath)
	record("stt.language", old.STT.Language != new.STT.Language)
	record("stt.timeout", old.STT.Timeout != new.STT.Timeout)
	record("stt.fallbacks", !slices.Equal(old.STT.Fallbacks, new.STT.Fallbacks))

	record("dump.dir", old.Dump.Dir != new.Dump.Dir)
	record("listener.shutdown_grace", old.Listener.ShutdownGrace != new.Listener.ShutdownGrace)

	slices.Sort(d.Paths)
	slices.Sort(d.Structural)
	return d
}
