package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/hark/internal/config"
)

func diffBase() *config.Config {
	cfg := config.Default()
	cfg.STT.ModelPath = "/models/ggml-base.en.bin"
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(diffBase(), diffBase())
	if !d.Empty() {
		t.Errorf("Diff() of identical configs should be empty, got paths %v", d.Paths)
	}
}

func TestDiff_CaptureTunablesAreLive(t *testing.T) {
	t.Parallel()
	old := diffBase()
	updated := diffBase()
	updated.Capture.SilenceThreshold = 0.05
	updated.Capture.MaxDuration = config.Duration(8 * time.Second)

	d := config.Diff(old, updated)
	if !d.CaptureChanged {
		t.Error("CaptureChanged should be true")
	}
	if len(d.Structural) != 0 {
		t.Errorf("capture tunables should not be structural, got %v", d.Structural)
	}
	for _, want := range []string{"capture.silence_threshold", "capture.max_duration"} {
		if !slices.Contains(d.Paths, want) {
			t.Errorf("Paths should contain %s, got %v", want, d.Paths)
		}
	}
}

func TestDiff_LogLevelIsLive(t *testing.T) {
	t.Parallel()
	old := diffBase()
	updated := diffBase()
	updated.Log.Level = config.LogDebug

	d := config.Diff(old, updated)
	if !d.LogLevelChanged {
		t.Error("LogLevelChanged should be true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want %q", d.NewLogLevel, config.LogDebug)
	}
	if len(d.Structural) != 0 {
		t.Errorf("log.level should not be structural, got %v", d.Structural)
	}
}

func TestDiff_StructuralChanges(t *testing.T) {
	t.Parallel()
	old := diffBase()
	updated := diffBase()
	updated.STT.Backend = config.STTVosk
	updated.Audio.SampleRate = 48000
	updated.Wake.Phrase = "computer"

	d := config.Diff(old, updated)
	if d.CaptureChanged {
		t.Error("CaptureChanged should be false")
	}
	for _, want := range []string{"stt.backend", "audio.sample_rate", "wake.phrase"} {
		if !slices.Contains(d.Structural, want) {
			t.Errorf("Structural should contain %s, got %v", want, d.Structural)
		}
	}
}

func TestDiff_FallbacksChangeIsStructural(t *testing.T) {
	t.Parallel()
	old := diffBase()
	updated := diffBase()
	updated.STT.Fallbacks = []config.STTBackendConfig{
		{Backend: config.STTVosk, ModelPath: "/models/vosk", Language: "en"},
	}

	d := config.Diff(old, updated)
	if !slices.Contains(d.Structural, "stt.fallbacks") {
		t.Errorf("Structural should contain stt.fallbacks, got %v", d.Structural)
	}
}

func TestDiff_MixedChanges(t *testing.T) {
	t.Parallel()
	old := diffBase()
	updated := diffBase()
	updated.Capture.SilenceDuration = config.Duration(2 * time.Second)
	updated.Dump.Dir = "/var/lib/hark/dumps"

	d := config.Diff(old, updated)
	if !d.CaptureChanged {
		t.Error("CaptureChanged should be true")
	}
	if !slices.Contains(d.Structural, "dump.dir") {
		t.Errorf("Structural should contain dump.dir, got %v", d.Structural)
	}
	if len(d.Paths) != 2 {
		t.Errorf("Paths should have 2 entries, got %v", d.Paths)
	}
	if !slices.IsSorted(d.Paths) {
		t.Errorf("Paths should be sorted, got %v", d.Paths)
	}
}
