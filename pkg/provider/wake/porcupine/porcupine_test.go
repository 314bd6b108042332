package porcupine_test

import (
	"errors"
	"os"
	"testing"

	"github.com/MrWong99/hark/pkg/provider/wake"
	"github.com/MrWong99/hark/pkg/provider/wake/porcupine"
)

func TestNew_MissingAccessKey_ReturnsError(t *testing.T) {
	t.Setenv("PICOVOICE_ACCESS_KEY", "")

	_, err := porcupine.New(porcupine.Config{})
	if err == nil {
		t.Fatal("expected error without an access key, got nil")
	}
	if !errors.Is(err, wake.ErrBackendUnavailable) {
		t.Errorf("expected error to wrap wake.ErrBackendUnavailable, got %v", err)
	}
}

func TestNew_SensitivityOutOfRange_ReturnsError(t *testing.T) {
	for _, s := range []float32{-0.1, 1.5} {
		_, err := porcupine.New(porcupine.Config{AccessKey: "placeholder", Sensitivity: s})
		if err == nil {
			t.Fatalf("sensitivity %v: expected error, got nil", s)
		}
		if !errors.Is(err, wake.ErrBackendUnavailable) {
			t.Errorf("sensitivity %v: expected error to wrap wake.ErrBackendUnavailable, got %v", s, err)
		}
	}
}

// TestProcessFrame_Silence needs a real Picovoice access key; set
// PICOVOICE_ACCESS_KEY to run it.
func TestProcessFrame_Silence(t *testing.T) {
	if os.Getenv("PICOVOICE_ACCESS_KEY") == "" {
		t.Skip("PICOVOICE_ACCESS_KEY not set; skipping porcupine integration test")
	}

	det, err := porcupine.New(porcupine.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer det.Close()

	// One 4096-sample frame of silence must not trigger.
	res, err := det.ProcessFrame(make([]float32, 4096))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Detected {
		t.Error("silence reported as a detection")
	}
}
