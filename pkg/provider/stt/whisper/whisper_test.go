package whisper_test

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/MrWong99/hark/pkg/provider/stt"
	"github.com/MrWong99/hark/pkg/provider/stt/whisper"
)

// testModelPath returns the path to a whisper ggml model for integration
// tests. It reads from the WHISPER_MODEL_PATH environment variable. If unset
// the test is skipped.
func testModelPath(t *testing.T) string {
	t.Helper()
	p := os.Getenv("WHISPER_MODEL_PATH")
	if p == "" {
		t.Skip("WHISPER_MODEL_PATH not set; skipping whisper integration test")
	}
	return p
}

func TestNew_EmptyPath_ReturnsError(t *testing.T) {
	_, err := whisper.New("")
	if err == nil {
		t.Fatal("expected error for empty model path, got nil")
	}
	if !errors.Is(err, stt.ErrBackendUnavailable) {
		t.Errorf("expected error to wrap stt.ErrBackendUnavailable, got %v", err)
	}
}

func TestNew_InvalidPath_ReturnsError(t *testing.T) {
	_, err := whisper.New("/nonexistent/path/to/model.bin")
	if err == nil {
		t.Fatal("expected error for invalid model path, got nil")
	}
	if !errors.Is(err, stt.ErrBackendUnavailable) {
		t.Errorf("expected error to wrap stt.ErrBackendUnavailable, got %v", err)
	}
}

func TestTranscribe_Silence_ReturnsEmptyText(t *testing.T) {
	modelPath := testModelPath(t)
	tr, err := whisper.New(modelPath, whisper.WithLanguage("en"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tr.Close()

	// One second of silence at 16 kHz.
	got, err := tr.Transcribe(context.Background(), make([]float32, 16000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "" {
		t.Errorf("expected empty text for silence, got %q", got.Text)
	}
}

func TestTranscribe_AfterClose_ReturnsEmpty(t *testing.T) {
	modelPath := testModelPath(t)
	tr, err := whisper.New(modelPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	tone := make([]float32, 16000)
	for i := range tone {
		tone[i] = float32(0.3 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	got, err := tr.Transcribe(context.Background(), tone)
	if err != nil {
		t.Fatalf("expected nil error after close, got %v", err)
	}
	if got.Text != "" || got.Duration != 0 {
		t.Errorf("expected zero Transcript after close, got %+v", got)
	}
}
