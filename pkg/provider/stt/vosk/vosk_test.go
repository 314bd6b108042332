package vosk_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/MrWong99/hark/pkg/provider/stt"
	"github.com/MrWong99/hark/pkg/provider/stt/vosk"
)

// testModelDir returns the path to a Vosk model directory for integration
// tests. It reads from the VOSK_MODEL_PATH environment variable. If unset
// the test is skipped.
func testModelDir(t *testing.T) string {
	t.Helper()
	p := os.Getenv("VOSK_MODEL_PATH")
	if p == "" {
		t.Skip("VOSK_MODEL_PATH not set; skipping vosk integration test")
	}
	return p
}

func TestNew_EmptyDir_ReturnsError(t *testing.T) {
	_, err := vosk.New("")
	if err == nil {
		t.Fatal("expected error for empty model directory, got nil")
	}
	if !errors.Is(err, stt.ErrBackendUnavailable) {
		t.Errorf("expected error to wrap stt.ErrBackendUnavailable, got %v", err)
	}
}

func TestNew_MissingDir_ReturnsError(t *testing.T) {
	_, err := vosk.New("/nonexistent/vosk/model")
	if err == nil {
		t.Fatal("expected error for missing model directory, got nil")
	}
	if !errors.Is(err, stt.ErrBackendUnavailable) {
		t.Errorf("expected error to wrap stt.ErrBackendUnavailable, got %v", err)
	}
}

func TestTranscribe_Silence_ReturnsEmptyText(t *testing.T) {
	dir := testModelDir(t)
	tr, err := vosk.New(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tr.Close()

	got, err := tr.Transcribe(context.Background(), make([]float32, 16000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "" {
		t.Errorf("expected empty text for silence, got %q", got.Text)
	}
}

func TestTranscribe_AfterClose_ReturnsEmpty(t *testing.T) {
	dir := testModelDir(t)
	tr, err := vosk.New(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}

	got, err := tr.Transcribe(context.Background(), make([]float32, 4096))
	if err != nil {
		t.Fatalf("expected nil error after close, got %v", err)
	}
	if got.Text != "" || got.Duration != 0 {
		t.Errorf("expected zero Transcript after close, got %+v", got)
	}
}
