package resilience_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/hark/internal/resilience"
	"github.com/MrWong99/hark/pkg/provider/stt"
	sttmock "github.com/MrWong99/hark/pkg/provider/stt/mock"
)

func TestTranscriberChain_UsesPrimary(t *testing.T) {
	primary := &sttmock.Transcriber{
		Results: []stt.Transcript{{Text: "turn off the lights"}},
	}
	fallback := &sttmock.Transcriber{}

	chain := resilience.NewTranscriberChain(primary, "whisper", resilience.FallbackConfig{})
	chain.AddFallback("vosk", fallback)

	got, err := chain.Transcribe(context.Background(), []float32{0.1, 0.2})
	if err != nil {
		t.Fatalf("Transcribe() error = %v, want nil", err)
	}
	if got.Text != "turn off the lights" {
		t.Errorf("Transcribe() text = %q, want %q", got.Text, "turn off the lights")
	}
	if fallback.TranscribeCallCount() != 0 {
		t.Errorf("fallback calls = %d, want 0", fallback.TranscribeCallCount())
	}
}

func TestTranscriberChain_FailsOverOnError(t *testing.T) {
	primary := &sttmock.Transcriber{TranscribeErr: errBackend}
	fallback := &sttmock.Transcriber{
		Results: []stt.Transcript{{Text: "from the fallback"}},
	}

	chain := resilience.NewTranscriberChain(primary, "whisper", resilience.FallbackConfig{})
	chain.AddFallback("vosk", fallback)

	got, err := chain.Transcribe(context.Background(), []float32{0.1})
	if err != nil {
		t.Fatalf("Transcribe() error = %v, want nil", err)
	}
	if got.Text != "from the fallback" {
		t.Errorf("Transcribe() text = %q, want %q", got.Text, "from the fallback")
	}
	if primary.TranscribeCallCount() != 1 {
		t.Errorf("primary calls = %d, want 1", primary.TranscribeCallCount())
	}
}

func TestTranscriberChain_EmptyTranscriptDoesNotFailOver(t *testing.T) {
	// An empty transcript with a nil error is a legitimate result
	// (silence), not a failure.
	primary := &sttmock.Transcriber{}
	fallback := &sttmock.Transcriber{
		Results: []stt.Transcript{{Text: "should never be seen"}},
	}

	chain := resilience.NewTranscriberChain(primary, "whisper", resilience.FallbackConfig{})
	chain.AddFallback("vosk", fallback)

	got, err := chain.Transcribe(context.Background(), []float32{0.1})
	if err != nil {
		t.Fatalf("Transcribe() error = %v, want nil", err)
	}
	if got.Text != "" {
		t.Errorf("Transcribe() text = %q, want empty", got.Text)
	}
	if fallback.TranscribeCallCount() != 0 {
		t.Errorf("fallback calls = %d, want 0", fallback.TranscribeCallCount())
	}
}

func TestTranscriberChain_AllBackendsFail(t *testing.T) {
	primary := &sttmock.Transcriber{TranscribeErr: errBackend}
	fallback := &sttmock.Transcriber{TranscribeErr: errBackend}

	chain := resilience.NewTranscriberChain(primary, "whisper", resilience.FallbackConfig{})
	chain.AddFallback("vosk", fallback)

	_, err := chain.Transcribe(context.Background(), []float32{0.1})
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Errorf("Transcribe() error = %v, want %v", err, resilience.ErrAllFailed)
	}
}

func TestTranscriberChain_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &sttmock.Transcriber{TranscribeErr: errBackend}
	fallback := &sttmock.Transcriber{
		Results: []stt.Transcript{{Text: "first"}, {Text: "second"}},
	}

	chain := resilience.NewTranscriberChain(primary, "whisper", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 1},
	})
	chain.AddFallback("vosk", fallback)

	if _, err := chain.Transcribe(context.Background(), []float32{0.1}); err != nil {
		t.Fatalf("Transcribe() error = %v, want nil", err)
	}
	if _, err := chain.Transcribe(context.Background(), []float32{0.2}); err != nil {
		t.Fatalf("Transcribe() error = %v, want nil", err)
	}

	if primary.TranscribeCallCount() != 1 {
		t.Errorf("primary calls = %d, want 1 (breaker should skip)", primary.TranscribeCallCount())
	}
	if fallback.TranscribeCallCount() != 2 {
		t.Errorf("fallback calls = %d, want 2", fallback.TranscribeCallCount())
	}
}

func TestTranscriberChain_CloseClosesAllBackends(t *testing.T) {
	primary := &sttmock.Transcriber{}
	fallback := &sttmock.Transcriber{}

	chain := resilience.NewTranscriberChain(primary, "whisper", resilience.FallbackConfig{})
	chain.AddFallback("vosk", fallback)

	if err := chain.Close(); err != nil {
		t.Fatalf("Close() error = %v, want nil", err)
	}
	if primary.CloseCallCount != 1 {
		t.Errorf("primary CloseCallCount = %d, want 1", primary.CloseCallCount)
	}
	if fallback.CloseCallCount != 1 {
		t.Errorf("fallback CloseCallCount = %d, want 1", fallback.CloseCallCount)
	}
}

func TestTranscriberChain_CloseJoinsErrors(t *testing.T) {
	closeErr := errors.New("model still mapped")
	primary := &sttmock.Transcriber{CloseErr: closeErr}
	fallback := &sttmock.Transcriber{}

	chain := resilience.NewTranscriberChain(primary, "whisper", resilience.FallbackConfig{})
	chain.AddFallback("vosk", fallback)

	err := chain.Close()
	if !errors.Is(err, closeErr) {
		t.Errorf("Close() error = %v, want %v", err, closeErr)
	}
	// The failing primary must not prevent the fallback from closing.
	if fallback.CloseCallCount != 1 {
		t.Errorf("fallback CloseCallCount = %d, want 1", fallback.CloseCallCount)
	}
}
