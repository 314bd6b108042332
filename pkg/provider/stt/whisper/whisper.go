// This file is backed by the whisper.cpp CGO bindings. The whisper.cpp
// static library (libwhisper.a) and headers (whisper.h) must be available
// at link time via LIBRARY_PATH and C_INCLUDE_PATH environment variables.

// Package whisper provides a whole-utterance stt.Transcriber backed by a
// local whisper.cpp model.
//
// The ggml model file is loaded once at construction and shared across all
// calls. whisper.cpp is a batch engine: each Transcribe call runs one full
// inference over the utterance and returns the concatenated segment text.
// Inference contexts are not reentrant, so calls are serialized internally.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/hark/pkg/audio"
	"github.com/MrWong99/hark/pkg/provider/stt"
)

const (
	defaultLanguage = "en"

	// nativeSampleRate is the only input rate whisper.cpp accepts. Audio
	// arriving at a different pipeline rate is resampled before inference.
	nativeSampleRate = 16000
)

// Compile-time assertion that Transcriber satisfies stt.Transcriber.
var _ stt.Transcriber = (*Transcriber)(nil)

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithLanguage sets the language code for transcription (e.g. "en", "de").
// "auto" enables language auto-detection. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// WithSampleRate sets the sample rate in Hz of the audio delivered to
// Transcribe. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(t *Transcriber) { t.sampleRate = rate }
}

// Transcriber implements stt.Transcriber using the whisper.cpp Go bindings
// (CGO). The model is loaded once and shared across calls.
type Transcriber struct {
	language   string
	sampleRate int

	mu     sync.Mutex
	model  whisperlib.Model
	closed bool
}

// New creates a Transcriber that loads the whisper.cpp model from the given
// ggml file path. Construction errors wrap stt.ErrBackendUnavailable. The
// caller must call Close when the Transcriber is no longer needed.
func New(modelPath string, opts ...Option) (*Transcriber, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("whisper: model path must not be empty: %w", stt.ErrBackendUnavailable)
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q (%v): %w", modelPath, err, stt.ErrBackendUnavailable)
	}

	t := &Transcriber{
		model:      model,
		language:   defaultLanguage,
		sampleRate: nativeSampleRate,
	}
	for _, o := range opts {
		o(t)
	}
	if t.sampleRate <= 0 {
		t.sampleRate = nativeSampleRate
	}
	return t, nil
}

// Transcribe runs one whisper.cpp inference over the utterance and returns
// the concatenated segment text. A closed Transcriber returns an empty
// Transcript and no error.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32) (stt.Transcript, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.model == nil || len(samples) == 0 {
		return stt.Transcript{}, nil
	}
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: %w", err)
	}

	dur := time.Duration(len(samples)) * time.Second / time.Duration(t.sampleRate)
	if t.sampleRate != nativeSampleRate {
		samples = audio.ResampleMono(samples, t.sampleRate, nativeSampleRate)
	}

	text, err := t.infer(samples)
	if err != nil {
		return stt.Transcript{}, err
	}
	return stt.Transcript{Text: text, Duration: dur}, nil
}

// infer runs whisper.cpp inference using a fresh context and returns the
// concatenated text. Each context is NOT thread-safe, but the model can be
// shared; the caller holds t.mu.
func (t *Transcriber) infer(samples []float32) (string, error) {
	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(t.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", t.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// Close releases the whisper model. Calling Close more than once is safe.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.model == nil {
		return nil
	}
	err := t.model.Close()
	t.model = nil
	if err != nil {
		return fmt.Errorf("whisper: close model: %w", err)
	}
	return nil
}
