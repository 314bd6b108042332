// This file is backed by the Vosk CGO bindings. The libvosk shared library
// and headers must be available at build time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

// Package vosk provides a streaming stt.Transcriber backed by a local Vosk
// model.
//
// Vosk is a streaming recognizer: the utterance is converted to 16-bit
// little-endian PCM and fed in fixed-size chunks, and the returned text is
// the concatenation of every committed intermediate result plus the final
// one. The recognizer keeps state across chunks, so calls are serialized and
// the recognizer is reset between utterances.
package vosk

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vosklib "github.com/alphacep/vosk-api/go"

	"github.com/MrWong99/hark/pkg/audio"
	"github.com/MrWong99/hark/pkg/provider/stt"
)

const (
	defaultSampleRate = 16000

	// chunkBytes is the amount of PCM handed to the recognizer per
	// AcceptWaveform call: 4000 bytes = 2000 samples = 125 ms at 16 kHz.
	chunkBytes = 4000
)

// Compile-time assertion that Transcriber satisfies stt.Transcriber.
var _ stt.Transcriber = (*Transcriber)(nil)

// Option is a functional option for configuring a Transcriber.
type Option func(*Transcriber)

// WithSampleRate sets the sample rate in Hz of the audio delivered to
// Transcribe. The recognizer is created at this rate. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(t *Transcriber) { t.sampleRate = rate }
}

// Transcriber implements stt.Transcriber using the Vosk Go bindings (CGO).
// The model is loaded once; a single recognizer is reused and reset between
// utterances.
type Transcriber struct {
	sampleRate int

	mu     sync.Mutex
	model  *vosklib.VoskModel
	rec    *vosklib.VoskRecognizer
	closed bool
}

// voskResult is the shape of the JSON Vosk returns from Result and
// FinalResult.
type voskResult struct {
	Text string `json:"text"`
}

// New creates a Transcriber that loads a Vosk model from the given directory.
// Construction errors wrap stt.ErrBackendUnavailable. The caller must call
// Close when the Transcriber is no longer needed.
func New(modelDir string, opts ...Option) (*Transcriber, error) {
	if modelDir == "" {
		return nil, fmt.Errorf("vosk: model directory must not be empty: %w", stt.ErrBackendUnavailable)
	}
	if _, err := os.Stat(modelDir); err != nil {
		return nil, fmt.Errorf("vosk: model directory %q (%v): %w", modelDir, err, stt.ErrBackendUnavailable)
	}

	t := &Transcriber{sampleRate: defaultSampleRate}
	for _, o := range opts {
		o(t)
	}
	if t.sampleRate <= 0 {
		t.sampleRate = defaultSampleRate
	}

	model, err := vosklib.NewModel(modelDir)
	if err != nil {
		return nil, fmt.Errorf("vosk: load model %q (%v): %w", modelDir, err, stt.ErrBackendUnavailable)
	}
	rec, err := vosklib.NewRecognizer(model, float64(t.sampleRate))
	if err != nil {
		model.Free()
		return nil, fmt.Errorf("vosk: create recognizer (%v): %w", err, stt.ErrBackendUnavailable)
	}

	t.model = model
	t.rec = rec
	return t, nil
}

// Transcribe feeds the utterance to the recognizer in fixed-size PCM chunks
// and returns the concatenated committed and final results. A closed
// Transcriber returns an empty Transcript and no error.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32) (stt.Transcript, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.rec == nil || len(samples) == 0 {
		return stt.Transcript{}, nil
	}
	// Whatever happens below, the next utterance starts from clean state.
	defer t.rec.Reset()

	dur := time.Duration(len(samples)) * time.Second / time.Duration(t.sampleRate)
	pcm := audio.Float32ToPCM16(samples)

	var parts []string
	for off := 0; off < len(pcm); off += chunkBytes {
		if err := ctx.Err(); err != nil {
			return stt.Transcript{}, fmt.Errorf("vosk: %w", err)
		}
		end := off + chunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if t.rec.AcceptWaveform(pcm[off:end]) > 0 {
			text, err := parseResult(t.rec.Result())
			if err != nil {
				return stt.Transcript{}, err
			}
			if text != "" {
				parts = append(parts, text)
			}
		}
	}

	text, err := parseResult(t.rec.FinalResult())
	if err != nil {
		return stt.Transcript{}, err
	}
	if text != "" {
		parts = append(parts, text)
	}

	return stt.Transcript{Text: strings.TrimSpace(strings.Join(parts, " ")), Duration: dur}, nil
}

// parseResult extracts the "text" field from a Vosk JSON result.
func parseResult(res string) (string, error) {
	var r voskResult
	if err := json.Unmarshal([]byte(res), &r); err != nil {
		return "", fmt.Errorf("vosk: parse result: %w", err)
	}
	return strings.TrimSpace(r.Text), nil
}

// Close frees the recognizer and the model. Calling Close more than once is
// safe and returns nil.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	if t.rec != nil {
		t.rec.Free()
		t.rec = nil
	}
	if t.model != nil {
		t.model.Free()
		t.model = nil
	}
	return nil
}
