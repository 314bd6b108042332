// Package mock provides a test double for the stt.Transcriber interface.
//
// Pre-populate Results with the Transcript values successive Transcribe
// calls should return, or leave it empty to always return Transcript{}.
// Inspect TranscribeCalls to verify which audio the caller handed over.
//
// Example:
//
//	tr := &mock.Transcriber{
//	    Results: []stt.Transcript{{Text: "turn off the lights"}},
//	}
//	got, _ := tr.Transcribe(ctx, samples)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/hark/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	// Samples is a copy of the audio passed to Transcribe.
	Samples []float32
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Results are returned by successive Transcribe calls in order. Once
	// exhausted, further calls return the zero Transcript. The last entry
	// is not repeated.
	Results []stt.Transcript

	// TranscribeErr, if non-nil, is returned by every Transcribe call
	// (together with the zero Transcript).
	TranscribeErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	next int
}

// Transcribe records the call and returns the next scripted result, or
// TranscribeErr when set.
func (t *Transcriber) Transcribe(_ context.Context, samples []float32) (stt.Transcript, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	t.TranscribeCalls = append(t.TranscribeCalls, TranscribeCall{Samples: cp})
	if t.TranscribeErr != nil {
		return stt.Transcript{}, t.TranscribeErr
	}
	if t.next < len(t.Results) {
		res := t.Results[t.next]
		t.next++
		return res, nil
	}
	return stt.Transcript{}, nil
}

// Close records the call and returns CloseErr.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.CloseCallCount++
	return t.CloseErr
}

// TranscribeCallCount returns the number of Transcribe calls. Thread-safe.
func (t *Transcriber) TranscribeCallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.TranscribeCalls)
}

// Reset clears all recorded calls and rewinds the scripted Results.
// Thread-safe.
func (t *Transcriber) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TranscribeCalls = nil
	t.CloseCallCount = 0
	t.next = 0
}

// Ensure Transcriber implements stt.Transcriber at compile time.
var _ stt.Transcriber = (*Transcriber)(nil)
