// Package mock provides in-memory test doubles for the [audio.Source] and
// [audio.Sink] interfaces.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	src := &mock.Source{}
//	q := audio.NewFrameQueue(8)
//	if err := src.Start(ctx, q); err != nil { ... }
//	src.Push(audio.Frame{Samples: samples, SampleRate: 16000})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/hark/pkg/audio"
)

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a mock implementation of [audio.Source]. The test drives frame
// delivery explicitly through [Source.Push], which forwards to the sink
// captured by the most recent Start call.
type Source struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by Start without capturing the sink.
	StartErr error

	// StopErr, if non-nil, is returned by every Stop call.
	StopErr error

	// StartCount records how many times Start was called.
	StartCount int

	// StopCount records how many times Stop was called.
	StopCount int

	sink    audio.Sink
	running bool
}

// Start records the call and captures sink for later Push calls.
func (s *Source) Start(_ context.Context, sink audio.Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartCount++
	if s.StartErr != nil {
		return s.StartErr
	}
	s.sink = sink
	s.running = true
	return nil
}

// Stop records the call and detaches the sink.
func (s *Source) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StopCount++
	s.running = false
	return s.StopErr
}

// Push forwards a frame to the sink captured by Start, mimicking a device
// callback. It reports false when the source is not running or the sink
// refused the frame.
func (s *Source) Push(f audio.Frame) bool {
	s.mu.Lock()
	sink := s.sink
	running := s.running
	s.mu.Unlock()
	if !running || sink == nil {
		return false
	}
	return sink.Enqueue(f)
}

// Running reports whether the source has been started and not yet stopped.
func (s *Source) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Ensure Source implements audio.Source at compile time.
var _ audio.Source = (*Source)(nil)

// ─── Sink ─────────────────────────────────────────────────────────────────────

// Sink is a recording mock implementation of [audio.Sink].
type Sink struct {
	mu sync.Mutex

	// Reject, when true, makes Enqueue refuse every frame.
	Reject bool

	// Frames records every accepted frame in arrival order.
	Frames []audio.Frame
}

// Enqueue records the frame unless Reject is set.
func (s *Sink) Enqueue(f audio.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Reject {
		return false
	}
	s.Frames = append(s.Frames, f)
	return true
}

// Count returns the number of accepted frames. Thread-safe.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Frames)
}

// Ensure Sink implements audio.Sink at compile time.
var _ audio.Sink = (*Sink)(nil)
