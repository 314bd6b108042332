// Package audio defines the frame type, the bounded frame queue, and the
// capture-source contract shared by every stage of the hark pipeline.
package audio

import "time"

// Frame represents a single fixed-size frame of audio flowing through the
// pipeline. Frames are the atomic unit of transport — captured from an input
// device, handed across the queue boundary, and consumed by wake-word
// detection and speech segmentation. A frame is immutable once produced and
// owned exclusively by whichever stage currently holds it.
type Frame struct {
	// Samples holds mono amplitude values normalized to [-1, 1].
	Samples []float32

	// SampleRate in Hz (16000 for speech recognition).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the span of audio the frame covers.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// Clone returns a deep copy of the frame. Sources that reuse their capture
// buffer must clone before handing a frame to a sink.
func (f Frame) Clone() Frame {
	samples := make([]float32, len(f.Samples))
	copy(samples, f.Samples)
	return Frame{Samples: samples, SampleRate: f.SampleRate, Timestamp: f.Timestamp}
}
