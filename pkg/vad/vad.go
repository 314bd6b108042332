// Package vad holds the per-frame voice-activity decision used by speech
// segmentation and as a cheap gate in front of wake-word transcription
// checks.
//
// Two strategies are provided:
//
//   - [Energy]: mean absolute amplitude against a fixed threshold. Cheap,
//     predictable, and the default for quiet rooms.
//   - [Flux]: spectral-flux onset detection against a running noise floor.
//     More robust under steady background noise (fans, traffic) at the cost
//     of an FFT per frame.
package vad

// Detector reports whether a frame of samples contains audible activity.
// Implementations are stateful where the strategy requires history and are
// not safe for concurrent use; each pipeline owns its own detector.
type Detector interface {
	// Active reports whether the frame contains sound.
	Active(samples []float32) bool

	// Reset clears accumulated history. Called when a capture cycle ends.
	Reset()
}
