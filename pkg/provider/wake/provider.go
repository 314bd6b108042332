// Package wake defines the Detector interface for wake-word detection
// backends.
//
// A Detector consumes the pipeline's audio frames one at a time while the
// listener is armed and reports whether the wake phrase occurred. Two
// families of implementation exist: keyword spotting over a compiled
// acoustic model (porcupine) and whole-word matching over a rolling
// transcription window (transcript). Both are stateful across frames; the
// listener resets them when it re-arms.
package wake

import "errors"

// ErrBackendUnavailable indicates that a wake-word backend could not be
// constructed: a required credential is missing, the native engine failed
// to initialize, or configuration is invalid. Construction errors wrap this
// sentinel so the assembler can decide between falling back to another
// backend and failing startup.
var ErrBackendUnavailable = errors.New("wake: backend unavailable")

// DetectionResult reports the outcome of processing one frame.
type DetectionResult struct {
	// Detected is true when the wake phrase occurred in the audio seen so
	// far. All other fields are diagnostic metadata.
	Detected bool

	// Keyword is the phrase or built-in keyword that matched.
	Keyword string

	// Transcript is the text the match was found in. Only set by
	// transcription-based backends, and also populated on misses so callers
	// can log what was heard instead.
	Transcript string

	// Confidence is the similarity score for phonetic matches and 1.0 for
	// exact word matches. Zero when the backend does not report one.
	Confidence float64
}

// Detector is the abstraction over any wake-word backend.
//
// Implementations keep rolling state between ProcessFrame calls and are not
// required to be safe for concurrent ProcessFrame use; the listener calls
// from a single goroutine.
type Detector interface {
	// ProcessFrame consumes one frame of normalized mono float32 samples.
	// A returned error marks a failed check the caller recovers from
	// locally; it never implies the detector is unusable.
	ProcessFrame(samples []float32) (DetectionResult, error)

	// Reset clears rolling audio state. The listener calls it after a
	// detection, before re-arming.
	Reset()

	// Close releases the backend's model and native resources. Calling
	// Close more than once is safe and returns nil.
	Close() error
}
