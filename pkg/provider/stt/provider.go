// Package stt defines the Transcriber interface for speech-to-text backends.
//
// A Transcriber turns one complete utterance — a buffer of normalized float32
// samples — into text. The pipeline hands it exactly the audio captured
// between a wake-word trigger and end-of-speech, so the contract is
// deliberately batch-shaped: one call, one utterance, one result. Backends
// that are internally streaming (Vosk) hide the chunking behind the same
// call.
//
// Implementations must be safe for concurrent use; backends whose native
// state is not reentrant serialize calls internally.
package stt

import (
	"context"
	"errors"
)

// ErrBackendUnavailable indicates that a transcription backend could not be
// constructed or reached: the model file is missing, the native library
// failed to load it, or required configuration is absent. Construction
// errors wrap this sentinel so callers can distinguish a misconfigured
// backend (fatal at startup) from a transient per-utterance failure.
var ErrBackendUnavailable = errors.New("stt: backend unavailable")

// Transcriber is the abstraction over any speech-to-text backend.
type Transcriber interface {
	// Transcribe converts one utterance of normalized mono float32 samples
	// into text. Whitespace-only output is normalized to an empty Text.
	//
	// A closed (or never-initialized) Transcriber returns an empty
	// Transcript and a nil error; callers treat empty text as "nothing was
	// said" and suppress downstream effects. A non-nil error marks a
	// per-utterance failure the caller recovers from locally.
	Transcribe(ctx context.Context, samples []float32) (Transcript, error)

	// Close releases the backend's model and native resources. Calling
	// Close more than once is safe and returns nil.
	Close() error
}
