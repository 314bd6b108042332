package stt

import "time"

// Transcript is the result of transcribing one utterance.
type Transcript struct {
	// Text is the transcribed speech content. Empty when the utterance
	// contained no recognizable speech.
	Text string

	// Duration is the length of the audio that was transcribed.
	Duration time.Duration
}
