// Package segment turns a post-trigger frame stream into one bounded
// utterance: frames accumulate into a buffer until silence has lasted long
// enough or the utterance hits its maximum length.
//
// Time is measured on the audio clock — accumulated frame duration — not
// the wall clock, so endpointing is deterministic regardless of processing
// latency. The trigger instant counts as the initial last-sound mark: a
// trigger followed by nothing but silence ends after exactly the configured
// silence duration.
package segment

import (
	"time"

	"github.com/MrWong99/hark/pkg/audio"
	"github.com/MrWong99/hark/pkg/vad"
)

const (
	// DefaultSilenceDuration is how long the stream must stay silent for
	// the utterance to end.
	DefaultSilenceDuration = time.Second

	// DefaultMaxDuration caps the utterance length regardless of ongoing
	// speech.
	DefaultMaxDuration = 5 * time.Second
)

// EndReason says why an utterance ended.
type EndReason string

const (
	// EndSilence: the silence window elapsed since the last active frame.
	EndSilence EndReason = "silence"

	// EndTimeout: the buffer reached the maximum utterance duration.
	EndTimeout EndReason = "timeout"
)

// Result is a completed utterance. Samples include any trailing silence
// frames; ownership passes to the caller.
type Result struct {
	Samples  []float32
	Duration time.Duration
	Reason   EndReason
}

// Segmenter accumulates frames into an utterance buffer and decides when
// the utterance is over. It is not safe for concurrent use; the processing
// loop owns it.
type Segmenter struct {
	det        vad.Detector
	silence    time.Duration
	maxDur     time.Duration
	buf        []float32
	total      time.Duration
	sinceSound time.Duration
}

// New arms a Segmenter. The detector's rolling state is cleared so the new
// capture cycle starts fresh. A nil detector falls back to the default
// energy detector; non-positive durations fall back to the defaults.
func New(det vad.Detector, silence, maxDur time.Duration) *Segmenter {
	if det == nil {
		det = vad.NewEnergy(0)
	}
	if silence <= 0 {
		silence = DefaultSilenceDuration
	}
	if maxDur <= 0 {
		maxDur = DefaultMaxDuration
	}
	det.Reset()
	return &Segmenter{det: det, silence: silence, maxDur: maxDur}
}

// Feed appends one frame to the utterance buffer and evaluates termination.
// When the utterance is over it returns the completed Result and true, and
// the Segmenter resets itself for the next cycle.
//
// The frame joins the buffer before the check, so trailing silence is part
// of the utterance handed to transcription.
func (s *Segmenter) Feed(f audio.Frame) (Result, bool) {
	s.buf = append(s.buf, f.Samples...)
	s.total += f.Duration()

	if s.det.Active(f.Samples) {
		s.sinceSound = 0
	} else {
		s.sinceSound += f.Duration()
	}

	switch {
	case s.sinceSound >= s.silence:
		return s.finish(EndSilence), true
	case s.total >= s.maxDur:
		return s.finish(EndTimeout), true
	}
	return Result{}, false
}

// Buffered returns the audio-clock duration accumulated so far.
func (s *Segmenter) Buffered() time.Duration { return s.total }

// Reset discards the buffer and clears all rolling state.
func (s *Segmenter) Reset() {
	s.buf = nil
	s.total = 0
	s.sinceSound = 0
	s.det.Reset()
}

// finish hands the buffer off and resets for the next cycle.
func (s *Segmenter) finish(reason EndReason) Result {
	res := Result{Samples: s.buf, Duration: s.total, Reason: reason}
	s.buf = nil
	s.total = 0
	s.sinceSound = 0
	s.det.Reset()
	return res
}
