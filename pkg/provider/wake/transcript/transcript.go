// Package transcript provides a transcription-based wake.Detector: it keeps
// a rolling window of recent audio, periodically transcribes the newest
// slice, and matches the wake phrase against the text word by word.
//
// Matching is case-insensitive and whole-word — a compiled word-boundary
// pattern, not a substring test, so "data is here" does not wake a listener
// armed for "ada". Multi-word phrases must appear as consecutive tokens.
//
// An optional phonetic assist (off by default) additionally accepts token
// sequences that share a Double Metaphone code with the phrase tokens and
// score at least 0.8 Jaro-Winkler similarity, for transcribers that
// persistently mishear the phrase.
//
// Checks run once per checkInterval of newly buffered audio rather than per
// frame, bounding transcription cost. Windows the activity gate reports as
// silent skip the transcription call entirely.
package transcript

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/hark/pkg/provider/stt"
	"github.com/MrWong99/hark/pkg/provider/wake"
	"github.com/MrWong99/hark/pkg/vad"
)

const (
	defaultSampleRate    = 16000
	defaultWindow        = 3 * time.Second
	defaultCheckInterval = time.Second
	defaultCheckWindow   = time.Second

	// phoneticThreshold is the minimum Jaro-Winkler score for a
	// phonetically-matched token to be accepted.
	phoneticThreshold = 0.8

	// checkTimeout bounds a single wake-check transcription.
	checkTimeout = 10 * time.Second
)

// Compile-time assertion that Detector satisfies wake.Detector.
var _ wake.Detector = (*Detector)(nil)

// Option is a functional option for configuring a Detector.
type Option func(*Detector)

// WithSampleRate sets the sample rate in Hz of the audio delivered to
// ProcessFrame. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(d *Detector) { d.sampleRate = rate }
}

// WithWindow sets how much trailing audio the rolling buffer retains.
// Defaults to 3s.
func WithWindow(window time.Duration) Option {
	return func(d *Detector) { d.window = window }
}

// WithCheckInterval sets how much newly buffered audio accumulates between
// wake checks. Defaults to 1s.
func WithCheckInterval(interval time.Duration) Option {
	return func(d *Detector) { d.checkInterval = interval }
}

// WithCheckWindow sets how much of the most recent audio each check
// transcribes. Must not exceed the rolling window. Defaults to 1s.
func WithCheckWindow(window time.Duration) Option {
	return func(d *Detector) { d.checkWindow = window }
}

// WithPhoneticAssist toggles phonetic matching as a fallback when the exact
// word-boundary match fails. Off by default.
func WithPhoneticAssist(enabled bool) Option {
	return func(d *Detector) { d.phonetic = enabled }
}

// WithGate sets the voice-activity detector that decides whether a check
// window contains any audio worth transcribing. Defaults to an energy
// detector with the standard threshold; nil disables gating so every check
// transcribes.
func WithGate(gate vad.Detector) Option {
	return func(d *Detector) {
		d.gate = gate
		d.gateSet = true
	}
}

// Detector implements wake.Detector by transcribing a rolling audio window
// and matching the wake phrase against the text.
type Detector struct {
	tr      stt.Transcriber
	phrase  string
	tokens  []string
	codes   []map[string]struct{}
	pattern *regexp.Regexp

	phonetic bool
	gate     vad.Detector
	gateSet  bool

	sampleRate    int
	window        time.Duration
	checkInterval time.Duration
	checkWindow   time.Duration

	windowSamples   int
	intervalSamples int
	checkSamples    int

	mu         sync.Mutex
	buf        []float32
	sinceCheck int
	closed     bool
}

// New creates a Detector that matches phrase against transcriptions
// produced by tr. The Detector does not own tr; the caller closes it
// separately. Construction errors wrap wake.ErrBackendUnavailable.
func New(tr stt.Transcriber, phrase string, opts ...Option) (*Detector, error) {
	if tr == nil {
		return nil, fmt.Errorf("transcript: transcriber must not be nil: %w", wake.ErrBackendUnavailable)
	}
	tokens := strings.Fields(strings.ToLower(strings.TrimSpace(phrase)))
	if len(tokens) == 0 {
		return nil, fmt.Errorf("transcript: wake phrase must not be empty: %w", wake.ErrBackendUnavailable)
	}

	d := &Detector{
		tr:            tr,
		phrase:        strings.Join(tokens, " "),
		tokens:        tokens,
		sampleRate:    defaultSampleRate,
		window:        defaultWindow,
		checkInterval: defaultCheckInterval,
		checkWindow:   defaultCheckWindow,
	}
	for _, o := range opts {
		o(d)
	}
	if !d.gateSet {
		d.gate = vad.NewEnergy(0)
	}

	if d.sampleRate <= 0 {
		return nil, fmt.Errorf("transcript: sample rate must be positive: %w", wake.ErrBackendUnavailable)
	}
	if d.window <= 0 || d.checkInterval <= 0 || d.checkWindow <= 0 {
		return nil, fmt.Errorf("transcript: window, check interval and check window must be positive: %w",
			wake.ErrBackendUnavailable)
	}
	if d.checkWindow > d.window {
		return nil, fmt.Errorf("transcript: check window %v exceeds rolling window %v: %w",
			d.checkWindow, d.window, wake.ErrBackendUnavailable)
	}

	d.windowSamples = samplesFor(d.window, d.sampleRate)
	d.intervalSamples = samplesFor(d.checkInterval, d.sampleRate)
	d.checkSamples = samplesFor(d.checkWindow, d.sampleRate)

	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = regexp.QuoteMeta(t)
	}
	pattern, err := regexp.Compile(`(?i)\b` + strings.Join(quoted, `\s+`) + `\b`)
	if err != nil {
		return nil, fmt.Errorf("transcript: compile phrase pattern: %v: %w", err, wake.ErrBackendUnavailable)
	}
	d.pattern = pattern

	if d.phonetic {
		d.codes = make([]map[string]struct{}, len(tokens))
		for i, t := range tokens {
			d.codes[i] = codesFor(t)
		}
	}
	return d, nil
}

// ProcessFrame appends the frame to the rolling buffer and, once enough new
// audio has accumulated, transcribes the most recent check window and
// matches the wake phrase against the text.
func (d *Detector) ProcessFrame(samples []float32) (wake.DetectionResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return wake.DetectionResult{}, nil
	}

	d.buf = append(d.buf, samples...)
	if excess := len(d.buf) - d.windowSamples; excess > 0 {
		d.buf = append(d.buf[:0], d.buf[excess:]...)
	}
	d.sinceCheck += len(samples)

	if d.sinceCheck < d.intervalSamples || len(d.buf) < d.checkSamples {
		return wake.DetectionResult{}, nil
	}
	d.sinceCheck = 0

	tail := d.buf[len(d.buf)-d.checkSamples:]
	if d.gate != nil && !d.gate.Active(tail) {
		return wake.DetectionResult{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	res, err := d.tr.Transcribe(ctx, tail)
	if err != nil {
		return wake.DetectionResult{}, fmt.Errorf("transcript: wake check: %w", err)
	}
	return d.match(res.Text), nil
}

// match tests the wake phrase against the transcribed text: first the exact
// word-boundary pattern, then the phonetic assist when enabled.
func (d *Detector) match(text string) wake.DetectionResult {
	res := wake.DetectionResult{Transcript: text}
	if text == "" {
		return res
	}
	if d.pattern.MatchString(text) {
		res.Detected = true
		res.Keyword = d.phrase
		res.Confidence = 1.0
		return res
	}
	if d.phonetic {
		if score, ok := d.phoneticMatch(text); ok {
			res.Detected = true
			res.Keyword = d.phrase
			res.Confidence = score
		}
	}
	return res
}

// phoneticMatch slides a phrase-length token window over the transcript.
// Every aligned token pair must share a Double Metaphone code; the window
// score is the weakest pairwise Jaro-Winkler similarity and must reach the
// threshold.
func (d *Detector) phoneticMatch(text string) (float64, bool) {
	words := strings.Fields(strings.ToLower(text))
	for i, w := range words {
		words[i] = strings.Trim(w, `.,!?;:"'`)
	}

	n := len(d.tokens)
	if n == 0 || len(words) < n {
		return 0, false
	}

	var best float64
	matched := false
	for i := 0; i+n <= len(words); i++ {
		score := 1.0
		ok := true
		for j, phraseTok := range d.tokens {
			word := words[i+j]
			if word == "" || !codesOverlap(d.codes[j], codesFor(word)) {
				ok = false
				break
			}
			if s := matchr.JaroWinkler(phraseTok, word, false); s < score {
				score = s
			}
		}
		if ok && score >= phoneticThreshold && score > best {
			best = score
			matched = true
		}
	}
	return best, matched
}

// Reset clears the rolling buffer and the activity gate.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = d.buf[:0]
	d.sinceCheck = 0
	if d.gate != nil {
		d.gate.Reset()
	}
}

// Close marks the detector closed; subsequent ProcessFrame calls report no
// detection. The Transcriber is owned by the caller and stays open.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.buf = nil
	return nil
}

// codesFor returns the Double Metaphone codes of a token. Empty codes are
// excluded.
func codesFor(token string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(token)
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// samplesFor converts a duration to a sample count at the given rate.
func samplesFor(d time.Duration, rate int) int {
	return int(d * time.Duration(rate) / time.Second)
}
