// Package porcupine provides a keyword-spotting wake.Detector backed by the
// Picovoice Porcupine engine.
//
// Porcupine evaluates audio in fixed-length subframes (porcupine.FrameLength
// samples at 16 kHz, typically 512). Incoming pipeline frames of any length
// are converted to int16 and sliced into consecutive model-sized subframes;
// a remainder is carried over to the next call, so no audio is skipped at
// frame boundaries.
//
// The engine needs a Picovoice access key, taken from Config.AccessKey or
// the PICOVOICE_ACCESS_KEY environment variable. The keyword is one of the
// free built-ins ("hey siri", "computer", "jarvis", ...) or a custom .ppn
// model file.
package porcupine

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	porcupinelib "github.com/Picovoice/porcupine/binding/go/v2"

	"github.com/MrWong99/hark/pkg/provider/wake"
)

const (
	// DefaultKeyword is the built-in keyword used when none is configured.
	DefaultKeyword = "hey siri"

	defaultSensitivity = 0.5

	accessKeyEnv = "PICOVOICE_ACCESS_KEY"
)

// Compile-time assertion that Detector satisfies wake.Detector.
var _ wake.Detector = (*Detector)(nil)

// Config configures a Detector.
type Config struct {
	// AccessKey is the Picovoice access credential. When empty the
	// PICOVOICE_ACCESS_KEY environment variable is consulted.
	AccessKey string

	// Keyword is the name of a built-in keyword, case-insensitive.
	// Defaults to "hey siri". Ignored when KeywordPath is set.
	Keyword string

	// KeywordPath points to a custom keyword model (.ppn) and overrides
	// Keyword.
	KeywordPath string

	// Sensitivity trades missed detections against false alarms, 0–1.
	// Zero means the default of 0.5.
	Sensitivity float32
}

// Detector implements wake.Detector using the Porcupine Go binding (CGO).
type Detector struct {
	keyword string

	mu     sync.Mutex
	engine porcupinelib.Porcupine
	carry  []int16
	closed bool
}

// New creates a Detector and initializes the Porcupine engine. Construction
// errors (missing access key, invalid keyword, native init failure) wrap
// wake.ErrBackendUnavailable so the assembler can fall back to the
// transcription-based detector.
func New(cfg Config) (*Detector, error) {
	key := cfg.AccessKey
	if key == "" {
		key = os.Getenv(accessKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("porcupine: access key required (set wake.access_key or %s): %w",
			accessKeyEnv, wake.ErrBackendUnavailable)
	}

	sensitivity := cfg.Sensitivity
	if sensitivity == 0 {
		sensitivity = defaultSensitivity
	}
	if sensitivity < 0 || sensitivity > 1 {
		return nil, fmt.Errorf("porcupine: sensitivity %v out of range [0, 1]: %w",
			sensitivity, wake.ErrBackendUnavailable)
	}

	d := &Detector{
		engine: porcupinelib.Porcupine{
			AccessKey:     key,
			Sensitivities: []float32{sensitivity},
		},
	}
	if cfg.KeywordPath != "" {
		d.engine.KeywordPaths = []string{cfg.KeywordPath}
		d.keyword = strings.TrimSuffix(filepath.Base(cfg.KeywordPath), ".ppn")
	} else {
		keyword := cfg.Keyword
		if keyword == "" {
			keyword = DefaultKeyword
		}
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		d.engine.BuiltInKeywords = []porcupinelib.BuiltInKeyword{porcupinelib.BuiltInKeyword(keyword)}
		d.keyword = keyword
	}

	if err := d.engine.Init(); err != nil {
		return nil, fmt.Errorf("porcupine: initialize engine (%v): %w", err, wake.ErrBackendUnavailable)
	}
	return d, nil
}

// ProcessFrame converts the frame to int16, slices it into engine-sized
// subframes (carrying any remainder to the next call), and reports a
// detection as soon as one subframe matches the keyword.
func (d *Detector) ProcessFrame(samples []float32) (wake.DetectionResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return wake.DetectionResult{}, nil
	}

	d.carry = appendInt16(d.carry, samples)

	frameLen := porcupinelib.FrameLength
	off := 0
	for off+frameLen <= len(d.carry) {
		idx, err := d.engine.Process(d.carry[off : off+frameLen])
		if err != nil {
			d.carry = append(d.carry[:0], d.carry[off+frameLen:]...)
			return wake.DetectionResult{}, fmt.Errorf("porcupine: process subframe: %w", err)
		}
		off += frameLen
		if idx >= 0 {
			d.carry = d.carry[:0]
			return wake.DetectionResult{Detected: true, Keyword: d.keyword}, nil
		}
	}
	d.carry = append(d.carry[:0], d.carry[off:]...)
	return wake.DetectionResult{}, nil
}

// Reset drops carried-over samples.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.carry = d.carry[:0]
}

// Close releases the engine. Calling Close more than once is safe.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.engine.Delete(); err != nil {
		return fmt.Errorf("porcupine: release engine: %w", err)
	}
	return nil
}

// appendInt16 converts normalized float32 samples to int16, clamping to
// [-1, 1], and appends them to dst.
func appendInt16(dst []int16, samples []float32) []int16 {
	for _, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		dst = append(dst, int16(s*math.MaxInt16))
	}
	return dst
}
