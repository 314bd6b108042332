// Package mock provides a test double for the wake.Detector interface.
//
// Script detections with DetectAfter (fire on the nth call) or DetectOn
// (decide per frame), and inspect ProcessFrameCalls to verify the audio the
// caller handed over.
package mock

import (
	"sync"

	"github.com/MrWong99/hark/pkg/provider/wake"
)

// ProcessFrameCall records a single invocation of Detector.ProcessFrame.
type ProcessFrameCall struct {
	// Samples is a copy of the audio passed to ProcessFrame.
	Samples []float32
}

// Detector is a mock implementation of wake.Detector.
type Detector struct {
	mu sync.Mutex

	// DetectAfter fires a detection on the nth ProcessFrame call (1-based)
	// after construction or the last Reset. Zero disables it.
	DetectAfter int

	// DetectOn, if non-nil, decides per frame whether to report a
	// detection. It takes precedence over DetectAfter.
	DetectOn func(samples []float32) bool

	// Result is the DetectionResult returned on a detection, with Detected
	// forced to true.
	Result wake.DetectionResult

	// ProcessFrameErr, if non-nil, is returned by every ProcessFrame call.
	ProcessFrameErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// ProcessFrameCalls records every call to ProcessFrame in order.
	ProcessFrameCalls []ProcessFrameCall

	// ResetCallCount is the number of times Reset was called.
	ResetCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	framesSinceReset int
}

// ProcessFrame records the call and returns the scripted outcome.
func (d *Detector) ProcessFrame(samples []float32) (wake.DetectionResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	d.ProcessFrameCalls = append(d.ProcessFrameCalls, ProcessFrameCall{Samples: cp})
	d.framesSinceReset++

	if d.ProcessFrameErr != nil {
		return wake.DetectionResult{}, d.ProcessFrameErr
	}

	detected := false
	switch {
	case d.DetectOn != nil:
		detected = d.DetectOn(samples)
	case d.DetectAfter > 0:
		detected = d.framesSinceReset == d.DetectAfter
	}
	if !detected {
		return wake.DetectionResult{}, nil
	}
	res := d.Result
	res.Detected = true
	return res, nil
}

// Reset records the call and rewinds the DetectAfter counter.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ResetCallCount++
	d.framesSinceReset = 0
}

// Close records the call and returns CloseErr.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCallCount++
	return d.CloseErr
}

// ProcessFrameCallCount returns the number of ProcessFrame calls.
// Thread-safe.
func (d *Detector) ProcessFrameCallCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ProcessFrameCalls)
}

// ResetCalls clears all recorded calls. Thread-safe.
func (d *Detector) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ProcessFrameCalls = nil
	d.ResetCallCount = 0
	d.CloseCallCount = 0
	d.framesSinceReset = 0
}

// Ensure Detector implements wake.Detector at compile time.
var _ wake.Detector = (*Detector)(nil)
