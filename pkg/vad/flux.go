package vad

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	// defaultFluxRatio is how far above the running noise floor the
	// positive spectral flux must rise for a frame to count as active.
	defaultFluxRatio = 2.5

	// floorDecay is the exponential smoothing factor for the noise floor.
	floorDecay = 0.95

	// fluxEpsilon keeps the floor strictly positive so a dead-silent start
	// does not make the first breath register as activity.
	fluxEpsilon = 1e-6
)

// Flux is a spectral-flux onset detector: each frame's magnitude spectrum is
// compared to the previous frame's, and the positive difference (energy
// appearing in a bin) is summed. Activity is flux rising well above a
// running noise floor, which makes the detector indifferent to steady
// background noise that defeats a plain amplitude threshold.
type Flux struct {
	ratio float64

	prev  []float64
	floor float64
	seen  bool
}

// Compile-time interface assertion.
var _ Detector = (*Flux)(nil)

// NewFlux creates a Flux detector. A non-positive ratio falls back to the
// default.
func NewFlux(ratio float64) *Flux {
	if ratio <= 0 {
		ratio = defaultFluxRatio
	}
	return &Flux{ratio: ratio}
}

// Active computes the positive spectral flux of the frame against the
// previous one and compares it to the running noise floor. The first frame
// only seeds state and reports inactive.
func (f *Flux) Active(samples []float32) bool {
	spectrum := magnitudeSpectrum(samples)

	if !f.seen {
		f.prev = spectrum
		f.floor = fluxEpsilon
		f.seen = true
		return false
	}

	// Frame sizes normally never change mid-stream; bound the comparison
	// anyway so a reconfigured source cannot panic the pipeline.
	n := min(len(spectrum), len(f.prev))
	var flux float64
	for i := 0; i < n; i++ {
		if d := spectrum[i] - f.prev[i]; d > 0 {
			flux += d
		}
	}
	if n > 0 {
		flux /= float64(n)
	}
	f.prev = spectrum

	active := flux > f.ratio*f.floor

	// Track the floor on quiet frames only, so sustained speech does not
	// drag it upward and mute itself.
	if !active {
		f.floor = floorDecay*f.floor + (1-floorDecay)*flux
		if f.floor < fluxEpsilon {
			f.floor = fluxEpsilon
		}
	}
	return active
}

// Reset clears the previous spectrum and the noise floor.
func (f *Flux) Reset() {
	f.prev = nil
	f.floor = 0
	f.seen = false
}

// magnitudeSpectrum returns the magnitudes of the first half of the
// Hann-windowed FFT of samples.
func magnitudeSpectrum(samples []float32) []float64 {
	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = float64(s)
	}
	window.Apply(in, window.Hann)

	out := fft.FFTReal(in)
	half := len(out) / 2
	if half == 0 {
		half = len(out)
	}
	mags := make([]float64, half)
	for i := range mags {
		mags[i] = cmplx.Abs(out[i])
	}
	return mags
}
