package vad

// DefaultSilenceThreshold is the mean-absolute-amplitude level below which a
// frame counts as silence, on normalized [-1, 1] samples.
const DefaultSilenceThreshold = 0.01

// Energy is an amplitude-threshold detector: a frame is active when its mean
// absolute amplitude strictly exceeds the threshold. It is stateless.
type Energy struct {
	threshold float64
}

// Compile-time interface assertion.
var _ Detector = (*Energy)(nil)

// NewEnergy creates an Energy detector. A non-positive threshold falls back
// to [DefaultSilenceThreshold].
func NewEnergy(threshold float64) *Energy {
	if threshold <= 0 {
		threshold = DefaultSilenceThreshold
	}
	return &Energy{threshold: threshold}
}

// Active reports whether the frame's mean absolute amplitude exceeds the
// threshold.
func (e *Energy) Active(samples []float32) bool {
	return MeanAbs(samples) > e.threshold
}

// Reset is a no-op; the detector keeps no history.
func (e *Energy) Reset() {}

// MeanAbs returns the mean absolute amplitude of samples, the measure the
// segmentation rules are defined on. Returns 0 for an empty slice.
func MeanAbs(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		if s < 0 {
			sum -= float64(s)
		} else {
			sum += float64(s)
		}
	}
	return sum / float64(len(samples))
}
