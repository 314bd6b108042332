package resilience

import (
	"context"
	"errors"

	"github.com/MrWong99/hark/pkg/provider/stt"
)

// TranscriberChain composes multiple speech-to-text backends behind the
// [stt.Transcriber] interface. Transcription requests go to the primary
// backend first; on failure (or while its circuit breaker is open) the
// next fallback is tried. A successful call that yields an empty
// transcript is still a success and does not trigger failover.
//
// The chain owns the backends passed to it: [TranscriberChain.Close]
// closes every registered backend.
type TranscriberChain struct {
	group *FallbackGroup[stt.Transcriber]
}

var _ stt.Transcriber = (*TranscriberChain)(nil)

// NewTranscriberChain creates a chain with primary as the first backend.
func NewTranscriberChain(primary stt.Transcriber, primaryName string, cfg FallbackConfig) *TranscriberChain {
	return &TranscriberChain{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback appends a fallback transcriber, tried after all previously
// registered backends.
func (tc *TranscriberChain) AddFallback(name string, t stt.Transcriber) {
	tc.group.AddFallback(name, t)
}

// Transcribe converts speech to text using the first healthy backend.
func (tc *TranscriberChain) Transcribe(ctx context.Context, samples []float32) (stt.Transcript, error) {
	return ExecuteWithResult(tc.group, func(t stt.Transcriber) (stt.Transcript, error) {
		return t.Transcribe(ctx, samples)
	})
}

// Close releases every backend in the chain. All backends are closed even
// if some return errors; the errors are joined.
func (tc *TranscriberChain) Close() error {
	var errs []error
	for i := range tc.group.entries {
		if err := tc.group.entries[i].value.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
