package audio

import (
	"context"
	"errors"
)

// ErrDeviceUnavailable indicates that an audio input device could not be
// opened or has disappeared mid-stream. Callers treat this as fatal:
// listening cannot start without a device.
var ErrDeviceUnavailable = errors.New("audio: device unavailable")

// Sink consumes captured frames. Implementations must not block: a sink
// either accepts the frame immediately or reports false. [FrameQueue]
// implements Sink with a drop-on-full policy.
type Sink interface {
	Enqueue(Frame) bool
}

// Source produces a continuous sequence of fixed-size frames from a
// microphone or file and pushes each one into a [Sink].
//
// Start opens the underlying device, begins capture in a background
// goroutine, and returns once capture is running. An error wrapping
// [ErrDeviceUnavailable] means the device could not be claimed. The capture
// path must never block on a slow consumer — a frame the sink refuses is
// gone, never queued elsewhere.
//
// Stop ends capture and releases the device. Stop is idempotent, and after
// it returns the source must be startable again.
type Source interface {
	Start(ctx context.Context, sink Sink) error
	Stop() error
}
