package audio

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultQueueCapacity is used when NewFrameQueue is given a non-positive
// capacity. 32 frames is roughly 8 s of audio at the default 16 kHz,
// 4096-samples-per-frame format — enough to absorb a slow transcription call
// without growing unboundedly.
const DefaultQueueCapacity = 32

// FrameQueue is the bounded, thread-safe hand-off between the capture
// context and the processing context. It is the single synchronization point
// of the pipeline: the producer side never blocks (a frame arriving at a
// full queue is dropped and counted), and the consumer side receives frames
// strictly in capture order.
type FrameQueue struct {
	ch      chan Frame
	dropped atomic.Uint64
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewFrameQueue creates a queue holding at most capacity frames. A
// non-positive capacity falls back to [DefaultQueueCapacity].
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &FrameQueue{
		ch:     make(chan Frame, capacity),
		logger: slog.Default(),
	}
}

// SetLogger replaces the logger used for overflow diagnostics. Call before
// the queue is in use; nil resets to [slog.Default].
func (q *FrameQueue) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	q.logger = l
}

// Enqueue offers a frame to the queue without blocking. When the queue is
// full the incoming frame is dropped, the overflow counter increments, and a
// warning is logged — overflow is a diagnostic, never an error. Enqueue on a
// closed queue returns false without logging.
func (q *FrameQueue) Enqueue(f Frame) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- f:
		return true
	default:
		n := q.dropped.Add(1)
		q.logger.Warn("audio: frame queue full, dropping frame",
			"capacity", cap(q.ch),
			"dropped_total", n,
		)
		return false
	}
}

// Frames returns the consumer side of the queue. The channel is closed by
// [FrameQueue.Close]; frames buffered at close time remain readable.
func (q *FrameQueue) Frames() <-chan Frame {
	return q.ch
}

// Dropped returns the total number of frames dropped due to overflow.
func (q *FrameQueue) Dropped() uint64 {
	return q.dropped.Load()
}

// Len returns the number of frames currently buffered.
func (q *FrameQueue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *FrameQueue) Cap() int {
	return cap(q.ch)
}

// Close marks the queue closed and closes the consumer channel. Idempotent.
// Enqueue calls racing with Close observe the closed flag and return false
// rather than panicking on a closed channel.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Compile-time check that the queue satisfies the capture-side contract.
var _ Sink = (*FrameQueue)(nil)
