package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Use this to release frames buffered in a [FrameQueue] whose consumer has
// been abandoned, so the sample memory does not linger until close.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
