// Package wavfile implements [audio.Source] by replaying a WAV file as a
// stream of pipeline frames. It exists for development and end-to-end tests:
// the daemon can run against a recorded session instead of a live
// microphone. Files are read through an [afero.Fs] so tests replay from an
// in-memory filesystem.
package wavfile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-audio/wav"
	"github.com/spf13/afero"

	"github.com/MrWong99/hark/pkg/audio"
)

// Config holds the replay parameters.
type Config struct {
	// Path of the WAV file to replay.
	Path string

	// SampleRate of the frames to emit, in Hz. The file is resampled when
	// it differs. Defaults to 16000.
	SampleRate int

	// FrameSize is the number of samples per emitted frame. The final
	// partial frame is zero-padded. Defaults to 4096.
	FrameSize int

	// Realtime paces delivery at one frame per frame-duration, mimicking a
	// live device. When false, frames are delivered as fast as the sink
	// accepts them.
	Realtime bool
}

// Option is a functional option for [New].
type Option func(*Source)

// WithLogger sets the logger used for replay diagnostics.
// Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFilesystem sets the filesystem the WAV file is read from.
// Defaults to the OS filesystem.
func WithFilesystem(fs afero.Fs) Option {
	return func(s *Source) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// Source replays a WAV file. Create with [New]; the file is opened and
// decoded by Start. When the file is exhausted the source stops emitting and
// waits for Stop.
type Source struct {
	cfg    Config
	fs     afero.Fs
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	stopped chan struct{}
}

// Compile-time interface assertion.
var _ audio.Source = (*Source)(nil)

// New creates a Source. The file is not touched until Start.
func New(cfg Config, opts ...Option) *Source {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 4096
	}
	s := &Source{
		cfg:    cfg,
		fs:     afero.NewOsFs(),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start decodes the configured file and begins pushing frames into sink from
// a background goroutine. Decode failures wrap [audio.ErrDeviceUnavailable]
// so callers treat a missing or corrupt file exactly like an absent device.
func (s *Source) Start(ctx context.Context, sink audio.Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	samples, err := s.decode()
	if err != nil {
		return err
	}

	s.running = true
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	go s.replayLoop(ctx, sink, samples, s.done, s.stopped)

	s.logger.Info("wavfile: replay started",
		"path", s.cfg.Path,
		"samples", len(samples),
		"realtime", s.cfg.Realtime,
	)
	return nil
}

// decode reads the whole file and converts it to the configured mono format.
func (s *Source) decode() ([]float32, error) {
	f, err := s.fs.Open(s.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("wavfile: open %q (%v): %w", s.cfg.Path, err, audio.ErrDeviceUnavailable)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("wavfile: %q is not a valid WAV file: %w", s.cfg.Path, audio.ErrDeviceUnavailable)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavfile: decode %q (%v): %w", s.cfg.Path, err, audio.ErrDeviceUnavailable)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}

	if buf.Format.NumChannels == 2 {
		samples = audio.DownmixStereo(samples)
	}
	if buf.Format.SampleRate != s.cfg.SampleRate {
		samples = audio.ResampleMono(samples, buf.Format.SampleRate, s.cfg.SampleRate)
	}
	return samples, nil
}

// replayLoop slices samples into frames and delivers them until exhaustion,
// context cancellation, or Stop.
func (s *Source) replayLoop(ctx context.Context, sink audio.Sink, samples []float32, done, stopped chan struct{}) {
	defer close(stopped)

	frameDur := time.Duration(s.cfg.FrameSize) * time.Second / time.Duration(s.cfg.SampleRate)
	var ticker *time.Ticker
	if s.cfg.Realtime {
		ticker = time.NewTicker(frameDur)
		defer ticker.Stop()
	}

	var timestamp time.Duration
	for off := 0; off < len(samples); off += s.cfg.FrameSize {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
			}
		} else {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			default:
			}
		}

		end := off + s.cfg.FrameSize
		frame := make([]float32, s.cfg.FrameSize)
		if end > len(samples) {
			copy(frame, samples[off:])
		} else {
			copy(frame, samples[off:end])
		}

		sink.Enqueue(audio.Frame{
			Samples:    frame,
			SampleRate: s.cfg.SampleRate,
			Timestamp:  timestamp,
		})
		timestamp += frameDur
	}

	s.logger.Info("wavfile: replay finished", "path", s.cfg.Path, "duration", timestamp)
}

// Stop ends the replay. Idempotent; a subsequent Start re-decodes the file
// and replays from the beginning.
func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	done := s.done
	stopped := s.stopped
	s.mu.Unlock()

	close(done)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		s.logger.Warn("wavfile: replay loop did not exit in time")
	}
	return nil
}
