// Package portaudio implements [audio.Source] on top of the PortAudio
// library, capturing mono float32 frames from a system input device. The
// PortAudio shared library must be available at runtime.
package portaudio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/MrWong99/hark/pkg/audio"
)

// readPollInterval is how long the capture loop sleeps when the device has
// no samples ready or reported a transient read error.
const readPollInterval = 10 * time.Millisecond

// stopGrace bounds the wait for the capture loop to exit during Stop.
const stopGrace = 500 * time.Millisecond

// Config holds the capture parameters.
type Config struct {
	// SampleRate in Hz. Defaults to 16000.
	SampleRate int

	// FrameSize is the number of samples delivered per frame.
	// Defaults to 4096.
	FrameSize int

	// Device optionally selects an input device by case-insensitive
	// substring match on the device name. Empty selects the system default.
	Device string
}

// Option is a functional option for [New].
type Option func(*Source)

// WithLogger sets the logger used for capture diagnostics.
// Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// Source captures audio from a PortAudio input device. Create with [New];
// the device is claimed by Start and released by Stop.
type Source struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []float32
	running bool
	done    chan struct{}
	stopped chan struct{}
}

// Compile-time interface assertion.
var _ audio.Source = (*Source)(nil)

// New creates a Source with the given config. No device access happens until
// Start.
func New(cfg Config, opts ...Option) *Source {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 4096
	}
	s := &Source{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start initialises PortAudio, opens the configured input device, and begins
// pushing frames into sink from a background goroutine. Errors opening the
// device wrap [audio.ErrDeviceUnavailable]. Starting a running source is a
// no-op.
func (s *Source) Start(ctx context.Context, sink audio.Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize (%v): %w", err, audio.ErrDeviceUnavailable)
	}

	s.buf = make([]float32, s.cfg.FrameSize)
	stream, err := s.openStream()
	if err != nil {
		portaudio.Terminate()
		return err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("portaudio: start stream (%v): %w", err, audio.ErrDeviceUnavailable)
	}

	s.stream = stream
	s.running = true
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})

	go s.captureLoop(ctx, sink, s.done, s.stopped)

	s.logger.Info("portaudio: capture started",
		"sample_rate", s.cfg.SampleRate,
		"frame_size", s.cfg.FrameSize,
		"device", s.cfg.Device,
	)
	return nil
}

// openStream opens either the default input stream or a named device.
// Callers hold s.mu.
func (s *Source) openStream() (*portaudio.Stream, error) {
	if s.cfg.Device == "" {
		stream, err := portaudio.OpenDefaultStream(1, 0, float64(s.cfg.SampleRate), s.cfg.FrameSize, s.buf)
		if err != nil {
			return nil, fmt.Errorf("portaudio: open default stream (%v): %w", err, audio.ErrDeviceUnavailable)
		}
		return stream, nil
	}

	dev, err := findInputDevice(s.cfg.Device)
	if err != nil {
		return nil, err
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(s.cfg.SampleRate)
	params.FramesPerBuffer = s.cfg.FrameSize

	stream, err := portaudio.OpenStream(params, s.buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open stream on %q (%v): %w", dev.Name, err, audio.ErrDeviceUnavailable)
	}
	return stream, nil
}

// captureLoop reads device buffers and forwards them as frames until the
// context is cancelled or Stop closes done. The sink decides whether a frame
// is kept; a refused frame is simply gone.
func (s *Source) captureLoop(ctx context.Context, sink audio.Sink, done, stopped chan struct{}) {
	defer close(stopped)

	var timestamp time.Duration
	frameDur := time.Duration(s.cfg.FrameSize) * time.Second / time.Duration(s.cfg.SampleRate)

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		default:
		}

		s.mu.Lock()
		stream := s.stream
		running := s.running
		s.mu.Unlock()
		if !running || stream == nil {
			return
		}

		available, err := stream.AvailableToRead()
		if err != nil || available < s.cfg.FrameSize {
			time.Sleep(readPollInterval)
			continue
		}

		if err := stream.Read(); err != nil {
			s.logger.Warn("portaudio: read failed", "error", err)
			time.Sleep(readPollInterval)
			continue
		}

		samples := make([]float32, len(s.buf))
		copy(samples, s.buf)
		sink.Enqueue(audio.Frame{
			Samples:    samples,
			SampleRate: s.cfg.SampleRate,
			Timestamp:  timestamp,
		})
		timestamp += frameDur
	}
}

// Stop ends capture, releases the device, and tears down PortAudio.
// Idempotent; the source can be started again afterwards.
func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stream := s.stream
	s.stream = nil
	done := s.done
	stopped := s.stopped
	s.mu.Unlock()

	if done != nil {
		close(done)
		select {
		case <-stopped:
		case <-time.After(stopGrace):
		}
	}

	var err error
	if stream != nil {
		if stopErr := stream.Stop(); stopErr != nil {
			err = fmt.Errorf("portaudio: stop stream: %w", stopErr)
		}
		stream.Close()
	}
	portaudio.Terminate()

	s.logger.Info("portaudio: capture stopped")
	return err
}

// Devices returns the names of all input-capable devices, for the device
// listing flag and for validating the Device config value.
func Devices() ([]string, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices: %w", err)
	}

	var names []string
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			names = append(names, d.Name)
		}
	}
	return names, nil
}

// findInputDevice locates an input-capable device whose name contains the
// given substring, case-insensitively.
func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: list devices (%v): %w", err, audio.ErrDeviceUnavailable)
	}

	needle := strings.ToLower(name)
	for _, d := range devices {
		if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), needle) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("portaudio: no input device matching %q: %w", name, audio.ErrDeviceUnavailable)
}
