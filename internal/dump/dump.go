// Package dump persists captured utterances as WAV files for offline
// inspection: replaying what the pipeline actually heard is the fastest way
// to debug a wake word or segmentation problem. One 16-bit mono file is
// written per capture cycle, named by the cycle ID, so a dump can be
// correlated with the logs and metrics of the cycle that produced it.
//
// Dumping is diagnostics. Callers are expected to log a failed Save and
// move on; a capture must never fail because its dump could not be written.
package dump

import (
	"errors"
	"fmt"
	"path/filepath"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
)

// Store writes captured utterances into a single directory.
type Store struct {
	fs  afero.Fs
	dir string
}

// Option is a functional option for [New].
type Option func(*Store)

// WithFilesystem sets the filesystem dumps are written to.
// Defaults to the OS filesystem.
func WithFilesystem(fs afero.Fs) Option {
	return func(s *Store) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// New creates a [Store] rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("dump: directory must not be empty")
	}
	s := &Store{
		fs:  afero.NewOsFs(),
		dir: dir,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dump: create directory %q: %w", dir, err)
	}
	return s, nil
}

// Save writes samples as <dir>/<cycleID>.wav and returns the path written.
func (s *Store) Save(cycleID string, samples []float32, sampleRate int) (string, error) {
	if cycleID == "" {
		return "", errors.New("dump: cycle ID must not be empty")
	}
	if len(samples) == 0 {
		return "", errors.New("dump: no samples to write")
	}
	if sampleRate <= 0 {
		return "", fmt.Errorf("dump: sample rate %d must be positive", sampleRate)
	}

	path := filepath.Join(s.dir, cycleID+".wav")
	f, err := s.fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("dump: create %q: %w", path, err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           quantize(samples),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return "", fmt.Errorf("dump: encode %q: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return "", fmt.Errorf("dump: finalize %q: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("dump: close %q: %w", path, err)
	}
	return path, nil
}

// Dir returns the directory dumps are written to.
func (s *Store) Dir() string { return s.dir }

// quantize converts normalized samples to 16-bit integer range, clamping
// values outside [-1, 1].
func quantize(samples []float32) []int {
	out := make([]int, len(samples))
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = int(v * 32767)
	}
	return out
}
