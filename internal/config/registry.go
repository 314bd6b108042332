package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/hark/pkg/audio"
	"github.com/MrWong99/hark/pkg/provider/stt"
	"github.com/MrWong99/hark/pkg/provider/wake"
)

// ErrBackendNotRegistered is returned by Create* methods when no factory
// has been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: backend not registered")

// SourceFactory builds an audio source from the loaded config.
type SourceFactory func(cfg *Config) (audio.Source, error)

// DetectorFactory builds a wake word detector. The transcriber argument is
// the pipeline's speech-to-text backend, needed by the transcript detector;
// factories for self-contained engines ignore it.
type DetectorFactory func(cfg *Config, tr stt.Transcriber) (wake.Detector, error)

// TranscriberFactory builds a speech-to-text backend from one backend
// selection block (the primary, or one fallbacks entry).
type TranscriberFactory func(cfg *Config, entry STTBackendConfig) (stt.Transcriber, error)

// Registry maps backend names to their constructor functions. CGO-backed
// packages register themselves from the main package so that this package
// stays free of native dependencies. It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	sources      map[SourceKind]SourceFactory
	detectors    map[WakeBackend]DetectorFactory
	transcribers map[STTBackend]TranscriberFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		sources:      make(map[SourceKind]SourceFactory),
		detectors:    make(map[WakeBackend]DetectorFactory),
		transcribers: make(map[STTBackend]TranscriberFactory),
	}
}

// RegisterSource registers an audio source factory under kind.
// Subsequent calls with the same kind overwrite the previous registration.
func (r *Registry) RegisterSource(kind SourceKind, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[kind] = factory
}

// RegisterDetector registers a wake detector factory under backend.
func (r *Registry) RegisterDetector(backend WakeBackend, factory DetectorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detectors[backend] = factory
}

// RegisterTranscriber registers a speech-to-text factory under backend.
func (r *Registry) RegisterTranscriber(backend STTBackend, factory TranscriberFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcribers[backend] = factory
}

// CreateSource instantiates the audio source selected by cfg.Audio.Source.
// Returns [ErrBackendNotRegistered] if no factory has been registered for
// that kind.
func (r *Registry) CreateSource(cfg *Config) (audio.Source, error) {
	r.mu.RLock()
	factory, ok := r.sources[cfg.Audio.Source]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: source/%q", ErrBackendNotRegistered, cfg.Audio.Source)
	}
	return factory(cfg)
}

// CreateDetector instantiates the wake detector registered under backend.
// The backend is passed explicitly (rather than read from cfg) so the
// caller can retry with a different backend when the configured one cannot
// be initialised.
func (r *Registry) CreateDetector(backend WakeBackend, cfg *Config, tr stt.Transcriber) (wake.Detector, error) {
	r.mu.RLock()
	factory, ok := r.detectors[backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: wake/%q", ErrBackendNotRegistered, backend)
	}
	return factory(cfg, tr)
}

// CreateTranscriber instantiates the speech-to-text backend selected by
// entry.Backend.
func (r *Registry) CreateTranscriber(cfg *Config, entry STTBackendConfig) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.transcribers[entry.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrBackendNotRegistered, entry.Backend)
	}
	return factory(cfg, entry)
}
