// Package app wires the hark subsystems into a running application.
//
// New builds the pipeline from configuration through the backend registry:
// transcriber (with the optional fallback chain), wake detector (with the
// keyword-spotting to transcript fallback), audio source, dump store,
// metrics, listener, and the admin HTTP server. Run starts the listener and
// serves until the context is cancelled, then shuts the pieces down in
// order: listener first, admin surface after it. Shutdown releases the
// backend models.
//
// For testing, inject doubles via functional options (WithSource,
// WithDetector, WithTranscriber, WithFilesystem, WithMeterProvider). When an
// option is not provided, New builds the real implementation from the
// config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/hark/internal/config"
	"github.com/MrWong99/hark/internal/dump"
	"github.com/MrWong99/hark/internal/health"
	"github.com/MrWong99/hark/internal/listener"
	"github.com/MrWong99/hark/internal/observe"
	"github.com/MrWong99/hark/internal/resilience"
	"github.com/MrWong99/hark/pkg/audio"
	"github.com/MrWong99/hark/pkg/provider/stt"
	"github.com/MrWong99/hark/pkg/provider/wake"
	"github.com/MrWong99/hark/pkg/vad"
)

// adminShutdownTimeout bounds the graceful drain of the admin HTTP server.
const adminShutdownTimeout = 5 * time.Second

// App owns all subsystem lifetimes and drives the hark voice pipeline.
type App struct {
	cfg *config.Config
	reg *config.Registry

	// Pipeline pieces — injected via options or built in New.
	source      audio.Source
	detector    wake.Detector
	transcriber stt.Transcriber
	fs          afero.Fs
	mp          metric.MeterProvider

	metrics *observe.Metrics
	dumps   *dump.Store
	lst     *listener.Listener
	admin   *http.Server

	// wakeBackend is the backend actually in use after the fallback
	// decision, which can differ from cfg.Wake.Backend.
	wakeBackend config.WakeBackend

	watchPath   string
	logLevel    *slog.LevelVar
	onWakeWord  func()
	onUtterance func(text string)

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles
// and to wire optional runtime hooks.
type Option func(*App)

// WithSource injects an audio source instead of building one from config.
func WithSource(s audio.Source) Option {
	return func(a *App) { a.source = s }
}

// WithDetector injects a wake detector instead of building one from config.
func WithDetector(d wake.Detector) Option {
	return func(a *App) { a.detector = d }
}

// WithTranscriber injects a transcriber instead of building one from config.
// The injected transcriber is not closed by Shutdown.
func WithTranscriber(t stt.Transcriber) Option {
	return func(a *App) { a.transcriber = t }
}

// WithFilesystem replaces the filesystem used by the dump store. Defaults to
// the OS filesystem.
func WithFilesystem(fs afero.Fs) Option {
	return func(a *App) { a.fs = fs }
}

// WithMeterProvider replaces the meter provider backing the pipeline
// metrics. Defaults to the global OTel provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(a *App) { a.mp = mp }
}

// WithConfigWatch enables hot-reload of the config file at path: capture
// tunables and the log level apply live, structural changes log a restart
// warning.
func WithConfigWatch(path string) Option {
	return func(a *App) { a.watchPath = path }
}

// WithLogLevelVar hands the app the level var its logger was built with, so
// config hot-reload can switch the level at runtime.
func WithLogLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithWakeCallback registers a hook invoked on every wake-word detection.
func WithWakeCallback(fn func()) Option {
	return func(a *App) { a.onWakeWord = fn }
}

// WithUtteranceCallback registers a hook invoked with the text of every
// transcribed utterance.
func WithUtteranceCallback(fn func(text string)) Option {
	return func(a *App) { a.onUtterance = fn }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New assembles the pipeline. The registry supplies backend factories for
// everything not injected through options; cmd registers the CGO-backed
// implementations there so this package stays free of native dependencies.
//
// New fails when the config does not validate, a selected backend (after
// the wake fallback) cannot be built, or the dump directory cannot be
// created. The audio device itself is opened later, by Run.
func New(cfg *config.Config, reg *config.Registry, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	a := &App{
		cfg: cfg,
		reg: reg,
		fs:  afero.NewOsFs(),
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Config ────────────────────────────────────────────────────────
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("app: invalid config: %w", err)
	}

	// ── 2. Metrics ───────────────────────────────────────────────────────
	if err := a.initMetrics(); err != nil {
		return nil, fmt.Errorf("app: init metrics: %w", err)
	}

	// ── 3. Transcriber (+ fallback chain) ────────────────────────────────
	if err := a.initTranscriber(); err != nil {
		return nil, fmt.Errorf("app: init transcriber: %w", err)
	}

	// ── 4. Wake detector (+ transcript fallback) ─────────────────────────
	if err := a.initDetector(); err != nil {
		return nil, fmt.Errorf("app: init wake detector: %w", err)
	}

	// ── 5. Audio source ──────────────────────────────────────────────────
	if err := a.initSource(); err != nil {
		return nil, fmt.Errorf("app: init audio source: %w", err)
	}

	// ── 6. Dump store ────────────────────────────────────────────────────
	if err := a.initDumps(); err != nil {
		return nil, fmt.Errorf("app: init dump store: %w", err)
	}

	// ── 7. Listener ──────────────────────────────────────────────────────
	if err := a.initListener(); err != nil {
		return nil, fmt.Errorf("app: init listener: %w", err)
	}

	// ── 8. Admin HTTP server ─────────────────────────────────────────────
	a.initAdmin()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initMetrics builds the pipeline instruments from the configured meter
// provider, falling back to the global OTel provider.
func (a *App) initMetrics() error {
	mp := a.mp
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m, err := observe.NewMetrics(mp)
	if err != nil {
		return err
	}
	a.metrics = m
	return nil
}

// initTranscriber builds the primary transcription backend and, when
// fallbacks are configured, wraps primary and fallbacks in the resilience
// chain.
func (a *App) initTranscriber() error {
	if a.transcriber != nil {
		return nil // injected
	}
	if a.reg == nil {
		return errors.New("registry required to build the transcriber")
	}

	primary, err := a.reg.CreateTranscriber(a.cfg, a.cfg.STT.Primary())
	if err != nil {
		return fmt.Errorf("backend %q: %w", a.cfg.STT.Backend, err)
	}

	if len(a.cfg.STT.Fallbacks) == 0 {
		a.transcriber = primary
		a.closers = append(a.closers, primary.Close)
		return nil
	}

	chain := resilience.NewTranscriberChain(primary, string(a.cfg.STT.Backend), resilience.FallbackConfig{})
	for i, entry := range a.cfg.STT.Fallbacks {
		t, err := a.reg.CreateTranscriber(a.cfg, entry)
		if err != nil {
			_ = chain.Close()
			return fmt.Errorf("fallback %d (%q): %w", i, entry.Backend, err)
		}
		chain.AddFallback(string(entry.Backend), t)
	}
	slog.Info("transcriber fallback chain assembled",
		"primary", string(a.cfg.STT.Backend),
		"fallbacks", len(a.cfg.STT.Fallbacks),
	)
	a.transcriber = chain
	a.closers = append(a.closers, chain.Close)
	return nil
}

// initDetector builds the configured wake backend. When keyword spotting is
// selected but cannot be initialised (missing credential, missing native
// engine), it falls back to the transcript detector once, at assembly time.
func (a *App) initDetector() error {
	a.wakeBackend = a.cfg.Wake.Backend
	if a.detector != nil {
		return nil // injected
	}
	if a.reg == nil {
		return errors.New("registry required to build the wake detector")
	}

	det, err := a.reg.CreateDetector(a.cfg.Wake.Backend, a.cfg, a.transcriber)
	if err != nil && a.cfg.Wake.Backend == config.WakePorcupine && fallbackable(err) {
		slog.Warn("keyword-spotting backend unavailable, falling back to transcript detection",
			"backend", string(a.cfg.Wake.Backend),
			"error", err,
		)
		a.wakeBackend = config.WakeTranscript
		det, err = a.reg.CreateDetector(config.WakeTranscript, a.cfg, a.transcriber)
	}
	if err != nil {
		return fmt.Errorf("backend %q: %w", a.wakeBackend, err)
	}
	a.detector = det
	a.closers = append(a.closers, det.Close)
	return nil
}

// fallbackable reports whether a wake-backend construction error warrants
// trying the transcript detector instead.
func fallbackable(err error) bool {
	return errors.Is(err, wake.ErrBackendUnavailable) ||
		errors.Is(err, config.ErrBackendNotRegistered)
}

// initSource builds the configured audio source. The device is not opened
// here; that happens when Run starts the listener.
func (a *App) initSource() error {
	if a.source != nil {
		return nil // injected
	}
	if a.reg == nil {
		return errors.New("registry required to build the audio source")
	}
	src, err := a.reg.CreateSource(a.cfg)
	if err != nil {
		return err
	}
	a.source = src
	return nil
}

// initDumps creates the utterance dump store when a directory is configured.
func (a *App) initDumps() error {
	if a.cfg.Dump.Dir == "" {
		return nil
	}
	store, err := dump.New(a.cfg.Dump.Dir, dump.WithFilesystem(a.fs))
	if err != nil {
		return err
	}
	a.dumps = store
	slog.Info("utterance dumps enabled", "dir", a.cfg.Dump.Dir)
	return nil
}

// initListener wires the assembled pieces into the listener.
func (a *App) initListener() error {
	lst, err := listener.New(listener.Config{
		Source:      a.source,
		Detector:    a.detector,
		Transcriber: a.transcriber,
		OnWakeWord:  a.onWakeWord,
		OnUtterance: a.onUtterance,
		Capture: listener.CaptureParams{
			SilenceThreshold: a.cfg.Capture.SilenceThreshold,
			SilenceDuration:  a.cfg.Capture.SilenceDuration.Std(),
			MaxDuration:      a.cfg.Capture.MaxDuration.Std(),
		},
		NewVAD:        vadFactory(a.cfg.Capture.VAD),
		QueueSize:     a.cfg.Audio.QueueSize,
		WrapSink:      a.instrumentSink,
		STTTimeout:    a.cfg.STT.Timeout.Std(),
		ShutdownGrace: a.cfg.Listener.ShutdownGrace.Std(),
		WakeBackend:   string(a.wakeBackend),
		STTBackend:    string(a.cfg.STT.Backend),
		Dumps:         a.dumps,
		Metrics:       a.metrics,
	})
	if err != nil {
		return err
	}
	a.lst = lst
	return nil
}

// vadFactory maps the configured strategy to a per-cycle detector builder.
func vadFactory(kind config.VADKind) func(threshold float64) vad.Detector {
	if kind == config.VADFlux {
		return func(float64) vad.Detector { return vad.NewFlux(0) }
	}
	return func(threshold float64) vad.Detector { return vad.NewEnergy(threshold) }
}

// initAdmin builds the admin HTTP server when an address is configured.
func (a *App) initAdmin() {
	if a.cfg.Admin.Addr == "" {
		return
	}

	mux := http.NewServeMux()
	health.New(
		health.Checker{Name: "listener", Check: func(context.Context) error {
			if a.lst.State() == listener.StateIdle {
				return errors.New("listener not running")
			}
			return nil
		}},
		health.Checker{Name: "stt", Check: func(context.Context) error {
			if a.transcriber == nil {
				return errors.New("transcriber not initialised")
			}
			return nil
		}},
	).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.admin = &http.Server{
		Addr:              a.cfg.Admin.Addr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run opens the audio device, starts the listener, and serves until ctx is
// cancelled. On cancellation it stops the listener (bounded by the shutdown
// grace), then drains the admin server. Run returns nil on a clean
// cancellation and the first hard error otherwise.
func (a *App) Run(ctx context.Context) error {
	if err := a.lst.Start(ctx); err != nil {
		return fmt.Errorf("app: start listener: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Listener teardown gates the admin drain so /readyz flips before the
	// surface disappears.
	lstStopped := make(chan struct{})
	g.Go(func() error {
		<-gctx.Done()
		err := a.lst.Stop()
		close(lstStopped)
		if err != nil {
			return fmt.Errorf("app: stop listener: %w", err)
		}
		return nil
	})

	if a.admin != nil {
		g.Go(func() error {
			slog.Info("admin server listening", "addr", a.admin.Addr)
			if err := a.admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			<-lstStopped
			shCtx, cancel := context.WithTimeout(context.Background(), adminShutdownTimeout)
			defer cancel()
			if err := a.admin.Shutdown(shCtx); err != nil {
				slog.Warn("admin server shutdown", "error", err)
			}
			return nil
		})
	}

	if a.watchPath != "" {
		w, err := config.NewWatcher(a.watchPath, a.onConfigChange)
		if err != nil {
			slog.Warn("config hot-reload disabled", "path", a.watchPath, "error", err)
		} else {
			g.Go(func() error {
				<-gctx.Done()
				w.Stop()
				return nil
			})
			slog.Info("config hot-reload enabled", "path", a.watchPath)
		}
	}

	slog.Info("hark running",
		"wake_backend", string(a.wakeBackend),
		"stt_backend", string(a.cfg.STT.Backend),
		"admin", a.cfg.Admin.Addr,
	)
	return g.Wait()
}

// onConfigChange reacts to a validated config reload: capture tunables and
// the log level apply live, anything structural logs a restart warning. The
// watcher hands over its own consecutive snapshots, so the startup config
// held by the App is never mutated.
func (a *App) onConfigChange(_, next *config.Config, d config.ConfigDiff) {
	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.Level())
		slog.Info("log level switched", "level", string(d.NewLogLevel))
	}
	if d.CaptureChanged {
		a.lst.UpdateCapture(listener.CaptureParams{
			SilenceThreshold: next.Capture.SilenceThreshold,
			SilenceDuration:  next.Capture.SilenceDuration.Std(),
			MaxDuration:      next.Capture.MaxDuration.Std(),
		})
	}
	if len(d.Structural) > 0 {
		slog.Warn("structural config changes need a restart to take effect",
			"paths", d.Structural)
	}
}

// instrumentSink decorates the frame queue with intake counters.
func (a *App) instrumentSink(inner audio.Sink) audio.Sink {
	return &instrumentedSink{inner: inner, metrics: a.metrics}
}

// instrumentedSink counts accepted and dropped frames at the queue boundary.
type instrumentedSink struct {
	inner   audio.Sink
	metrics *observe.Metrics
}

// Enqueue delegates to the queue and records the outcome.
func (s *instrumentedSink) Enqueue(f audio.Frame) bool {
	if s.inner.Enqueue(f) {
		s.metrics.FramesCaptured.Add(context.Background(), 1)
		return true
	}
	s.metrics.FramesDropped.Add(context.Background(), 1)
	return false
}

// Compile-time check of the capture-side contract.
var _ audio.Sink = (*instrumentedSink)(nil)

// ─── Accessors ───────────────────────────────────────────────────────────────

// Listener exposes the pipeline state machine, mainly for tests and
// embedders that poll State.
func (a *App) Listener() *listener.Listener {
	return a.lst
}

// WakeBackend reports the wake backend actually in use after the assembly
// fallback decision.
func (a *App) WakeBackend() config.WakeBackend {
	return a.wakeBackend
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases the backend models and native resources built by New.
// It respects the context deadline: if ctx expires before all closers
// finish, the remaining ones are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("releasing backends", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "error", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
