// Package listener drives the voice-activation pipeline: audio frames flow
// from the source through the bounded frame queue into a single processing
// goroutine that runs wake-word detection, speech segmentation, and
// transcription as one state machine.
//
// The listener moves through four states. It starts Idle, arms itself for
// the wake word on Start, captures speech after a detection, transcribes the
// captured utterance, and re-arms. Stop returns it to Idle from any state.
//
// All per-frame work happens on the processing goroutine. Callbacks fire
// synchronously from it, so a slow OnUtterance handler delays the pipeline
// rather than racing it; the frame queue absorbs the capture side in the
// meantime and drops frames once full. Drops are diagnostics, not errors.
//
// No detector or transcription error crashes the loop: failures are logged
// with the capture cycle's correlation ID, counted, and the listener
// re-arms.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/hark/internal/dump"
	"github.com/MrWong99/hark/internal/observe"
	"github.com/MrWong99/hark/internal/segment"
	"github.com/MrWong99/hark/pkg/audio"
	"github.com/MrWong99/hark/pkg/provider/stt"
	"github.com/MrWong99/hark/pkg/provider/wake"
	"github.com/MrWong99/hark/pkg/vad"
)

const (
	// DefaultSTTTimeout bounds a single transcription call.
	DefaultSTTTimeout = 30 * time.Second

	// DefaultShutdownGrace bounds how long Stop waits for the processing
	// goroutine after signalling it.
	DefaultShutdownGrace = 5 * time.Second
)

// ─── state machine ────────────────────────────────────────────────────────────

// State identifies where in the wake-capture-transcribe cycle the listener
// currently is.
type State int

const (
	// StateIdle: not started, or stopped.
	StateIdle State = iota

	// StateArmedForWakeWord: consuming frames, feeding the wake detector.
	StateArmedForWakeWord

	// StateCapturingSpeech: accumulating an utterance after a detection.
	StateCapturingSpeech

	// StateTranscribing: utterance complete, transcription in flight.
	StateTranscribing
)

// String returns the state name used in logs and readiness output.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmedForWakeWord:
		return "armed"
	case StateCapturingSpeech:
		return "capturing"
	case StateTranscribing:
		return "transcribing"
	default:
		return "unknown"
	}
}

// CaptureParams are the speech-segmentation tunables. They can be swapped at
// runtime with [Listener.UpdateCapture]; the swap takes effect on the next
// capture cycle, never mid-utterance.
type CaptureParams struct {
	// SilenceThreshold is the mean-absolute-amplitude level below which a
	// frame counts as silence. Defaults to [vad.DefaultSilenceThreshold]
	// if zero.
	SilenceThreshold float64

	// SilenceDuration is how long the stream must stay silent for an
	// utterance to end. Defaults to [segment.DefaultSilenceDuration] if
	// zero.
	SilenceDuration time.Duration

	// MaxDuration caps the utterance length regardless of ongoing speech.
	// Defaults to [segment.DefaultMaxDuration] if zero.
	MaxDuration time.Duration
}

// withDefaults fills zero fields with the package defaults.
func (p CaptureParams) withDefaults() CaptureParams {
	if p.SilenceThreshold <= 0 {
		p.SilenceThreshold = vad.DefaultSilenceThreshold
	}
	if p.SilenceDuration <= 0 {
		p.SilenceDuration = segment.DefaultSilenceDuration
	}
	if p.MaxDuration <= 0 {
		p.MaxDuration = segment.DefaultMaxDuration
	}
	return p
}

// ─── configuration ────────────────────────────────────────────────────────────

// Config assembles a Listener. Source, Detector, and Transcriber are
// required; everything else has a working default.
type Config struct {
	// Source produces audio frames once started. Required.
	Source audio.Source

	// Detector spots the wake phrase while the listener is armed. The
	// listener resets it after every detection but never closes it; the
	// assembler that built it owns its lifetime. Required.
	Detector wake.Detector

	// Transcriber turns captured utterances into text. Never closed by the
	// listener. Required.
	Transcriber stt.Transcriber

	// OnWakeWord fires synchronously from the processing goroutine when the
	// wake phrase is detected, before speech capture begins. Optional.
	OnWakeWord func()

	// OnUtterance fires synchronously from the processing goroutine with
	// the transcribed text of a captured utterance. Empty transcriptions
	// are dropped before it. Optional.
	OnUtterance func(text string)

	// Capture holds the initial speech-segmentation tunables. Zero fields
	// fall back to package defaults.
	Capture CaptureParams

	// NewVAD builds the voice-activity detector for each capture cycle from
	// the silence threshold in effect. Defaults to [vad.NewEnergy].
	NewVAD func(threshold float64) vad.Detector

	// QueueSize caps the frame queue between the capture and processing
	// contexts. Defaults to [audio.DefaultQueueCapacity] if zero.
	QueueSize int

	// WrapSink, if set, decorates the frame queue before it is handed to
	// the source. Used to hook intake metrics in front of the queue.
	WrapSink func(audio.Sink) audio.Sink

	// STTTimeout bounds a single transcription call. Defaults to
	// [DefaultSTTTimeout] if zero.
	STTTimeout time.Duration

	// ShutdownGrace bounds how long Stop waits for the processing goroutine
	// after signalling it. Defaults to [DefaultShutdownGrace] if zero.
	ShutdownGrace time.Duration

	// WakeBackend names the wake detector in metric attributes and logs.
	// Defaults to "unknown" if empty.
	WakeBackend string

	// STTBackend names the transcription backend in metric attributes and
	// logs. Defaults to "unknown" if empty.
	STTBackend string

	// Dumps, if set, persists each captured utterance as a WAV file named
	// after the capture cycle ID. Dump failures are logged, never fatal.
	Dumps *dump.Store

	// Metrics receives pipeline measurements. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger for pipeline events. Defaults to [slog.Default].
	Logger *slog.Logger
}

// Listener owns the processing goroutine, the frame queue, and the state
// machine of the pipeline. Create one with [New]; Start and Stop are
// idempotent and safe to call from any goroutine.
type Listener struct {
	source      audio.Source
	detector    wake.Detector
	transcriber stt.Transcriber
	onWakeWord  func()
	onUtterance func(string)
	newVAD      func(float64) vad.Detector
	wrapSink    func(audio.Sink) audio.Sink
	queueSize   int
	sttTimeout  time.Duration
	grace       time.Duration
	wakeBackend string
	sttBackend  string
	dumps       *dump.Store
	metrics     *observe.Metrics
	logger      *slog.Logger

	mu       sync.Mutex
	state    State
	params   CaptureParams
	running  bool
	cancel   context.CancelFunc
	queue    *audio.FrameQueue
	loopDone chan struct{}
}

// New validates cfg, applies defaults, and returns a Listener in the Idle
// state. Nothing runs until [Listener.Start].
func New(cfg Config) (*Listener, error) {
	if cfg.Source == nil {
		return nil, errors.New("listener: config.Source is required")
	}
	if cfg.Detector == nil {
		return nil, errors.New("listener: config.Detector is required")
	}
	if cfg.Transcriber == nil {
		return nil, errors.New("listener: config.Transcriber is required")
	}
	if cfg.NewVAD == nil {
		cfg.NewVAD = func(threshold float64) vad.Detector { return vad.NewEnergy(threshold) }
	}
	if cfg.STTTimeout <= 0 {
		cfg.STTTimeout = DefaultSTTTimeout
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultShutdownGrace
	}
	if cfg.WakeBackend == "" {
		cfg.WakeBackend = "unknown"
	}
	if cfg.STTBackend == "" {
		cfg.STTBackend = "unknown"
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Listener{
		source:      cfg.Source,
		detector:    cfg.Detector,
		transcriber: cfg.Transcriber,
		onWakeWord:  cfg.OnWakeWord,
		onUtterance: cfg.OnUtterance,
		newVAD:      cfg.NewVAD,
		wrapSink:    cfg.WrapSink,
		queueSize:   cfg.QueueSize,
		sttTimeout:  cfg.STTTimeout,
		grace:       cfg.ShutdownGrace,
		wakeBackend: cfg.WakeBackend,
		sttBackend:  cfg.STTBackend,
		dumps:       cfg.Dumps,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		state:       StateIdle,
		params:      cfg.Capture.withDefaults(),
	}, nil
}

// ─── lifecycle ────────────────────────────────────────────────────────────────

// Start opens the audio source and launches the processing goroutine. On
// success the listener transitions to ArmedForWakeWord. When the source
// cannot be opened the error is returned unchanged in kind (device failures
// still match [audio.ErrDeviceUnavailable]) and the listener stays Idle.
// Starting a running listener is a logged no-op.
//
// Cancelling ctx makes the processing goroutine exit, but the caller remains
// responsible for Stop: only Stop releases the source and resets the state.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		l.logger.Info("listener: already running, start ignored")
		return nil
	}

	queue := audio.NewFrameQueue(l.queueSize)
	queue.SetLogger(l.logger)
	var sink audio.Sink = queue
	if l.wrapSink != nil {
		sink = l.wrapSink(queue)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := l.source.Start(runCtx, sink); err != nil {
		cancel()
		queue.Close()
		l.mu.Unlock()
		return fmt.Errorf("listener: start audio source: %w", err)
	}

	done := make(chan struct{})
	l.queue = queue
	l.cancel = cancel
	l.loopDone = done
	l.running = true
	l.state = StateArmedForWakeWord
	l.mu.Unlock()

	l.metrics.ListenerActive.Add(ctx, 1)
	l.logger.Info("listener: started, armed for wake word",
		"wake_backend", l.wakeBackend,
		"stt_backend", l.sttBackend,
		"queue_capacity", queue.Cap(),
	)
	go l.processLoop(runCtx, queue, done)
	return nil
}

// Stop signals the processing goroutine, stops the audio source, and waits
// up to the shutdown grace for in-flight work (possibly a transcription) to
// finish. The listener ends Idle. Stopping an idle listener is a logged
// no-op; Stop never deadlocks.
func (l *Listener) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		l.logger.Info("listener: not running, stop ignored")
		return nil
	}
	l.running = false
	cancel, queue, done := l.cancel, l.queue, l.loopDone
	l.mu.Unlock()

	cancel()
	stopErr := l.source.Stop()

	select {
	case <-done:
	case <-time.After(l.grace):
		l.logger.Warn("listener: processing loop still busy after grace period, detaching",
			"grace", l.grace)
		// Release frames the stuck loop will never consume.
		go audio.Drain(queue.Frames())
	}
	queue.Close()

	l.mu.Lock()
	l.state = StateIdle
	l.mu.Unlock()
	l.metrics.ListenerActive.Add(context.Background(), -1)

	l.logger.Info("listener: stopped", "dropped_frames", queue.Dropped())
	if stopErr != nil {
		return fmt.Errorf("listener: stop audio source: %w", stopErr)
	}
	return nil
}

// State returns the listener's current pipeline state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// UpdateCapture swaps the speech-segmentation tunables. The new values apply
// from the next capture cycle on; a capture already in progress finishes
// under the old ones.
func (l *Listener) UpdateCapture(p CaptureParams) {
	p = p.withDefaults()
	l.mu.Lock()
	l.params = p
	l.mu.Unlock()
	l.logger.Info("listener: capture parameters updated",
		"silence_threshold", p.SilenceThreshold,
		"silence_duration", p.SilenceDuration,
		"max_duration", p.MaxDuration,
	)
}

// captureParams snapshots the tunables for a starting cycle.
func (l *Listener) captureParams() CaptureParams {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params
}

// setState applies a transition from the processing goroutine. Once Stop has
// begun, transitions are ignored so a loop that outlives the grace period
// cannot resurrect a stopped listener's state.
func (l *Listener) setState(s State) {
	l.mu.Lock()
	if l.running {
		l.state = s
	}
	l.mu.Unlock()
}

// ─── processing loop ──────────────────────────────────────────────────────────

// cycle is the loop-local state of one wake-to-utterance pass. A cycle opens
// at a wake detection and closes after transcription resolves; its ID
// correlates logs, metrics, traces, and audio dumps.
type cycle struct {
	id   string
	ctx  context.Context
	span trace.Span
	log  *slog.Logger
	seg  *segment.Segmenter
	rate int
}

// end closes the cycle's span. Safe to call on a cycle that never opened.
func (c *cycle) end() {
	if c.span != nil {
		c.span.End()
		c.span = nil
	}
}

// processLoop is the single consumer of the frame queue and owns every state
// transition after Start. It exits when its context is cancelled (Stop, or
// the caller's context) or the queue closes; it never exits because of a
// detector or transcription error.
func (l *Listener) processLoop(ctx context.Context, queue *audio.FrameQueue, done chan<- struct{}) {
	defer close(done)

	c := &cycle{}
	defer c.end()

	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-queue.Frames():
			if !ok {
				return
			}
			l.metrics.QueueDepth.Record(ctx, int64(queue.Len()))
			l.handleFrame(ctx, c, f)
		}
	}
}

// handleFrame advances the state machine by one frame.
func (l *Listener) handleFrame(ctx context.Context, c *cycle, f audio.Frame) {
	switch l.State() {
	case StateArmedForWakeWord:
		l.checkWake(ctx, c, f)
	case StateCapturingSpeech:
		l.captureFrame(c, f)
	default:
		// Stop is in progress; the frame is discarded.
	}
}

// checkWake runs one wake-word evaluation and, on a hit, opens a new capture
// cycle.
func (l *Listener) checkWake(ctx context.Context, c *cycle, f audio.Frame) {
	start := time.Now()
	res, err := l.detector.ProcessFrame(f.Samples)
	l.metrics.WakeCheckDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("backend", l.wakeBackend)))
	if err != nil {
		l.metrics.RecordWakeCheck(ctx, l.wakeBackend, "error")
		l.logger.Warn("listener: wake check failed",
			"backend", l.wakeBackend,
			"error", err,
		)
		return
	}
	if !res.Detected {
		l.metrics.RecordWakeCheck(ctx, l.wakeBackend, "ok")
		return
	}
	l.metrics.RecordWakeCheck(ctx, l.wakeBackend, "detected")
	l.metrics.RecordWakeDetection(ctx, l.wakeBackend)

	c.id = uuid.NewString()
	c.ctx, c.span = observe.StartSpan(ctx, "listener.cycle")
	c.span.SetAttributes(
		observe.Attr("cycle_id", c.id),
		observe.Attr("wake.backend", l.wakeBackend),
	)
	c.log = l.logger.With("cycle", c.id)
	c.rate = f.SampleRate

	attrs := []any{"keyword", res.Keyword, "confidence", res.Confidence}
	if res.Transcript != "" {
		attrs = append(attrs, "heard", res.Transcript)
	}
	c.log.Info("listener: wake word detected", attrs...)

	// Snapshot the tunables before handing control to the callback, so an
	// UpdateCapture issued from inside OnWakeWord lands on the next cycle.
	params := l.captureParams()

	if l.onWakeWord != nil {
		l.onWakeWord()
	}

	c.seg = segment.New(l.newVAD(params.SilenceThreshold), params.SilenceDuration, params.MaxDuration)
	l.detector.Reset()
	l.setState(StateCapturingSpeech)
}

// captureFrame feeds one frame to the segmenter and, when the utterance is
// complete, runs it through transcription and re-arms.
func (l *Listener) captureFrame(c *cycle, f audio.Frame) {
	c.rate = f.SampleRate
	res, complete := c.seg.Feed(f)
	if !complete {
		return
	}

	l.setState(StateTranscribing)
	l.metrics.CaptureDuration.Record(c.ctx, res.Duration.Seconds(),
		metric.WithAttributes(observe.Attr("reason", string(res.Reason))))
	c.log.Debug("listener: utterance captured",
		"duration", res.Duration,
		"reason", string(res.Reason),
		"samples", len(res.Samples),
	)

	l.dump(c, res)
	l.transcribe(c, res)

	c.end()
	c.seg = nil
	l.setState(StateArmedForWakeWord)
}

// dump persists the captured samples when a dump store is configured.
func (l *Listener) dump(c *cycle, res segment.Result) {
	if l.dumps == nil {
		return
	}
	path, err := l.dumps.Save(c.id, res.Samples, c.rate)
	if err != nil {
		c.log.Warn("listener: utterance dump failed", "error", err)
		return
	}
	c.log.Debug("listener: utterance dumped", "path", path)
}

// transcribe runs the utterance through the transcriber, bounded by the STT
// timeout, and fires OnUtterance for non-empty text.
func (l *Listener) transcribe(c *cycle, res segment.Result) {
	tctx, cancel := context.WithTimeout(c.ctx, l.sttTimeout)
	defer cancel()

	start := time.Now()
	tr, err := l.transcriber.Transcribe(tctx, res.Samples)
	l.metrics.STTDuration.Record(c.ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("backend", l.sttBackend)))
	if err != nil {
		l.metrics.RecordSTTError(c.ctx, l.sttBackend)
		c.span.RecordError(err)
		c.log.Error("listener: transcription failed",
			"backend", l.sttBackend,
			"audio_duration", res.Duration,
			"error", err,
		)
		return
	}
	if tr.Text == "" {
		l.metrics.RecordUtterance(c.ctx, true)
		c.log.Debug("listener: empty transcription, utterance dropped")
		return
	}

	l.metrics.RecordUtterance(c.ctx, false)
	c.log.Info("listener: utterance transcribed",
		"chars", len(tr.Text),
		"audio_duration", res.Duration,
		"stt_duration", time.Since(start),
	)
	if l.onUtterance != nil {
		l.onUtterance(tr.Text)
	}
}
