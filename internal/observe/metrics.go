// Package observe provides application-wide observability primitives for
// hark: OpenTelemetry metrics, tracing, structured logging helpers, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the admin /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all hark metrics.
const meterName = "github.com/MrWong99/hark"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Audio intake ---

	// FramesCaptured counts frames accepted into the frame queue.
	FramesCaptured metric.Int64Counter

	// FramesDropped counts frames rejected because the queue was full.
	FramesDropped metric.Int64Counter

	// QueueDepth samples the queue fill level at each dequeue.
	QueueDepth metric.Int64Histogram

	// --- Wake-word stage ---

	// WakeChecks counts wake-word evaluations. Use with attributes:
	//   attribute.String("backend", ...), attribute.String("status", ...)
	WakeChecks metric.Int64Counter

	// WakeDetections counts wake-word hits by backend.
	WakeDetections metric.Int64Counter

	// WakeCheckDuration tracks time spent per detector call while armed.
	WakeCheckDuration metric.Float64Histogram

	// --- Capture & transcription stages ---

	// CaptureDuration tracks the audio length of completed utterances. Use
	// with attribute: attribute.String("reason", "silence"|"timeout").
	CaptureDuration metric.Float64Histogram

	// STTDuration tracks utterance transcription latency by backend.
	STTDuration metric.Float64Histogram

	// STTErrors counts failed transcription calls by backend.
	STTErrors metric.Int64Counter

	// Utterances counts utterance callbacks delivered (non-empty text).
	Utterances metric.Int64Counter

	// EmptyUtterances counts captures whose transcription came back empty
	// and were therefore dropped without a callback.
	EmptyUtterances metric.Int64Counter

	// --- Lifecycle ---

	// ListenerActive tracks the number of running listeners.
	ListenerActive metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks admin HTTP request processing time. Use
	// with attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// depthBuckets defines bucket boundaries for queue fill levels.
var depthBuckets = []float64{0, 1, 2, 4, 8, 16, 32, 64}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.FramesCaptured, err = m.Int64Counter("hark.audio.frames_captured",
		metric.WithDescription("Total audio frames accepted into the frame queue."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("hark.audio.frames_dropped",
		metric.WithDescription("Total audio frames dropped because the frame queue was full."),
	); err != nil {
		return nil, err
	}
	if met.WakeChecks, err = m.Int64Counter("hark.wake.checks",
		metric.WithDescription("Total wake-word evaluations by backend and status."),
	); err != nil {
		return nil, err
	}
	if met.WakeDetections, err = m.Int64Counter("hark.wake.detections",
		metric.WithDescription("Total wake-word detections by backend."),
	); err != nil {
		return nil, err
	}
	if met.STTErrors, err = m.Int64Counter("hark.stt.errors",
		metric.WithDescription("Total failed transcription calls by backend."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("hark.utterances",
		metric.WithDescription("Total utterance callbacks delivered."),
	); err != nil {
		return nil, err
	}
	if met.EmptyUtterances, err = m.Int64Counter("hark.utterances.empty",
		metric.WithDescription("Total captures dropped because transcription returned empty text."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.QueueDepth, err = m.Int64Histogram("hark.queue.depth",
		metric.WithDescription("Frame queue fill level sampled at each dequeue."),
		metric.WithExplicitBucketBoundaries(depthBuckets...),
	); err != nil {
		return nil, err
	}
	if met.WakeCheckDuration, err = m.Float64Histogram("hark.wake.check.duration",
		metric.WithDescription("Time spent per wake-detector call while armed."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CaptureDuration, err = m.Float64Histogram("hark.capture.duration",
		metric.WithDescription("Audio length of completed utterance captures by end reason."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("hark.stt.duration",
		metric.WithDescription("Latency of utterance transcription by backend."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ListenerActive, err = m.Int64UpDownCounter("hark.listener.active",
		metric.WithDescription("Number of running listeners."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("hark.http.request.duration",
		metric.WithDescription("Admin HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordWakeCheck records one wake-word evaluation with the standard
// attribute set. Status is "ok", "error", or "detected".
func (m *Metrics) RecordWakeCheck(ctx context.Context, backend, status string) {
	m.WakeChecks.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("status", status),
		),
	)
}

// RecordWakeDetection records one wake-word hit.
func (m *Metrics) RecordWakeDetection(ctx context.Context, backend string) {
	m.WakeDetections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("backend", backend)),
	)
}

// RecordSTTError records one failed transcription call.
func (m *Metrics) RecordSTTError(ctx context.Context, backend string) {
	m.STTErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("backend", backend)),
	)
}

// RecordUtterance records one completed capture: a delivered callback when
// empty is false, a dropped empty transcription otherwise.
func (m *Metrics) RecordUtterance(ctx context.Context, empty bool) {
	if empty {
		m.EmptyUtterances.Add(ctx, 1)
		return
	}
	m.Utterances.Add(ctx, 1)
}
