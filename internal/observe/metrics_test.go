package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// counterValue sums all data points of an int64 counter.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not an int64 sum", name)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"hark.wake.check.duration", m.WakeCheckDuration},
		{"hark.capture.duration", m.CaptureDuration},
		{"hark.stt.duration", m.STTDuration},
		{"hark.http.request.duration", m.HTTPRequestDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}
	m.QueueDepth.Record(ctx, 3)

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("metric %q count = %d, want 2", tc.name, got)
			}
		})
	}

	depth := findMetric(rm, "hark.queue.depth")
	if depth == nil {
		t.Fatal("metric hark.queue.depth not found")
	}
	if _, ok := depth.Data.(metricdata.Histogram[int64]); !ok {
		t.Error("hark.queue.depth is not an int64 histogram")
	}
}

func TestRecordHelpers(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.FramesCaptured.Add(ctx, 3)
	m.FramesDropped.Add(ctx, 1)
	m.RecordWakeCheck(ctx, "transcript", "ok")
	m.RecordWakeCheck(ctx, "transcript", "error")
	m.RecordWakeDetection(ctx, "porcupine")
	m.RecordSTTError(ctx, "whisper")
	m.RecordUtterance(ctx, false)
	m.RecordUtterance(ctx, true)
	m.ListenerActive.Add(ctx, 1)

	rm := collect(t, reader)

	counters := []struct {
		name string
		want int64
	}{
		{"hark.audio.frames_captured", 3},
		{"hark.audio.frames_dropped", 1},
		{"hark.wake.checks", 2},
		{"hark.wake.detections", 1},
		{"hark.stt.errors", 1},
		{"hark.utterances", 1},
		{"hark.utterances.empty", 1},
	}
	for _, tc := range counters {
		if got := counterValue(t, rm, tc.name); got != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestRecordWakeCheck_Attributes(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordWakeCheck(context.Background(), "porcupine", "detected")

	rm := collect(t, reader)
	met := findMetric(rm, "hark.wake.checks")
	if met == nil {
		t.Fatal("metric hark.wake.checks not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) == 0 {
		t.Fatal("hark.wake.checks has no data points")
	}

	attrs := sum.DataPoints[0].Attributes
	if got, _ := attrs.Value(attribute.Key("backend")); got.AsString() != "porcupine" {
		t.Errorf("backend attribute = %q, want %q", got.AsString(), "porcupine")
	}
	if got, _ := attrs.Value(attribute.Key("status")); got.AsString() != "detected" {
		t.Errorf("status attribute = %q, want %q", got.AsString(), "detected")
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different instances")
	}
}
