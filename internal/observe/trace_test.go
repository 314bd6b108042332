package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })
	return exp
}

func TestStartSpan_ProducesValidTraceID(t *testing.T) {
	setupTracer(t)

	ctx, span := StartSpan(context.Background(), "wake check")
	defer span.End()

	cid := CorrelationID(ctx)
	if cid == "" {
		t.Fatal("expected a correlation ID inside an active span")
	}
	if len(cid) != 32 {
		t.Errorf("correlation ID length = %d, want 32", len(cid))
	}
}

func TestCorrelationID_EmptyWithoutSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID = %q, want empty without an active span", got)
	}
}

func TestLogger_FallsBackToDefault(t *testing.T) {
	if got := Logger(context.Background()); got == nil {
		t.Fatal("Logger returned nil")
	}
}
