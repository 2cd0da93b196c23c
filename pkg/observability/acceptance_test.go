package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/veridian-labs/hyperdiff/pkg/observability"
)

// acceptanceSpanCount is the expected number of spans in the acceptance test
// (root + subtree + editscript).
const acceptanceSpanCount = 3

// acceptanceMappedCount is the simulated mapped-pair count used in log
// assertions.
const acceptanceMappedCount = 42

// TestAcceptance_EndToEnd verifies all observability signals (traces,
// metrics, structured logs with trace context) work together across a
// simulated diff run.
func TestAcceptance_EndToEnd(t *testing.T) {
	t.Parallel()

	spanExporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spanExporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	tracer := tp.Tracer("hyperdiff")

	metricReader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader))
	meter := mp.Meter("hyperdiff")

	phases, err := observability.NewPhaseMetrics(meter)
	require.NoError(t, err)

	cache, err := observability.NewCacheMetrics(meter)
	require.NoError(t, err)

	var logBuf bytes.Buffer

	innerHandler := slog.NewJSONHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	tracingHandler := observability.NewTracingHandler(innerHandler, "hyperdiff", "test")
	logger := slog.New(tracingHandler)

	ctx, rootSpan := tracer.Start(context.Background(), "hyperdiff.diff")

	_, subtreeSpan := tracer.Start(ctx, "hyperdiff.match.subtree")
	subtreeSpan.End()

	_, editscriptSpan := tracer.Start(ctx, "hyperdiff.editscript.generate")
	editscriptSpan.End()

	cache.RecordView(ctx, "src", true)
	cache.RecordView(ctx, "dst", false)

	phases.RecordPhase(ctx, "subtree", 30, 10*time.Millisecond)
	phases.RecordPhase(ctx, "bottomup", 10, 5*time.Millisecond)
	phases.RecordPhase(ctx, "lastchance", 2, time.Millisecond)

	phases.RecordOp(ctx, "insert")
	phases.RecordOp(ctx, "update")

	logger.InfoContext(ctx, "diff.complete", "mapped", acceptanceMappedCount)

	rootSpan.End()

	spans := spanExporter.GetSpans()
	require.Len(t, spans, acceptanceSpanCount, "expected root + 2 child spans")

	spanNames := make(map[string]bool, len(spans))
	for _, s := range spans {
		spanNames[s.Name] = true
	}

	assert.True(t, spanNames["hyperdiff.diff"], "root span should exist")
	assert.True(t, spanNames["hyperdiff.match.subtree"], "subtree span should exist")
	assert.True(t, spanNames["hyperdiff.editscript.generate"], "editscript span should exist")

	traceID := spans[0].SpanContext.TraceID()
	for _, s := range spans[1:] {
		assert.Equal(t, traceID, s.SpanContext.TraceID(),
			"span %q should share trace ID", s.Name)
	}

	var rm metricdata.ResourceMetrics

	err = metricReader.Collect(ctx, &rm)
	require.NoError(t, err)

	mappedTotal := findMetric(rm, "hyperdiff.phase.mapped.total")
	require.NotNil(t, mappedTotal, "phase mapped counter should be recorded")

	phaseDuration := findMetric(rm, "hyperdiff.phase.duration.seconds")
	require.NotNil(t, phaseDuration, "phase duration histogram should be recorded")

	opsTotal := findMetric(rm, "hyperdiff.editscript.ops.total")
	require.NotNil(t, opsTotal, "edit script ops counter should be recorded")

	cacheHits := findMetric(rm, "hyperdiff.cache.hits.total")
	require.NotNil(t, cacheHits, "cache hits counter should be recorded")

	cacheMisses := findMetric(rm, "hyperdiff.cache.misses.total")
	require.NotNil(t, cacheMisses, "cache misses counter should be recorded")

	var logRecord map[string]any

	err = json.Unmarshal(logBuf.Bytes(), &logRecord)
	require.NoError(t, err)

	assert.Equal(t, traceID.String(), logRecord["trace_id"],
		"log line should contain the active trace_id")
	assert.Contains(t, logRecord, "span_id",
		"log line should contain span_id")
	assert.Equal(t, "hyperdiff", logRecord["service"],
		"log line should contain service name")

	mapped, ok := logRecord["mapped"].(float64)
	require.True(t, ok, "mapped should be a number")
	assert.InDelta(t, acceptanceMappedCount, mapped, 0,
		"log line should contain custom attributes")
}
