package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricPhaseMappedTotal   = "hyperdiff.phase.mapped.total"
	metricPhaseDuration      = "hyperdiff.phase.duration.seconds"
	metricEditScriptOpsTotal = "hyperdiff.editscript.ops.total"

	attrPhase = "phase"
	attrKind  = "kind"
)

// durationBucketBoundaries covers 100µs to 60s, the range of a single
// matcher phase on trees from a handful of nodes up to a large file.
var durationBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60}

// PhaseMetrics holds the OTel instruments recording one diff run's
// per-phase contribution and the shape of its edit script.
type PhaseMetrics struct {
	mappedTotal   metric.Int64Counter
	phaseDuration metric.Float64Histogram
	opsTotal      metric.Int64Counter
}

// NewPhaseMetrics creates the diff-run metric instruments from the given meter.
func NewPhaseMetrics(mt metric.Meter) (*PhaseMetrics, error) {
	mapped, err := mt.Int64Counter(metricPhaseMappedTotal,
		metric.WithDescription("Total node pairs added to the mapping, by phase"),
		metric.WithUnit("{pair}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPhaseMappedTotal, err)
	}

	duration, err := mt.Float64Histogram(metricPhaseDuration,
		metric.WithDescription("Matcher phase wall-clock duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPhaseDuration, err)
	}

	ops, err := mt.Int64Counter(metricEditScriptOpsTotal,
		metric.WithDescription("Edit script operations emitted, by kind"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricEditScriptOpsTotal, err)
	}

	return &PhaseMetrics{mappedTotal: mapped, phaseDuration: duration, opsTotal: ops}, nil
}

// RecordPhase records one matcher phase's contribution to the mapping.
func (pm *PhaseMetrics) RecordPhase(ctx context.Context, phase string, mapped int, duration time.Duration) {
	if pm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrPhase, phase))

	pm.mappedTotal.Add(ctx, int64(mapped), attrs)
	pm.phaseDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordOp records one emitted edit-script operation by its kind.
func (pm *PhaseMetrics) RecordOp(ctx context.Context, kind string) {
	if pm == nil {
		return
	}

	pm.opsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, kind)))
}
