package diff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/veridian-labs/hyperdiff/pkg/hyperast/editscript"
	"github.com/veridian-labs/hyperdiff/pkg/hyperast/mapping"
	"github.com/veridian-labs/hyperdiff/pkg/hyperast/match"
	"github.com/veridian-labs/hyperdiff/pkg/hyperast/store"
	"github.com/veridian-labs/hyperdiff/pkg/hyperast/view"
)

// Result is one diff run's output: the final mapping between the source and
// destination views and the edit script transforming one into the other.
//
// On a Cancelled error, Ops is nil and Mapping holds every pair linked
// before cancellation was observed, including any pairs the interrupted
// matcher phase had already added; those are not rolled back.
type Result struct {
	RunID   string
	SrcView *view.View
	DstView *view.View
	Mapping *mapping.Mapping
	Ops     []editscript.Operation
	Stats   Stats
}

// Stats reports a diff run's per-phase contributions and edit-script shape.
// It is always populated, independent of whether a meter was configured.
type Stats struct {
	RunID     string
	Phases    []match.Stats
	Mapped    int
	OpsByKind map[string]int
	Duration  time.Duration
}

// Diff decompresses srcRoot and dstRoot, runs the greedy subtree, bottom-up
// dice-coefficient, and hybrid last-chance matcher phases in that fixed
// order, then generates the Chawathe-style edit script from the resulting
// mapping.
//
// When srcRoot equals dstRoot the two views are the identical cached
// object, the mapping is the identity and the edit script is empty: nodes
// the matcher phases leave unmapped (a root shallower than opts.MinHeight)
// are linked to themselves before the script is generated.
func (e *Engine) Diff(ctx context.Context, srcRoot, dstRoot store.NodeID, opts match.Options) (Result, error) {
	runID := uuid.NewString()

	ctx, span := e.tracer.Start(ctx, "hyperdiff.diff", oteltrace.WithAttributes(
		attribute.String("hyperdiff.run_id", runID),
	))
	defer span.End()

	start := time.Now()

	sv, err := e.decompress(ctx, srcRoot, "src")
	if err != nil {
		return Result{}, e.fail(span, KindInvalidRoot, fmt.Errorf("%w: %w", ErrInvalidRoot, err))
	}

	dv, err := e.decompress(ctx, dstRoot, "dst")
	if err != nil {
		return Result{}, e.fail(span, KindInvalidRoot, fmt.Errorf("%w: %w", ErrInvalidRoot, err))
	}

	m := mapping.New(sv.Len(), dv.Len())

	pipeline := match.Pipeline()
	phaseStats := make([]match.Stats, 0, len(pipeline))

	for _, matcher := range pipeline {
		stats, runErr := matcher.Run(ctx, sv, dv, m, opts)
		phaseStats = append(phaseStats, stats)

		e.phases.RecordPhase(ctx, stats.Phase, stats.Mapped, stats.Duration)
		e.logger.DebugContext(ctx, "matcher phase complete",
			"run_id", runID, "phase", stats.Phase, "mapped", stats.Mapped, "duration", stats.Duration)

		if runErr != nil {
			return e.abort(ctx, span, runID, sv, dv, m, phaseStats, start, runErr)
		}
	}

	if srcRoot == dstRoot {
		for uid := view.UID(0); int(uid) < sv.Len(); uid++ {
			if !m.IsSrcMapped(uid) && !m.IsDstMapped(uid) {
				_ = m.Link(uid, uid)
			}
		}
	}

	ops, err := editscript.Generate(ctx, sv, dv, m)
	if err != nil {
		return e.abort(ctx, span, runID, sv, dv, m, phaseStats, start, err)
	}

	opsByKind := make(map[string]int, 4)

	for _, op := range ops {
		kind := op.Kind.String()
		opsByKind[kind]++
		e.phases.RecordOp(ctx, kind)
	}

	stats := Stats{
		RunID:     runID,
		Phases:    phaseStats,
		Mapped:    m.Len(),
		OpsByKind: opsByKind,
		Duration:  time.Since(start),
	}

	e.logger.InfoContext(ctx, "diff complete", "run_id", runID, "mapped", m.Len(), "ops", len(ops))

	return Result{
		RunID:   runID,
		SrcView: sv,
		DstView: dv,
		Mapping: m,
		Ops:     ops,
		Stats:   stats,
	}, nil
}

// abort turns a mid-pipeline failure into the appropriate tagged Error.
// Cancellation returns the partial mapping completed so far; an already-
// mapped node is a matcher bug and aborts with no partial result, since the
// mapping invariant (injectivity) may already be violated by the time it is
// detected.
func (e *Engine) abort(
	ctx context.Context,
	span oteltrace.Span,
	runID string,
	sv, dv *view.View,
	m *mapping.Mapping,
	phaseStats []match.Stats,
	start time.Time,
	cause error,
) (Result, error) {
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		e.logger.WarnContext(ctx, "diff cancelled", "run_id", runID, "mapped", m.Len())

		partial := Result{
			RunID:   runID,
			SrcView: sv,
			DstView: dv,
			Mapping: m,
			Stats: Stats{
				RunID:    runID,
				Phases:   phaseStats,
				Mapped:   m.Len(),
				Duration: time.Since(start),
			},
		}

		return partial, e.fail(span, KindCancelled, fmt.Errorf("%w: %w", ErrCancelled, cause))
	}

	if errors.Is(cause, mapping.ErrAlreadyMapped) {
		return Result{}, e.fail(span, KindAlreadyMapped, fmt.Errorf("%w: %w", ErrAlreadyMapped, cause))
	}

	return Result{}, e.fail(span, KindUnknown, cause)
}

func (e *Engine) fail(span oteltrace.Span, kind Kind, cause error) error {
	err := &Error{Kind: kind, Err: cause}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}
