// Package diff orchestrates a full tree diff: decompressing the source and
// destination node-store subtrees into views, running the matcher pipeline
// over them, and generating the resulting edit script.
package diff

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/veridian-labs/hyperdiff/pkg/alg/lru"
	"github.com/veridian-labs/hyperdiff/pkg/hyperast/store"
	"github.com/veridian-labs/hyperdiff/pkg/hyperast/view"
	"github.com/veridian-labs/hyperdiff/pkg/observability"
)

const defaultViewCacheMaxEntries = 64

const tracerName = "github.com/veridian-labs/hyperdiff/pkg/hyperast/diff"

// Config configures an Engine. Every field is optional: a zero Config
// yields an Engine that logs to slog.Default and traces and records metrics
// through the global otel tracer and meter providers, which are no-ops
// unless a provider has been installed (observability.Init installs both).
type Config struct {
	Tracer              trace.Tracer
	Meter               metric.Meter
	Logger              *slog.Logger
	ViewCacheMaxEntries int
}

// Engine runs diffs against one shared node Store, caching decompressed
// views by root so repeated runs over the same subtree (common when diffing
// a sequence of commits against a shared ancestor) skip re-decompression.
type Engine struct {
	store  *store.Store
	views  *lru.Cache[store.NodeID, *view.View]
	tracer trace.Tracer
	logger *slog.Logger
	phases *observability.PhaseMetrics
	cache  *observability.CacheMetrics
}

// FromProviders builds a Config from an observability.Providers bundle, the
// common case of wiring an Engine to a process-wide Init call.
func FromProviders(p observability.Providers, viewCacheMaxEntries int) Config {
	return Config{
		Tracer:              p.Tracer,
		Meter:               p.Meter,
		Logger:              p.Logger,
		ViewCacheMaxEntries: viewCacheMaxEntries,
	}
}

// New creates an Engine bound to s.
func New(s *store.Store, cfg Config) (*Engine, error) {
	maxEntries := cfg.ViewCacheMaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultViewCacheMaxEntries
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(tracerName)
	}

	phases, err := observability.NewPhaseMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("hyperast/diff: phase metrics: %w", err)
	}

	cacheMetrics, err := observability.NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("hyperast/diff: cache metrics: %w", err)
	}

	return &Engine{
		store:  s,
		views:  lru.New[store.NodeID, *view.View](lru.WithMaxEntries[store.NodeID, *view.View](maxEntries)),
		tracer: tracer,
		logger: logger,
		phases: phases,
		cache:  cacheMetrics,
	}, nil
}

// decompress returns the cached view for root if present, otherwise
// decompresses it and stores the result keyed by root. side is "src" or
// "dst", recorded against the view-cache hit/miss metrics.
func (e *Engine) decompress(ctx context.Context, root store.NodeID, side string) (*view.View, error) {
	if cached, ok := e.views.Get(root); ok {
		e.cache.RecordView(ctx, side, true)
		return cached, nil
	}

	e.cache.RecordView(ctx, side, false)

	v, err := view.Decompress(e.store, root)
	if err != nil {
		return nil, err
	}

	e.views.Put(root, v)

	return v, nil
}
