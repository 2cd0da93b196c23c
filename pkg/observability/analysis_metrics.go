package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricCacheHitsTotal   = "hyperdiff.cache.hits.total"
	metricCacheMissesTotal = "hyperdiff.cache.misses.total"

	attrCache = "cache"
)

// CacheMetrics holds OTel instruments for the decompressed-view cache
// fronting the node store.
type CacheMetrics struct {
	hits   metric.Int64Counter
	misses metric.Int64Counter
}

// NewCacheMetrics creates cache metric instruments from the given meter.
func NewCacheMetrics(mt metric.Meter) (*CacheMetrics, error) {
	hits, err := mt.Int64Counter(metricCacheHitsTotal,
		metric.WithDescription("View cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheHitsTotal, err)
	}

	misses, err := mt.Int64Counter(metricCacheMissesTotal,
		metric.WithDescription("View cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheMissesTotal, err)
	}

	return &CacheMetrics{hits: hits, misses: misses}, nil
}

// RecordView records a single view-cache lookup outcome for the named side
// ("src" or "dst"). Safe to call on a nil receiver (no-op).
func (cm *CacheMetrics) RecordView(ctx context.Context, side string, hit bool) {
	if cm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrCache, side))

	if hit {
		cm.hits.Add(ctx, 1, attrs)
	} else {
		cm.misses.Add(ctx, 1, attrs)
	}
}
