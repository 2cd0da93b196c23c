package observability

import (
	"context"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ProbeBuildResource exposes buildResource for white-box testing.
func ProbeBuildResource(cfg Config) (*resource.Resource, error) {
	return buildResource(cfg)
}

// ProbeSamplerSpan reports whether a root span would be sampled under cfg's
// selected sampler, exposing selectSampler for white-box testing.
func ProbeSamplerSpan(cfg Config) bool {
	sampler := selectSampler(cfg)

	result := sampler.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: trace.ContextWithSpanContext(
			context.Background(), trace.SpanContext{},
		),
		TraceID: [16]byte{1},
		Name:    "probe",
		Kind:    trace.SpanKindInternal,
	})

	return result.Decision == sdktrace.RecordAndSample
}
