package provenance

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// InitTracing installs a global tracer provider for provenance spans and
// returns its shutdown function.
func InitTracing(serviceName string) (func(context.Context) error, error) {
	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// OTelSink emits provenance events as spans on the global tracer provider.
type OTelSink struct {
	tracer trace.Tracer
}

// NewOTelSink creates a tracing sink.
func NewOTelSink() *OTelSink {
	return &OTelSink{tracer: otel.Tracer("memfed/provenance")}
}

// StoreQueried implements Sink.
func (s *OTelSink) StoreQueried(ev StoreEvent) {
	_, span := s.tracer.Start(context.Background(), "recall.store_query",
		trace.WithAttributes(
			attribute.String("request.id", ev.RequestID),
			attribute.String("store.name", ev.Store),
			attribute.String("store.query_kind", ev.QueryKind),
			attribute.Int64("store.latency_ms", ev.LatencyMS),
			attribute.Bool("store.success", ev.Success),
			attribute.Int("store.results", ev.ResultCount),
		),
	)
	span.End()
}

// FusionApplied implements Sink.
func (s *OTelSink) FusionApplied(ev FusionEvent) {
	_, span := s.tracer.Start(context.Background(), "recall.fusion",
		trace.WithAttributes(
			attribute.String("request.id", ev.RequestID),
			attribute.String("fusion.strategy", ev.Strategy),
			attribute.Int("fusion.input", ev.InputCount),
			attribute.Int("fusion.output", ev.OutputCount),
			attribute.Int("fusion.dedup_removed", ev.DedupRemoved),
		),
	)
	span.End()
}
