package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

const (
	spanAttrStatus       = "status"
	spanDescriptionError = "operation failed"
)

// TracingCollector implements streams.TracingCollector with an OpenTelemetry tracer.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a collector that starts its spans on tracer.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan starts a span as a child of the span in ctx, if any.
func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, streams.SpanContext) {
	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))

	return spanCtx, &SpanContext{span: span}
}

// FinishSpan adds attrs, sets the status and ends the span.
// Span contexts of other collectors are ignored.
func (t *TracingCollector) FinishSpan(spanCtx streams.SpanContext, status string, attrs map[string]string) {
	span, ok := spanCtx.(*SpanContext)
	if !ok {
		return
	}

	span.span.SetAttributes(toAttributes(attrs)...)
	span.SetStatus(status)
	span.span.End()
}

// SpanContext wraps an OpenTelemetry span.
type SpanContext struct {
	span trace.Span
}

// SetStatus maps streams.StatusSuccess to codes.Ok and streams.StatusError to codes.Error.
// Any other status is kept as a status attribute and leaves the span status unset.
func (s *SpanContext) SetStatus(status string) {
	switch status {
	case streams.StatusSuccess:
		s.span.SetStatus(codes.Ok, "")
	case streams.StatusError:
		s.span.SetStatus(codes.Error, spanDescriptionError)
	default:
		s.span.SetAttributes(attribute.String(spanAttrStatus, status))
	}
}

// AddAttribute adds a string attribute to the span.
func (s *SpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var (
	_ streams.TracingCollector = (*TracingCollector)(nil)
	_ streams.SpanContext      = (*SpanContext)(nil)
)
