package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams/oteladapters"
	"github.com/AntonStoeckl/order-lifecycle-streams/testutil/helper"
)

func givenTracingCollector() (*oteladapters.TracingCollector, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	return oteladapters.NewTracingCollector(provider.Tracer("test")), exporter
}

func spanAttribute(span tracetest.SpanStub, key string) (string, bool) {
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			return attr.Value.AsString(), true
		}
	}

	return "", false
}

func Test_TracingCollector_When_Span_Succeeds_It_Exports_Attributes_And_Ok_Status(t *testing.T) {
	// setup
	collector, exporter := givenTracingCollector()

	// act
	_, span := collector.StartSpan(context.Background(), "consumergroup.process_entry", map[string]string{"group": "orders"})
	span.AddAttribute("entry_id", "1-0")
	collector.FinishSpan(span, streams.StatusSuccess, map[string]string{"log": "X:orders:00001{1}"})

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "consumergroup.process_entry", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)

	for key, want := range map[string]string{"group": "orders", "entry_id": "1-0", "log": "X:orders:00001{1}"} {
		got, found := spanAttribute(spans[0], key)
		assert.True(t, found, key)
		assert.Equal(t, want, got, key)
	}
}

func Test_TracingCollector_When_Span_Fails_It_Exports_Error_Status(t *testing.T) {
	// setup
	collector, exporter := givenTracingCollector()

	// act
	_, span := collector.StartSpan(context.Background(), "materializer.apply", nil)
	collector.FinishSpan(span, streams.StatusError, map[string]string{"error_type": "process"})

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func Test_TracingCollector_When_Status_Is_Unknown_It_Keeps_It_As_Attribute(t *testing.T) {
	// setup
	collector, exporter := givenTracingCollector()

	// act
	_, span := collector.StartSpan(context.Background(), "pipeline.run", nil)
	collector.FinishSpan(span, "cancelled", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)

	status, found := spanAttribute(spans[0], "status")
	assert.True(t, found)
	assert.Equal(t, "cancelled", status)
}

func Test_TracingCollector_When_Nested_It_Links_Child_To_Parent(t *testing.T) {
	// setup
	collector, exporter := givenTracingCollector()

	// act
	ctx, parent := collector.StartSpan(context.Background(), "parent", nil)
	_, child := collector.StartSpan(ctx, "child", nil)
	collector.FinishSpan(child, streams.StatusSuccess, nil)
	collector.FinishSpan(parent, streams.StatusSuccess, nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "child", spans[0].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, spans[1].SpanContext.TraceID(), spans[0].SpanContext.TraceID())
}

func Test_TracingCollector_FinishSpan_When_Span_Belongs_To_Another_Collector_It_Ignores_It(t *testing.T) {
	// setup
	collector, exporter := givenTracingCollector()
	_, foreign := helper.NewTracingCollectorSpy().StartSpan(context.Background(), "foreign", nil)

	// act
	collector.FinishSpan(foreign, streams.StatusSuccess, nil)

	// assert
	assert.Empty(t, exporter.GetSpans())
}
