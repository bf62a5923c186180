package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/AntonStoeckl/order-lifecycle-streams/config"
	"github.com/AntonStoeckl/order-lifecycle-streams/pipeline"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams/oteladapters"
)

// ErrExporterFailed wraps failures while creating the OTLP exporters.
var ErrExporterFailed = errors.New("creating the OTLP exporter failed")

// observability owns the OpenTelemetry providers of one run. Its zero value is disabled.
// Metric totals are read once at shutdown and logged. With an OTLP endpoint, spans are batched and
// metrics pushed periodically to the collector as well.
type observability struct {
	reader           *sdkmetric.ManualReader
	meterProvider    *sdkmetric.MeterProvider
	tracerProvider   *sdktrace.TracerProvider
	metricsCollector *oteladapters.MetricsCollector
	tracingCollector *oteladapters.TracingCollector
	contextualLogger *oteladapters.SlogBridgeLogger
}

const (
	serviceVersion = "dev"
	exportInterval = 5 * time.Second
)

func newObservability(ctx context.Context, cfg config.Config) (*observability, error) {
	if !cfg.Observability {
		return &observability{}, nil
	}

	res := serviceResource()
	reader := sdkmetric.NewManualReader()
	meterOptions := []sdkmetric.Option{sdkmetric.WithReader(reader), sdkmetric.WithResource(res)}
	tracerOptions := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if cfg.OTLPEndpoint != "" {
		traceExporter, metricExporter, err := newExporters(ctx, cfg.OTLPEndpoint, cfg.OTLPInsecure)
		if err != nil {
			return nil, err
		}

		tracerOptions = append(tracerOptions, sdktrace.WithBatcher(traceExporter))
		meterOptions = append(meterOptions, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(exportInterval)),
		))
	}

	meterProvider := sdkmetric.NewMeterProvider(meterOptions...)
	tracerProvider := sdktrace.NewTracerProvider(tracerOptions...)

	otel.SetMeterProvider(meterProvider)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return &observability{
		reader:           reader,
		meterProvider:    meterProvider,
		tracerProvider:   tracerProvider,
		metricsCollector: oteladapters.NewMetricsCollector(otel.Meter(commandName)),
		tracingCollector: oteladapters.NewTracingCollector(otel.Tracer(commandName)),
		contextualLogger: oteladapters.NewSlogBridgeLogger(commandName),
	}, nil
}

// newExporters creates the gRPC span and metric exporters. The connection is established lazily.
func newExporters(ctx context.Context, endpoint string, insecure bool) (*otlptrace.Exporter, *otlpmetricgrpc.Exporter, error) {
	traceOptions := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	metricOptions := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(endpoint)}

	if insecure {
		traceOptions = append(traceOptions, otlptracegrpc.WithInsecure())
		metricOptions = append(metricOptions, otlpmetricgrpc.WithInsecure())
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOptions...)
	if err != nil {
		return nil, nil, errors.Join(ErrExporterFailed, err)
	}

	metricExporter, err := otlpmetricgrpc.New(ctx, metricOptions...)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, nil, errors.Join(ErrExporterFailed, err)
	}

	return traceExporter, metricExporter, nil
}

func serviceResource() *resource.Resource {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(commandName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return resource.Default()
	}

	return res
}

// metrics returns the collector as an interface value that is nil when disabled.
func (o *observability) metrics() streams.MetricsCollector {
	if o.metricsCollector == nil {
		return nil
	}

	return o.metricsCollector
}

func (o *observability) pipelineOptions(logger *slog.Logger) []pipeline.Option {
	options := []pipeline.Option{pipeline.WithLogger(logger)}

	if o.metricsCollector != nil {
		options = append(options, pipeline.WithMetrics(o.metricsCollector))
	}

	if o.tracingCollector != nil {
		options = append(options, pipeline.WithTracing(o.tracingCollector))
	}

	if o.contextualLogger != nil {
		options = append(options, pipeline.WithContextualLogger(o.contextualLogger))
	}

	return options
}

// shutdown logs the counter totals and flushes the providers.
func (o *observability) shutdown(ctx context.Context, logger *slog.Logger) {
	if o.reader == nil {
		return
	}

	var collected metricdata.ResourceMetrics
	if err := o.reader.Collect(ctx, &collected); err != nil {
		logger.Error("collecting metrics failed", "error", err.Error())
	}

	for _, scope := range collected.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}

			var total int64
			for _, point := range sum.DataPoints {
				total += point.Value
			}

			logger.Info("metric total", "metric", m.Name, "value", total)
		}
	}

	if err := o.tracerProvider.Shutdown(ctx); err != nil {
		logger.Error("shutting down tracer provider failed", "error", err.Error())
	}

	if err := o.meterProvider.Shutdown(ctx); err != nil {
		logger.Error("shutting down meter provider failed", "error", err.Error())
	}
}
