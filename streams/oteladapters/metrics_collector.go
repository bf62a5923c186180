package oteladapters

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

const (
	descriptionDuration = "Order pipeline operation duration"
	descriptionCounter  = "Order pipeline operation count"
	descriptionValue    = "Order pipeline current value"
	unitSeconds         = "s"
)

// MetricsCollector implements streams.ContextualMetricsCollector with an OpenTelemetry meter.
// Instruments are created lazily on first use and cached by metric name.
// Creating an instrument fails only for invalid names; such records are dropped.
type MetricsCollector struct {
	meter metric.Meter

	mu         sync.Mutex
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
	gauges     map[string]metric.Float64Gauge
}

// NewMetricsCollector creates a collector that registers its instruments on meter.
func NewMetricsCollector(meter metric.Meter) *MetricsCollector {
	return &MetricsCollector{
		meter:      meter,
		histograms: make(map[string]metric.Float64Histogram),
		counters:   make(map[string]metric.Int64Counter),
		gauges:     make(map[string]metric.Float64Gauge),
	}
}

// RecordDuration records duration in seconds on the histogram named metric.
func (c *MetricsCollector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	c.RecordDurationContext(context.Background(), metric, duration, labels)
}

// RecordDurationContext is RecordDuration with exemplar correlation from ctx.
func (c *MetricsCollector) RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string) {
	histogram, ok := c.histogram(metric)
	if !ok {
		return
	}

	histogram.Record(ctx, duration.Seconds(), withLabels(labels))
}

// IncrementCounter adds one to the counter named metric.
func (c *MetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	c.IncrementCounterContext(context.Background(), metric, labels)
}

// IncrementCounterContext is IncrementCounter with exemplar correlation from ctx.
func (c *MetricsCollector) IncrementCounterContext(ctx context.Context, metric string, labels map[string]string) {
	counter, ok := c.counter(metric)
	if !ok {
		return
	}

	counter.Add(ctx, 1, withLabels(labels))
}

// RecordValue sets the gauge named metric.
func (c *MetricsCollector) RecordValue(metric string, value float64, labels map[string]string) {
	c.RecordValueContext(context.Background(), metric, value, labels)
}

// RecordValueContext is RecordValue with exemplar correlation from ctx.
func (c *MetricsCollector) RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string) {
	gauge, ok := c.gauge(metric)
	if !ok {
		return
	}

	gauge.Record(ctx, value, withLabels(labels))
}

func (c *MetricsCollector) histogram(name string) (metric.Float64Histogram, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if histogram, ok := c.histograms[name]; ok {
		return histogram, true
	}

	histogram, err := c.meter.Float64Histogram(
		name,
		metric.WithDescription(descriptionDuration),
		metric.WithUnit(unitSeconds),
	)
	if err != nil {
		return nil, false
	}

	c.histograms[name] = histogram

	return histogram, true
}

func (c *MetricsCollector) counter(name string) (metric.Int64Counter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, ok := c.counters[name]; ok {
		return counter, true
	}

	counter, err := c.meter.Int64Counter(name, metric.WithDescription(descriptionCounter))
	if err != nil {
		return nil, false
	}

	c.counters[name] = counter

	return counter, true
}

func (c *MetricsCollector) gauge(name string) (metric.Float64Gauge, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gauge, ok := c.gauges[name]; ok {
		return gauge, true
	}

	gauge, err := c.meter.Float64Gauge(name, metric.WithDescription(descriptionValue))
	if err != nil {
		return nil, false
	}

	c.gauges[name] = gauge

	return gauge, true
}

// withLabels turns the label map into a measurement option.
func withLabels(labels map[string]string) metric.MeasurementOption {
	return metric.WithAttributes(toAttributes(labels)...)
}

func toAttributes(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for key, value := range labels {
		attrs = append(attrs, attribute.String(key, value))
	}

	return attrs
}

var _ streams.ContextualMetricsCollector = (*MetricsCollector)(nil)
