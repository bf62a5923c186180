package helper

import (
	"context"
	"maps"
	"sync"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

// SpySpanContext records status and attributes set on a span.
type SpySpanContext struct {
	name       string
	status     string
	attributes map[string]string
	mu         sync.Mutex
}

// SetStatus implements streams.SpanContext.
func (c *SpySpanContext) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

// AddAttribute implements streams.SpanContext.
func (c *SpySpanContext) AddAttribute(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attributes[key] = value
}

// SpySpanRecord is a finished span.
type SpySpanRecord struct {
	Name       string
	Status     string
	StartAttrs map[string]string
	EndAttrs   map[string]string
	SpanAttrs  map[string]string
}

// TracingCollectorSpy captures spans for testing.
type TracingCollectorSpy struct {
	records []SpySpanRecord
	starts  map[*SpySpanContext]map[string]string
	mu      sync.Mutex
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{starts: make(map[*SpySpanContext]map[string]string)}
}

// StartSpan implements streams.TracingCollector.
func (s *TracingCollectorSpy) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, streams.SpanContext) {
	span := &SpySpanContext{name: name, attributes: make(map[string]string)}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts[span] = maps.Clone(attrs)

	return ctx, span
}

// FinishSpan implements streams.TracingCollector.
func (s *TracingCollectorSpy) FinishSpan(spanCtx streams.SpanContext, status string, attrs map[string]string) {
	span, ok := spanCtx.(*SpySpanContext)
	if !ok {
		return
	}

	span.mu.Lock()
	spanAttrs := maps.Clone(span.attributes)
	span.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, SpySpanRecord{
		Name:       span.name,
		Status:     status,
		StartAttrs: s.starts[span],
		EndAttrs:   maps.Clone(attrs),
		SpanAttrs:  spanAttrs,
	})
	delete(s.starts, span)
}

// GetSpanRecords returns a copy of the finished spans.
func (s *TracingCollectorSpy) GetSpanRecords() []SpySpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpySpanRecord(nil), s.records...)
}

// CountSpans counts finished spans with the name and status.
func (s *TracingCollectorSpy) CountSpans(name, status string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, record := range s.records {
		if record.Name == name && record.Status == status {
			count++
		}
	}

	return count
}
