package pipeline

import "github.com/AntonStoeckl/order-lifecycle-streams/streams"

// Option defines a functional option for configuring Pipeline.
// The observability options are handed down to every producer, consumer group and materializer.
type Option func(*Pipeline) error

// WithLogger sets the logger for the Pipeline and its components.
func WithLogger(logger streams.Logger) Option {
	return func(p *Pipeline) error {
		p.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Pipeline and its components.
func WithContextualLogger(logger streams.ContextualLogger) Option {
	return func(p *Pipeline) error {
		p.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for producers, consumer groups and materializers.
func WithMetrics(collector streams.MetricsCollector) Option {
	return func(p *Pipeline) error {
		p.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for consumer groups.
func WithTracing(collector streams.TracingCollector) Option {
	return func(p *Pipeline) error {
		p.tracingCollector = collector
		return nil
	}
}
