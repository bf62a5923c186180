package consumergroup

import (
	"time"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

// Option defines a functional option for configuring Manager.
type Option func(*Manager) error

// WithStartPosition sets where a newly created group starts: streams.StartLatest (default) or
// streams.StartBeginning.
func WithStartPosition(start string) Option {
	return func(m *Manager) error {
		m.start = start
		return nil
	}
}

// WithBatchSize sets the maximum number of entries per log and read.
func WithBatchSize(size int) Option {
	return func(m *Manager) error {
		if size < 1 {
			return ErrInvalidBatchSize
		}

		m.batchSize = size

		return nil
	}
}

// WithBlockTimeout sets how long a read waits for new entries. Zero makes reads return immediately.
func WithBlockTimeout(block time.Duration) Option {
	return func(m *Manager) error {
		m.block = block
		return nil
	}
}

// WithConsumerPrefix sets the prefix of worker identities.
func WithConsumerPrefix(prefix string) Option {
	return func(m *Manager) error {
		if prefix == "" {
			return streams.ErrEmptyConsumerName
		}

		m.consumerPrefix = prefix

		return nil
	}
}

// WithConsumerOffset shifts worker numbering so several processes can pick distinct identities.
func WithConsumerOffset(offset int) Option {
	return func(m *Manager) error {
		m.consumerOffset = offset
		return nil
	}
}

// WithBackoff sets the bounds of the exponential backoff between failed reads.
func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(m *Manager) error {
		if initial <= 0 || maxInterval < initial {
			return ErrInvalidBackoff
		}

		m.initialBackoff = initial
		m.maxBackoff = maxInterval

		return nil
	}
}

// WithLogger sets the logger for the Manager.
//
// Debug level: existing groups, empty reads
// Info level: group creation summary, worker start and stop, end of pending recovery
// Error level: failed reads, processing, and acknowledgments.
func WithLogger(logger streams.Logger) Option {
	return func(m *Manager) error {
		m.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger; records then carry trace correlation from ctx.
func WithContextualLogger(logger streams.ContextualLogger) Option {
	return func(m *Manager) error {
		m.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for processed, failed, and read metrics.
func WithMetrics(collector streams.MetricsCollector) Option {
	return func(m *Manager) error {
		m.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector; every processed entry gets its own span.
func WithTracing(collector streams.TracingCollector) Option {
	return func(m *Manager) error {
		m.tracingCollector = collector
		return nil
	}
}
