package materializer

import (
	"errors"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

// ErrEmptyDocumentPrefix is returned for an empty document key prefix.
var ErrEmptyDocumentPrefix = errors.New("document prefix must not be empty")

type settings struct {
	layout           layout
	schema           Schema
	logger           streams.Logger
	contextualLogger streams.ContextualLogger
	metricsCollector streams.MetricsCollector
}

func newSettings(options []Option) (settings, error) {
	s := settings{
		layout: layout{prefix: DefaultDocumentPrefix, identity: CustomerIdentity},
		schema: DefaultSchema(),
	}

	for _, option := range options {
		if err := option(&s); err != nil {
			return settings{}, err
		}
	}

	return s, nil
}

// Option configures a Materializer or a MutationProcessor.
type Option func(*settings) error

// WithDocumentPrefix sets the prefix of document keys.
func WithDocumentPrefix(prefix string) Option {
	return func(s *settings) error {
		if prefix == "" {
			return ErrEmptyDocumentPrefix
		}

		s.layout.prefix = prefix

		return nil
	}
}

// WithIdentity selects the identity field written into new documents.
func WithIdentity(mode IdentityMode) Option {
	return func(s *settings) error {
		s.layout.identity = mode
		return nil
	}
}

// WithSchema replaces the field kind lookup.
func WithSchema(schema Schema) Option {
	return func(s *settings) error {
		s.schema = schema
		return nil
	}
}

// WithLogger sets the logger.
//
// Debug level: every applied entry with its duration
// Error level: failed store operations and rejected entries.
func WithLogger(logger streams.Logger) Option {
	return func(s *settings) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger.
func WithContextualLogger(logger streams.ContextualLogger) Option {
	return func(s *settings) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(collector streams.MetricsCollector) Option {
	return func(s *settings) error {
		s.metricsCollector = collector
		return nil
	}
}
