package postgresengine

import "github.com/AntonStoeckl/order-lifecycle-streams/streams"

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithCountersTable sets the table holding counters.
func WithCountersTable(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return ErrEmptyTableName
		}

		s.countersTableName = tableName

		return nil
	}
}

// WithDocumentsTable sets the table holding documents.
func WithDocumentsTable(tableName string) Option {
	return func(s *Store) error {
		if tableName == "" {
			return ErrEmptyTableName
		}

		s.documentsTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the Store.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Warn level: Non-critical issues like cleanup failures
// Error level: Failed statements.
func WithLogger(logger streams.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for statement durations and errors.
func WithMetrics(collector streams.MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}
