package postgresengine

import (
	"context"
	"math"
	"time"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

const (
	logMsgSQLExecuted     = "executed sql for: "
	logMsgDBQueryFailed   = "database query execution failed"
	logMsgDBExecFailed    = "database statement execution failed"
	logMsgScanRowFailed   = "failed to scan database row"
	logMsgCloseRowsFailed = "failed to close database rows"
	logAttrError          = "error"
	logAttrQuery          = "query"
	logAttrOperation      = "operation"
	logAttrDurationMS     = "duration_ms"
	metricQueryDuration   = "postgres_statement_duration_seconds"
	metricDatabaseErrors  = "postgres_errors_total"
	labelOperation        = "operation"
	labelStatus           = "status"
	operationEnsureSchema = "ensure_schema"
	operationGet          = "get"
	operationSet          = "set"
	operationIncr         = "incr"
	operationExists       = "document_exists"
	operationDocument     = "document"
	operationSetAt        = "set_at"
	operationArrAppend    = "arr_append"
	operationDeleteAt     = "delete_at"
	operationExplain      = "explain_miss"
)

// logQueryWithDuration logs SQL statements with execution time at debug level if the logger is configured.
func (s Store) logQueryWithDuration(query, operation string, duration time.Duration) {
	if s.logger != nil {
		s.logger.Debug(logMsgSQLExecuted+operation, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, query)
	}
}

func (s Store) logError(message string, err error, args ...any) {
	if s.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		s.logger.Error(message, allArgs...)
	}
}

func (s Store) recordOperation(ctx context.Context, operation, status string, duration time.Duration) {
	labels := map[string]string{labelOperation: operation, labelStatus: status}

	streams.RecordDuration(ctx, s.metricsCollector, metricQueryDuration, duration, labels)

	if status == streams.StatusError {
		streams.IncrementCounter(ctx, s.metricsCollector, metricDatabaseErrors, labels)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
