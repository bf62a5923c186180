package materializer

import (
	"context"
	"math"
	"time"

	"github.com/AntonStoeckl/order-lifecycle-streams/routing"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

const (
	logMsgEntryApplied     = "entry materialized"
	logMsgEntryRejected    = "entry rejected"
	logMsgApplyFailed      = "materializing entry failed"
	logMsgMutationApplied  = "document mutation applied"
	logMsgMutationRejected = "document mutation rejected"
	logMsgMutationFailed   = "document mutation failed"
	logAttrError           = "error"
	logAttrLog             = "log"
	logAttrKey             = "document_key"
	logAttrEntryID         = "entry_id"
	logAttrOperation       = "operation"
	logAttrPath            = "path"
	logAttrDurationMS      = "duration_ms"
	metricOperations       = "materializer_operations_total"
	metricErrors           = "materializer_errors_total"
	metricDuration         = "materializer_operation_duration_seconds"
	labelOperation         = "operation"
	labelShard             = "shard"
	labelStatus            = "status"
	operationApply         = "apply"
	operationCreate        = "create"
	operationAppend        = "append"
	operationReseed        = "reseed"
)

func (s *settings) logDebug(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (s *settings) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if s.logger != nil {
		s.logger.Error(msg, allArgs...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

// succeed and fail label metrics by the shard tag of the log, never by the log name.
func (s *settings) succeed(ctx context.Context, operation, log, msg string, start time.Time, args ...any) {
	duration := time.Since(start)
	labels := map[string]string{labelOperation: operation, labelShard: routing.TagOf(log), labelStatus: streams.StatusSuccess}

	streams.IncrementCounter(ctx, s.metricsCollector, metricOperations, labels)
	streams.RecordDuration(ctx, s.metricsCollector, metricDuration, duration, labels)

	s.logDebug(ctx, msg, append(args, logAttrOperation, operation, logAttrDurationMS, toMilliseconds(duration))...)
}

func (s *settings) fail(ctx context.Context, operation, log, msg string, err error, start time.Time, args ...any) {
	labels := map[string]string{labelOperation: operation, labelShard: routing.TagOf(log), labelStatus: streams.StatusError}

	streams.IncrementCounter(ctx, s.metricsCollector, metricErrors, labels)
	streams.RecordDuration(ctx, s.metricsCollector, metricDuration, time.Since(start), labels)

	s.logError(ctx, msg, err, append(args, logAttrOperation, operation)...)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
