package consumergroup

import (
	"context"
	"time"

	"github.com/AntonStoeckl/order-lifecycle-streams/routing"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

const (
	logMsgGroupExists       = "consumer group already exists"
	logMsgCreateGroupFailed = "creating consumer group failed"
	logMsgGroupsEnsured     = "consumer groups ensured"
	logMsgWorkerStarted     = "consumer worker started"
	logMsgWorkerStopped     = "consumer worker stopped"
	logMsgWorkerFailed      = "consumer worker failed"
	logMsgReadFailed        = "reading from consumer group failed"
	logMsgEmptyRead         = "consumer group read returned nothing"
	logMsgRecoveryFinished  = "pending entry recovery finished"
	logMsgProcessFailed     = "processing entry failed, leaving it pending"
	logMsgAckFailed         = "acknowledging entry failed"
	logAttrError            = "error"
	logAttrLog              = "log"
	logAttrGroup            = "group"
	logAttrConsumer         = "consumer"
	logAttrEntryID          = "entry_id"
	logAttrLogCount         = "log_count"
	logAttrCreated          = "created"
	logAttrExisting         = "existing"
	logAttrFailed           = "failed"
	logAttrRetryIn          = "retry_in"
	metricEntriesProcessed  = "consumer_entries_processed_total"
	metricEntriesFailed     = "consumer_entries_failed_total"
	metricAckErrors         = "consumer_ack_errors_total"
	metricEntryDuration     = "consumer_entry_duration_seconds"
	metricReadDuration      = "consumer_read_duration_seconds"
	metricReadErrors        = "consumer_read_errors_total"
	spanNameProcessEntry    = "consumergroup.process_entry"
	spanAttrGroup           = "group"
	spanAttrConsumer        = "consumer"
	spanAttrLog             = "log"
	spanAttrEntryID         = "entry_id"
	spanAttrErrorType       = "error_type"
	errorTypeProcess        = "process"
	errorTypeAck            = "ack"
	labelGroup              = "group"
	labelConsumer           = "consumer"
	labelShard              = "shard"
	labelStatus             = "status"
)

func (m *Manager) logDebug(ctx context.Context, msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}

	if m.contextualLogger != nil {
		m.contextualLogger.DebugContext(ctx, msg, args...)
	}
}

func (m *Manager) logInfo(ctx context.Context, msg string, args ...any) {
	if m.logger != nil {
		m.logger.Info(msg, args...)
	}

	if m.contextualLogger != nil {
		m.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (m *Manager) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if m.logger != nil {
		m.logger.Error(msg, allArgs...)
	}

	if m.contextualLogger != nil {
		m.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

func (m *Manager) recordRead(ctx context.Context, consumer string, err error, duration time.Duration) {
	labels := map[string]string{labelGroup: m.group, labelConsumer: consumer, labelStatus: streams.StatusSuccess}
	if err != nil {
		labels[labelStatus] = streams.StatusError
		streams.IncrementCounter(ctx, m.metricsCollector, metricReadErrors, labels)
	}

	streams.RecordDuration(ctx, m.metricsCollector, metricReadDuration, duration, labels)
}

// recordEntry labels by the shard tag of the log so series stay bounded by the shard count.
func (m *Manager) recordEntry(ctx context.Context, metric, log string, duration time.Duration) {
	labels := map[string]string{labelGroup: m.group, labelShard: routing.TagOf(log)}

	streams.IncrementCounter(ctx, m.metricsCollector, metric, labels)
	streams.RecordDuration(ctx, m.metricsCollector, metricEntryDuration, duration, labels)
}

func (m *Manager) startEntrySpan(
	ctx context.Context,
	consumer, log string,
	entry streams.Entry,
) (context.Context, streams.SpanContext) {
	if m.tracingCollector == nil {
		return ctx, nil
	}

	return m.tracingCollector.StartSpan(ctx, spanNameProcessEntry, map[string]string{
		spanAttrGroup:    m.group,
		spanAttrConsumer: consumer,
		spanAttrLog:      log,
		spanAttrEntryID:  entry.ID,
	})
}

func (m *Manager) finishSpan(span streams.SpanContext, status string, attrs map[string]string) {
	if m.tracingCollector == nil || span == nil {
		return
	}

	span.SetStatus(status)
	m.tracingCollector.FinishSpan(span, status, attrs)
}
