package consumergroup

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

type worker struct {
	m          *Manager
	consumer   string
	processor  Processor
	cursors    []streams.Cursor
	recovering bool
	backoff    *backoff.ExponentialBackOff
}

// Run is the read loop of one consumer identity. It returns nil once ctx is cancelled.
func (m *Manager) Run(ctx context.Context, consumer string, processor Processor) error {
	if consumer == "" {
		return streams.ErrEmptyConsumerName
	}

	if processor == nil {
		return ErrNilProcessor
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.initialBackoff
	bo.MaxInterval = m.maxBackoff
	bo.Reset()

	w := &worker{
		m:          m,
		consumer:   consumer,
		processor:  processor,
		cursors:    streams.NewCursors(m.logNames, streams.CursorPending),
		recovering: true,
		backoff:    bo,
	}

	m.logInfo(ctx, logMsgWorkerStarted, logAttrConsumer, consumer, logAttrGroup, m.group, logAttrLogCount, len(m.logNames))
	defer m.logInfo(ctx, logMsgWorkerStopped, logAttrConsumer, consumer, logAttrGroup, m.group)

	for ctx.Err() == nil {
		w.iterate(ctx)
	}

	return nil
}

func (w *worker) iterate(ctx context.Context) {
	block := w.m.block
	if w.recovering {
		block = 0
	}

	start := time.Now()
	batches, err := w.m.logs.ReadGroup(ctx, streams.ReadGroupArgs{
		Group:    w.m.group,
		Consumer: w.consumer,
		Cursors:  w.cursors,
		Count:    w.m.batchSize,
		Block:    block,
	})
	w.m.recordRead(ctx, w.consumer, err, time.Since(start))

	if err != nil {
		if ctx.Err() != nil {
			return
		}

		wait := w.backoff.NextBackOff()
		w.m.logError(ctx, logMsgReadFailed, err, logAttrConsumer, w.consumer, logAttrGroup, w.m.group, logAttrRetryIn, wait.String())
		sleep(ctx, wait)

		return
	}

	w.backoff.Reset()

	if countEntries(batches) == 0 {
		if w.recovering {
			w.finishRecovery(ctx)
			return
		}

		w.m.logDebug(ctx, logMsgEmptyRead, logAttrConsumer, w.consumer, logAttrGroup, w.m.group)

		return
	}

	if w.recovering {
		w.advanceCursors(batches)
	}

	for _, batch := range batches {
		for _, entry := range batch.Entries {
			if ctx.Err() != nil {
				return
			}

			w.m.handle(ctx, w.consumer, batch.Log, entry, w.processor)
		}
	}
}

func (w *worker) finishRecovery(ctx context.Context) {
	w.recovering = false
	w.cursors = streams.NewCursors(w.m.logNames, streams.CursorNew)
	w.m.logInfo(ctx, logMsgRecoveryFinished, logAttrConsumer, w.consumer, logAttrGroup, w.m.group)
}

// advanceCursors moves each replayed log past its last returned entry, so failures are not replayed twice.
func (w *worker) advanceCursors(batches []streams.Batch) {
	last := make(map[string]string, len(batches))
	for _, batch := range batches {
		if n := len(batch.Entries); n > 0 {
			last[batch.Log] = batch.Entries[n-1].ID
		}
	}

	for i, cursor := range w.cursors {
		if id, ok := last[cursor.Log]; ok {
			w.cursors[i].After = id
		}
	}
}

// handle processes one entry and acknowledges it on success. The ack outlives cancellation of ctx,
// so a processed entry is not replayed just because shutdown began.
func (m *Manager) handle(ctx context.Context, consumer, log string, entry streams.Entry, processor Processor) {
	spanCtx, span := m.startEntrySpan(ctx, consumer, log, entry)
	start := time.Now()

	if err := processor.Process(spanCtx, log, entry); err != nil {
		m.logError(spanCtx, logMsgProcessFailed, err, logAttrConsumer, consumer, logAttrLog, log, logAttrEntryID, entry.ID)
		m.recordEntry(spanCtx, metricEntriesFailed, log, time.Since(start))
		m.finishSpan(span, streams.StatusError, map[string]string{spanAttrErrorType: errorTypeProcess})

		return
	}

	if err := m.logs.Ack(context.WithoutCancel(spanCtx), log, m.group, entry.ID); err != nil {
		m.logError(spanCtx, logMsgAckFailed, err, logAttrConsumer, consumer, logAttrLog, log, logAttrEntryID, entry.ID)
		m.recordEntry(spanCtx, metricAckErrors, log, time.Since(start))
		m.finishSpan(span, streams.StatusError, map[string]string{spanAttrErrorType: errorTypeAck})

		return
	}

	m.recordEntry(spanCtx, metricEntriesProcessed, log, time.Since(start))
	m.finishSpan(span, streams.StatusSuccess, nil)
}

func countEntries(batches []streams.Batch) int {
	n := 0
	for _, batch := range batches {
		n += len(batch.Entries)
	}

	return n
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
