// Package materializer folds log entries into per-entity JSON documents.
//
// A document is created on the first entry of a log, holding only the identity field, and every entry is then
// appended to its "stage-entries" array. A MutationProcessor applies replace and delete operations to documents
// from control logs. Both types process one delivered entry at a time and plug into a consumergroup.Manager.
//
// Reads and writes of one document are not isolated: two writers on the same key can interleave between the
// existence check and the write.
package materializer

import (
	"context"
	"errors"
	"time"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

// ErrNilDocuments is returned when a processor is built without a document store.
var ErrNilDocuments = errors.New("nil document store supplied")

// Materializer appends lifecycle entries to the document of their log.
//
// Applying the same entry twice appends it twice. Redelivered entries are not deduplicated.
type Materializer struct {
	docs streams.Documents
	settings
}

// NewMaterializer creates a Materializer writing into docs.
func NewMaterializer(docs streams.Documents, options ...Option) (*Materializer, error) {
	if docs == nil {
		return nil, ErrNilDocuments
	}

	s, err := newSettings(options)
	if err != nil {
		return nil, err
	}

	return &Materializer{docs: docs, settings: s}, nil
}

// DocumentKey returns the key of the document materialized from the log.
func (m *Materializer) DocumentKey(logName string) string {
	return m.layout.documentKey(logName)
}

// Process implements consumergroup.Processor.
func (m *Materializer) Process(ctx context.Context, log string, entry streams.Entry) error {
	return m.Apply(ctx, log, entry)
}

// Apply folds one entry into the document of the log.
func (m *Materializer) Apply(ctx context.Context, logName string, entry streams.Entry) error {
	start := time.Now()
	key := m.DocumentKey(logName)

	stageEntry, err := m.schema.project(entry.Fields, map[string]string{StageEventIDField: entry.ID})
	if err != nil {
		m.fail(ctx, operationApply, logName, logMsgEntryRejected, err, start, logAttrLog, logName, logAttrEntryID, entry.ID)
		return err
	}

	exists, err := m.docs.DocumentExists(ctx, key)
	if err != nil {
		m.fail(ctx, operationApply, logName, logMsgApplyFailed, err, start, logAttrKey, key, logAttrEntryID, entry.ID)
		return err
	}

	operation := operationAppend
	if exists {
		err = m.docs.ArrAppend(ctx, key, StageEntriesPath(), stageEntry)
	} else {
		operation = operationCreate
		err = seed(ctx, m.docs, m.layout, key, logName, stageEntry)
	}

	if err != nil {
		m.fail(ctx, operation, logName, logMsgApplyFailed, err, start, logAttrKey, key, logAttrEntryID, entry.ID)
		return err
	}

	m.succeed(ctx, operation, logName, logMsgEntryApplied, start, logAttrKey, key, logAttrEntryID, entry.ID)

	return nil
}

// seed writes a fresh document holding the identity and a single stage entry in one root write,
// so a failed write never leaves a document without its stage entries.
func seed(ctx context.Context, docs streams.Documents, l layout, key, logName string, stageEntry []byte) error {
	doc, err := l.seedDocument(logName, stageEntry)
	if err != nil {
		return err
	}

	return docs.SetAt(ctx, key, streams.RootPath(), doc)
}
