package materializer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

// Operations of control logs. The operation of a log is the last ":" segment of its name.
const (
	OperationReplace = "replace"
	OperationDelete  = "delete"
)

// Fields of a control entry that address the mutation target. All other fields form the payload.
const (
	FieldTargetKey  = "jsonKeyName"
	FieldTargetPath = "pathToUse"
)

var (
	// ErrUnknownOperation is returned for control logs whose name ends in neither replace nor delete.
	ErrUnknownOperation = errors.New("unknown document mutation operation")

	// ErrMissingTargetKey is returned for control entries without a target document key.
	ErrMissingTargetKey = errors.New("control entry has no target document key")

	// ErrMissingTargetPath is returned for control entries without a target path.
	ErrMissingTargetPath = errors.New("control entry has no target path")
)

// ControlTag is the hash tag shared by all control logs, so one consumer group read can span them
// on a partitioned store.
const ControlTag = "{ctl}"

// ControlLogName returns "<prefix>{ctl}:<operation>".
func ControlLogName(prefix, operation string) string {
	return prefix + ControlTag + ":" + operation
}

// OperationOf returns the lowercased last ":" segment of a control log name.
func OperationOf(logName string) string {
	if i := strings.LastIndexByte(logName, ':'); i >= 0 {
		logName = logName[i+1:]
	}

	return strings.ToLower(logName)
}

// Mutation is one decoded control entry.
type Mutation struct {
	Operation   string
	DocumentKey string
	Path        streams.Path
	Payload     map[string]string
}

// ParseMutation decodes a control entry read from the named control log.
// Target field names are matched ignoring case.
func ParseMutation(logName string, entry streams.Entry) (Mutation, error) {
	mutation := Mutation{Operation: OperationOf(logName), Payload: make(map[string]string, len(entry.Fields))}

	if mutation.Operation != OperationReplace && mutation.Operation != OperationDelete {
		return Mutation{}, errors.Join(ErrUnknownOperation, fmt.Errorf("log %q", logName))
	}

	rawPath := ""
	for name, value := range entry.Fields {
		switch {
		case strings.EqualFold(name, FieldTargetKey):
			mutation.DocumentKey = value
		case strings.EqualFold(name, FieldTargetPath):
			rawPath = value
		default:
			mutation.Payload[name] = value
		}
	}

	if mutation.DocumentKey == "" {
		return Mutation{}, ErrMissingTargetKey
	}

	if rawPath == "" {
		return Mutation{}, ErrMissingTargetPath
	}

	path, err := streams.ParsePath(rawPath)
	if err != nil {
		return Mutation{}, err
	}

	mutation.Path = path

	return mutation, nil
}

// MutationProcessor applies control entries to existing documents.
//
// A control entry whose target document is missing recreates the document from its identity and seeds the stage
// entries with the payload. This happens for delete operations too.
type MutationProcessor struct {
	docs streams.Documents
	settings
}

// NewMutationProcessor creates a MutationProcessor writing into docs.
func NewMutationProcessor(docs streams.Documents, options ...Option) (*MutationProcessor, error) {
	if docs == nil {
		return nil, ErrNilDocuments
	}

	s, err := newSettings(options)
	if err != nil {
		return nil, err
	}

	return &MutationProcessor{docs: docs, settings: s}, nil
}

// Process implements consumergroup.Processor.
func (p *MutationProcessor) Process(ctx context.Context, log string, entry streams.Entry) error {
	start := time.Now()

	mutation, err := ParseMutation(log, entry)
	if err != nil {
		p.fail(ctx, OperationOf(log), log, logMsgMutationRejected, err, start, logAttrLog, log, logAttrEntryID, entry.ID)
		return err
	}

	operation, err := p.Apply(ctx, mutation)
	if err != nil {
		p.fail(
			ctx,
			operation,
			log,
			logMsgMutationFailed,
			err,
			start,
			logAttrKey, mutation.DocumentKey,
			logAttrPath, mutation.Path.String(),
			logAttrEntryID, entry.ID,
		)

		return err
	}

	p.succeed(
		ctx,
		operation,
		log,
		logMsgMutationApplied,
		start,
		logAttrKey, mutation.DocumentKey,
		logAttrPath, mutation.Path.String(),
		logAttrEntryID, entry.ID,
	)

	return nil
}

// Apply executes the mutation and returns the operation that was performed, which is the reseed
// operation when the document was missing.
func (p *MutationProcessor) Apply(ctx context.Context, mutation Mutation) (string, error) {
	payload, err := p.schema.project(mutation.Payload, nil)
	if err != nil {
		return mutation.Operation, err
	}

	exists, err := p.docs.DocumentExists(ctx, mutation.DocumentKey)
	if err != nil {
		return mutation.Operation, err
	}

	if !exists {
		logName := p.layout.logNameOf(mutation.DocumentKey)
		return operationReseed, seed(ctx, p.docs, p.layout, mutation.DocumentKey, logName, payload)
	}

	switch mutation.Operation {
	case OperationReplace:
		return mutation.Operation, p.docs.SetAt(ctx, mutation.DocumentKey, mutation.Path, payload)
	case OperationDelete:
		return mutation.Operation, p.docs.DeleteAt(ctx, mutation.DocumentKey, mutation.Path)
	default:
		return mutation.Operation, ErrUnknownOperation
	}
}
