package streams

import "errors"

// ErrGroupExists is returned by CreateGroup when the consumer group already exists on the log.
var ErrGroupExists = errors.New("consumer group already exists")

// ErrNotAnInteger is returned by Incr when the stored value is not an integer.
var ErrNotAnInteger = errors.New("value is not an integer")

// ErrDocumentNotFound is returned by path updates on a missing document.
var ErrDocumentNotFound = errors.New("document not found")

// ErrPathNotFound is returned when the parent of a path, or an array index, does not exist.
var ErrPathNotFound = errors.New("path not found in document")

// ErrPathNotArray is returned by ArrAppend when the value at the path is not an array.
var ErrPathNotArray = errors.New("path does not point at an array")

// ErrInvalidJSON is returned when a value to be written is not valid JSON.
var ErrInvalidJSON = errors.New("value is not valid json")

// ErrInvalidPath is returned by ParsePath for malformed paths.
var ErrInvalidPath = errors.New("invalid json path")

// ErrEmptyLogName is returned when an operation is given an empty log name.
var ErrEmptyLogName = errors.New("empty log name supplied")

// ErrEmptyGroupName is returned when an operation is given an empty consumer group name.
var ErrEmptyGroupName = errors.New("empty consumer group name supplied")

// ErrEmptyConsumerName is returned when a read is issued without consumer identity.
var ErrEmptyConsumerName = errors.New("empty consumer name supplied")

// ErrUnknownGroup is returned when reading from or acknowledging on a group that does not exist.
var ErrUnknownGroup = errors.New("consumer group does not exist")

// ErrAppendFailed wraps transport failures of Append.
var ErrAppendFailed = errors.New("appending log entry failed")

// ErrReadGroupFailed wraps transport failures of ReadGroup.
var ErrReadGroupFailed = errors.New("reading from consumer group failed")

// ErrAckFailed wraps transport failures of Ack.
var ErrAckFailed = errors.New("acknowledging log entries failed")

// ErrCreateGroupFailed wraps failures of CreateGroup other than ErrGroupExists.
var ErrCreateGroupFailed = errors.New("creating consumer group failed")

// ErrCounterFailed wraps transport failures of counter operations.
var ErrCounterFailed = errors.New("counter operation failed")

// ErrDocumentFailed wraps transport failures of document operations.
var ErrDocumentFailed = errors.New("document operation failed")

// ErrReadFailed wraps transport failures of LastEntry.
var ErrReadFailed = errors.New("reading log entries failed")
