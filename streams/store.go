package streams

import "context"

// LogClient is the append-only log capability with consumer groups.
type LogClient interface {
	// Append adds an entry to the log, creating the log if needed, and returns the assigned id.
	Append(ctx context.Context, log string, fields map[string]string) (string, error)

	// CreateGroup creates a consumer group on the log, creating the log if needed.
	// It returns ErrGroupExists when the group is already present.
	CreateGroup(ctx context.Context, log, group, start string) error

	// ReadGroup delivers up to args.Count entries per log to the consumer.
	// Entries read with CursorNew become pending for that consumer until acknowledged.
	ReadGroup(ctx context.Context, args ReadGroupArgs) ([]Batch, error)

	// Ack removes entries from the group's pending list.
	Ack(ctx context.Context, log, group string, ids ...string) error

	// LastEntry returns the newest entry of the log, if any.
	LastEntry(ctx context.Context, log string) (Entry, bool, error)
}

// Counters is the keyed string value capability with atomic increments.
type Counters interface {
	// Get returns the raw value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set overwrites the value.
	Set(ctx context.Context, key, value string) error

	// Incr atomically increments an integer value, treating a missing key as zero.
	// A non-integer value yields ErrNotAnInteger.
	Incr(ctx context.Context, key string) (int64, error)
}

// Documents is the JSON document capability with path-addressed updates.
type Documents interface {
	// DocumentExists reports whether the document is present.
	DocumentExists(ctx context.Context, key string) (bool, error)

	// Document returns the whole document as JSON.
	Document(ctx context.Context, key string) ([]byte, bool, error)

	// SetAt writes valueJSON at the path. Setting the root creates or replaces the document,
	// any other path requires the document and the parent of the path to exist.
	SetAt(ctx context.Context, key string, path Path, valueJSON []byte) error

	// ArrAppend appends valueJSON to the array at the path.
	ArrAppend(ctx context.Context, key string, path Path, valueJSON []byte) error

	// DeleteAt removes the value at the path, or the whole document for the root path.
	// Deleting a missing path is not an error.
	DeleteAt(ctx context.Context, key string, path Path) error
}

// StateAndDocuments bundles the two capabilities that engines without logs can serve.
type StateAndDocuments interface {
	Counters
	Documents
}

// Store bundles all capabilities of a complete engine.
type Store interface {
	LogClient
	Counters
	Documents
}
