package streams

import "time"

const (
	// CursorNew reads entries that were never delivered to any consumer of the group.
	CursorNew = ">"

	// CursorPending reads the calling consumer's own delivered but unacknowledged entries from the start.
	CursorPending = "0"

	// StartLatest creates a consumer group that only sees entries appended after its creation.
	StartLatest = "$"

	// StartBeginning creates a consumer group that sees every entry already in the log.
	StartBeginning = "0"
)

// Entry is a single log entry: a store-assigned, monotonically increasing id and its field map.
type Entry struct {
	ID     string
	Fields map[string]string
}

// Batch groups the entries that one ReadGroup call returned for one log.
type Batch struct {
	Log     string
	Entries []Entry
}

// Cursor names a log and the position to read it from, either CursorNew or an entry id
// after which the consumer's pending entries are returned.
type Cursor struct {
	Log   string
	After string
}

// ReadGroupArgs describes one consumer-group read across many logs.
// A Block of zero or less means the read returns immediately when nothing is available.
type ReadGroupArgs struct {
	Group    string
	Consumer string
	Cursors  []Cursor
	Count    int
	Block    time.Duration
}

// NewCursors builds one cursor per log, all starting at the same position.
func NewCursors(logs []string, after string) []Cursor {
	cursors := make([]Cursor, 0, len(logs))
	for _, log := range logs {
		cursors = append(cursors, Cursor{Log: log, After: after})
	}

	return cursors
}
