package materializer

import (
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/order-lifecycle-streams/routing"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

// Layout of aggregate documents. External search indexes depend on these names.
const (
	DefaultDocumentPrefix = "customer_order_history:"
	CustomerIDField       = "CustomerID"
	RegionIDField         = "RegionID"
	StageEntriesField     = "stage-entries"
	StageEventIDField     = "OrderStageEventID"
)

// IdentityMode selects the identity field of a new document.
type IdentityMode int

const (
	// CustomerIdentity stores the full log name as CustomerID.
	CustomerIdentity IdentityMode = iota

	// RegionIdentity stores the segment after "::" of the log name as RegionID.
	RegionIdentity
)

// ErrNoRegion is returned in RegionIdentity mode for log names without a region segment.
var ErrNoRegion = errors.New("log name carries no region")

// StageEntriesPath addresses the stage entry array of a document.
func StageEntriesPath() streams.Path {
	return streams.KeyPath(StageEntriesField)
}

type layout struct {
	prefix   string
	identity IdentityMode
}

func (l layout) documentKey(logName string) string {
	return l.prefix + logName
}

// logNameOf reverses documentKey. Keys without the prefix are taken as log names.
func (l layout) logNameOf(documentKey string) string {
	return strings.TrimPrefix(documentKey, l.prefix)
}

// seedDocument renders a complete fresh document: the identity field and a single stage entry.
func (l layout) seedDocument(logName string, stageEntry []byte) ([]byte, error) {
	doc := map[string]any{StageEntriesField: []jsoniter.RawMessage{stageEntry}}

	switch l.identity {
	case RegionIdentity:
		region, ok := routing.RegionOf(logName)
		if !ok {
			return nil, errors.Join(ErrNoRegion, fmt.Errorf("log %q", logName))
		}

		doc[RegionIDField] = region
	default:
		doc[CustomerIDField] = logName
	}

	return json.Marshal(doc)
}
