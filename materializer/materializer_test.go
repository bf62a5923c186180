package materializer_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/AntonStoeckl/order-lifecycle-streams/materializer"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams/memengine"
	"github.com/AntonStoeckl/order-lifecycle-streams/testutil/helper"
)

const logName = "orders:00007{1}"

var errStore = errors.New("store unavailable")

// failingDocuments fails every call after the document existence check.
type failingDocuments struct {
	streams.Documents
}

func (failingDocuments) ArrAppend(context.Context, string, streams.Path, []byte) error {
	return errStore
}

func (failingDocuments) SetAt(context.Context, string, streams.Path, []byte) error {
	return errStore
}

// interruptedDocuments fails the first failWrites writes and records the path of every write.
type interruptedDocuments struct {
	streams.Documents
	failWrites int
	paths      []string
}

func (d *interruptedDocuments) SetAt(ctx context.Context, key string, path streams.Path, valueJSON []byte) error {
	d.paths = append(d.paths, path.String())
	if d.failWrites > 0 {
		d.failWrites--
		return errStore
	}

	return d.Documents.SetAt(ctx, key, path, valueJSON)
}

func givenStore(t *testing.T) *memengine.Store {
	t.Helper()

	store, err := memengine.NewStore()
	require.NoError(t, err, "error in arranging test store")
	t.Cleanup(store.Close)

	return store
}

func givenNewOrderEntry(id string) streams.Entry {
	return streams.Entry{
		ID: id,
		Fields: map[string]string{
			"customer_id":  "7",
			"stage":        "new",
			"order_id":     "7__1",
			"item0":        "basil",
			"item1":        "kale",
			"contact_name": "Ada Lovelace",
			"order_cost":   "12.50",
		},
	}
}

func documentOf(t *testing.T, docs streams.Documents, key string) gjson.Result {
	t.Helper()

	raw, found, err := docs.Document(context.Background(), key)
	require.NoError(t, err)
	require.True(t, found, "document %q is missing", key)

	return gjson.ParseBytes(raw)
}

func Test_NewMaterializer_When_ArgumentsAreInvalid(t *testing.T) {
	_, errDocs := materializer.NewMaterializer(nil)
	_, errPrefix := materializer.NewMaterializer(givenStore(t), materializer.WithDocumentPrefix(""))

	assert.ErrorIs(t, errDocs, materializer.ErrNilDocuments)
	assert.ErrorIs(t, errPrefix, materializer.ErrEmptyDocumentPrefix)
}

func Test_Apply_When_DocumentIsMissing_ItIsCreatedWithTheFirstEntry(t *testing.T) {
	// setup
	ctx := context.Background()
	store := givenStore(t)
	m, err := materializer.NewMaterializer(store)
	require.NoError(t, err)

	// act
	err = m.Apply(ctx, logName, givenNewOrderEntry("1-0"))

	// assert
	require.NoError(t, err)
	doc := documentOf(t, store, "customer_order_history:"+logName)
	assert.Equal(t, logName, doc.Get("CustomerID").String())
	assert.Equal(t, int64(1), doc.Get("stage-entries.#").Int())
	assert.Equal(t, "1-0", doc.Get("stage-entries.0.OrderStageEventID").String())
	assert.Equal(t, "basil", doc.Get("stage-entries.0.item0").String())
	assert.Equal(t, "7__1", doc.Get("stage-entries.0.order_id").String())
}

func Test_Apply_When_DocumentExists_TheEntryIsAppended(t *testing.T) {
	// setup
	ctx := context.Background()
	store := givenStore(t)
	m, err := materializer.NewMaterializer(store)
	require.NoError(t, err)

	// arrange
	require.NoError(t, m.Apply(ctx, logName, givenNewOrderEntry("1-0")))
	accepted := streams.Entry{ID: "2-0", Fields: map[string]string{"customer_id": "7", "stage": "accepted", "order_id": "7__1"}}

	// act
	err = m.Apply(ctx, logName, accepted)

	// assert
	require.NoError(t, err)
	doc := documentOf(t, store, m.DocumentKey(logName))
	assert.Equal(t, int64(2), doc.Get("stage-entries.#").Int())
	assert.Equal(t, "accepted", doc.Get("stage-entries.1.stage").String())
	assert.Equal(t, "2-0", doc.Get("stage-entries.1.OrderStageEventID").String())
}

func Test_Apply_When_SameEntryIsAppliedTwice_ItIsAppendedTwice(t *testing.T) {
	// setup
	ctx := context.Background()
	store := givenStore(t)
	m, err := materializer.NewMaterializer(store)
	require.NoError(t, err)
	entry := givenNewOrderEntry("1-0")

	// act
	require.NoError(t, m.Apply(ctx, logName, entry))
	require.NoError(t, m.Apply(ctx, logName, entry))

	// assert
	doc := documentOf(t, store, m.DocumentKey(logName))
	assert.Equal(t, int64(2), doc.Get("stage-entries.#").Int())
	assert.Equal(t, doc.Get("stage-entries.0").Raw, doc.Get("stage-entries.1").Raw)
}

func Test_Apply_When_EntryHasACost_ItIsStoredAsANumber(t *testing.T) {
	// setup
	ctx := context.Background()
	store := givenStore(t)
	m, err := materializer.NewMaterializer(store)
	require.NoError(t, err)

	// act
	err = m.Apply(ctx, logName, givenNewOrderEntry("1-0"))

	// assert
	require.NoError(t, err)
	cost := documentOf(t, store, m.DocumentKey(logName)).Get("stage-entries.0.order_cost")
	assert.Equal(t, gjson.Number, cost.Type)
	assert.InDelta(t, 12.5, cost.Float(), 0.0001)
	matching := documentOf(t, store, m.DocumentKey(logName)).Get("stage-entries.#(order_cost>10)#")
	assert.Len(t, matching.Array(), 1)
}

func Test_Apply_When_CostIsNotANumber_NothingIsWritten(t *testing.T) {
	// setup
	ctx := context.Background()
	store := givenStore(t)
	spy := helper.NewLogHandlerSpy(false)
	m, err := materializer.NewMaterializer(store, materializer.WithLogger(slog.New(spy)))
	require.NoError(t, err)
	entry := givenNewOrderEntry("1-0")
	entry.Fields["order_cost"] = "twelve"

	// act
	err = m.Apply(ctx, logName, entry)

	// assert
	assert.ErrorIs(t, err, materializer.ErrInvalidNumericField)
	exists, existsErr := store.DocumentExists(ctx, m.DocumentKey(logName))
	require.NoError(t, existsErr)
	assert.False(t, exists)
	assert.True(t, spy.HasErrorLog("entry rejected"))
}

func Test_Apply_When_StoreFails_TheErrorPropagates(t *testing.T) {
	// setup
	ctx := context.Background()
	metrics := helper.NewMetricsCollectorSpy()
	m, err := materializer.NewMaterializer(failingDocuments{Documents: givenStore(t)}, materializer.WithMetrics(metrics))
	require.NoError(t, err)

	// act
	err = m.Apply(ctx, logName, givenNewOrderEntry("1-0"))

	// assert
	assert.ErrorIs(t, err, errStore)
	assert.Equal(t, 1, metrics.CountCounterRecords("materializer_errors_total", map[string]string{"operation": "create"}))
}

func Test_Apply_When_CreatingTheDocumentFails_RedeliveryCreatesIt(t *testing.T) {
	// setup
	ctx := context.Background()
	store := givenStore(t)
	docs := &interruptedDocuments{Documents: store, failWrites: 1}
	m, err := materializer.NewMaterializer(docs)
	require.NoError(t, err)
	entry := givenNewOrderEntry("1-0")

	// act
	errFirst := m.Apply(ctx, logName, entry)
	_, foundAfterFailure, errLookup := store.Document(ctx, m.DocumentKey(logName))
	errRedelivered := m.Apply(ctx, logName, entry)
	errNext := m.Apply(ctx, logName, givenNewOrderEntry("2-0"))

	// assert
	assert.ErrorIs(t, errFirst, errStore)
	require.NoError(t, errLookup)
	assert.False(t, foundAfterFailure, "a failed create must not leave a partial document")
	require.NoError(t, errRedelivered)
	require.NoError(t, errNext)
	assert.Equal(t, []string{"$", "$"}, docs.paths)

	raw, found, err := store.Document(ctx, m.DocumentKey(logName))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, logName, gjson.GetBytes(raw, "CustomerID").String())
	assert.Equal(t, int64(2), gjson.GetBytes(raw, "stage-entries.#").Int())
}

func Test_Apply_When_IdentityIsRegion_TheRegionIsStored(t *testing.T) {
	// setup
	ctx := context.Background()
	store := givenStore(t)
	m, err := materializer.NewMaterializer(
		store,
		materializer.WithIdentity(materializer.RegionIdentity),
		materializer.WithDocumentPrefix("history:"),
	)
	require.NoError(t, err)

	// act
	errRegion := m.Apply(ctx, "X:orders::north{0}", givenNewOrderEntry("1-0"))
	errNoRegion := m.Apply(ctx, logName, givenNewOrderEntry("2-0"))

	// assert
	require.NoError(t, errRegion)
	assert.ErrorIs(t, errNoRegion, materializer.ErrNoRegion)
	doc := documentOf(t, store, "history:X:orders::north{0}")
	assert.Equal(t, "north", doc.Get("RegionID").String())
	assert.False(t, doc.Get("CustomerID").Exists())
}

func Test_Apply_When_Succeeding_MetricsAndDebugLogsAreRecorded(t *testing.T) {
	// setup
	ctx := context.Background()
	spy := helper.NewLogHandlerSpy(false)
	metrics := helper.NewMetricsCollectorSpy()
	m, err := materializer.NewMaterializer(givenStore(t), materializer.WithLogger(slog.New(spy)), materializer.WithMetrics(metrics))
	require.NoError(t, err)

	// act
	require.NoError(t, m.Apply(ctx, logName, givenNewOrderEntry("1-0")))
	require.NoError(t, m.Process(ctx, logName, givenNewOrderEntry("2-0")))

	// assert
	assert.Equal(t, 1, metrics.CountCounterRecords("materializer_operations_total", map[string]string{"operation": "create"}))
	assert.Equal(t, 1, metrics.CountCounterRecords("materializer_operations_total", map[string]string{"operation": "append"}))
	assert.Equal(t, 2, metrics.CountCounterRecords("materializer_operations_total", map[string]string{"shard": "{1}"}))
	assert.True(t, spy.HasDebugLogWithDurationMS("entry materialized"))
}

func Test_Schema_KindOf_IgnoresCase(t *testing.T) {
	schema := materializer.DefaultSchema()

	assert.Equal(t, materializer.Numeric, schema.KindOf("ORDER_COST"))
	assert.Equal(t, materializer.Identity, schema.KindOf("customer_id"))
	assert.Equal(t, materializer.Text, schema.KindOf("item3"))
}

func Test_Schema_Coerce_When_IdentityIsEmpty(t *testing.T) {
	_, err := materializer.DefaultSchema().Coerce("customer_id", "")

	assert.ErrorIs(t, err, materializer.ErrEmptyIdentityField)
}
