package materializer_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/order-lifecycle-streams/materializer"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

func givenMaterializedDocument(t *testing.T, store streams.Documents, entries int) string {
	t.Helper()

	m, err := materializer.NewMaterializer(store)
	require.NoError(t, err, "error in arranging test materializer")

	for i := range entries {
		entry := givenNewOrderEntry(strconv.Itoa(i+1) + "-0")
		require.NoError(t, m.Apply(context.Background(), logName, entry), "error in arranging test document")
	}

	return m.DocumentKey(logName)
}

func givenMutationProcessor(t *testing.T, store streams.Documents) *materializer.MutationProcessor {
	t.Helper()

	p, err := materializer.NewMutationProcessor(store)
	require.NoError(t, err, "error in arranging test mutation processor")

	return p
}

func Test_OperationOf_UsesTheLastSegmentIgnoringCase(t *testing.T) {
	assert.Equal(t, "replace", materializer.OperationOf("control:REPLACE"))
	assert.Equal(t, "delete", materializer.OperationOf("a:b:delete"))
	assert.Equal(t, "delete", materializer.OperationOf("delete"))
}

func Test_ControlLogName_When_BothOperationsAreNamed_TheyShareTheHashTag(t *testing.T) {
	// act
	replace := materializer.ControlLogName("control", materializer.OperationReplace)
	remove := materializer.ControlLogName("control", materializer.OperationDelete)

	// assert
	assert.Equal(t, "control{ctl}:replace", replace)
	assert.Equal(t, "control{ctl}:delete", remove)
	assert.Equal(t, materializer.OperationReplace, materializer.OperationOf(replace))
	assert.Equal(t, materializer.OperationDelete, materializer.OperationOf(remove))
}

func Test_ParseMutation_When_EntryIsIncomplete(t *testing.T) {
	_, errOperation := materializer.ParseMutation("control:upsert", streams.Entry{Fields: map[string]string{"jsonKeyName": "k", "pathToUse": "$.a"}})
	_, errKey := materializer.ParseMutation("control:replace", streams.Entry{Fields: map[string]string{"pathToUse": "$.a"}})
	_, errPath := materializer.ParseMutation("control:replace", streams.Entry{Fields: map[string]string{"jsonKeyName": "k"}})
	_, errBadPath := materializer.ParseMutation("control:replace", streams.Entry{Fields: map[string]string{"jsonKeyName": "k", "pathToUse": "$.a["}})

	assert.ErrorIs(t, errOperation, materializer.ErrUnknownOperation)
	assert.ErrorIs(t, errKey, materializer.ErrMissingTargetKey)
	assert.ErrorIs(t, errPath, materializer.ErrMissingTargetPath)
	assert.ErrorIs(t, errBadPath, streams.ErrInvalidPath)
}

func Test_ParseMutation_When_TargetFieldsDifferInCase_TheyAreNotPartOfThePayload(t *testing.T) {
	mutation, err := materializer.ParseMutation("control:Replace", streams.Entry{Fields: map[string]string{
		"JSONKEYNAME": "customer_order_history:x",
		"PathToUse":   "$.stage-entries[0].stage",
		"stage":       "completed",
	}})

	require.NoError(t, err)
	assert.Equal(t, "replace", mutation.Operation)
	assert.Equal(t, "customer_order_history:x", mutation.DocumentKey)
	assert.Equal(t, `$["stage-entries"][0].stage`, mutation.Path.String())
	assert.Equal(t, map[string]string{"stage": "completed"}, mutation.Payload)
}

func Test_Process_When_ReplaceTargetsAnArrayElement_ArrayLengthIsUnchanged(t *testing.T) {
	// setup
	ctx := context.Background()
	store := givenStore(t)
	key := givenMaterializedDocument(t, store, 3)
	p := givenMutationProcessor(t, store)
	entry := streams.Entry{ID: "9-0", Fields: map[string]string{
		"jsonKeyName": key,
		"pathToUse":   "$.stage-entries[0].stage",
		"stage":       "completed",
	}}

	// act
	err := p.Process(ctx, "control:replace", entry)

	// assert
	require.NoError(t, err)
	doc := documentOf(t, store, key)
	assert.Equal(t, int64(3), doc.Get("stage-entries.#").Int())
	assert.Equal(t, "completed", doc.Get("stage-entries.0.stage.stage").String())
	assert.Equal(t, "new", doc.Get("stage-entries.1.stage").String())
	assert.Equal(t, "basil", doc.Get("stage-entries.0.item0").String())
}

func Test_Process_When_DeleteTargetsAnExistingPath_OnlyThatValueIsRemoved(t *testing.T) {
	// setup
	ctx := context.Background()
	store := givenStore(t)
	key := givenMaterializedDocument(t, store, 2)
	p := givenMutationProcessor(t, store)
	entry := streams.Entry{ID: "9-0", Fields: map[string]string{"jsonKeyName": key, "pathToUse": "$.stage-entries[1]"}}

	// act
	err := p.Process(ctx, "control:delete", entry)

	// assert
	require.NoError(t, err)
	doc := documentOf(t, store, key)
	assert.Equal(t, int64(1), doc.Get("stage-entries.#").Int())
	assert.Equal(t, "1-0", doc.Get("stage-entries.0.OrderStageEventID").String())
	assert.Equal(t, logName, doc.Get("CustomerID").String())
}

func Test_Process_When_DeleteTargetsAMissingDocument_AMinimalDocumentIsCreated(t *testing.T) {
	// setup
	ctx := context.Background()
	store := givenStore(t)
	p := givenMutationProcessor(t, store)
	key := "customer_order_history:orders:00042{0}"
	entry := streams.Entry{ID: "9-0", Fields: map[string]string{
		"jsonKeyName": key,
		"pathToUse":   "$.stage-entries[0]",
		"stage":       "cancelled",
		"order_cost":  "3.10",
	}}

	// act
	err := p.Process(ctx, "control:delete", entry)

	// assert
	require.NoError(t, err)
	doc := documentOf(t, store, key)
	assert.Equal(t, "orders:00042{0}", doc.Get("CustomerID").String())
	assert.Equal(t, int64(1), doc.Get("stage-entries.#").Int())
	assert.Equal(t, "cancelled", doc.Get("stage-entries.0.stage").String())
	assert.InDelta(t, 3.1, doc.Get("stage-entries.0.order_cost").Float(), 0.0001)
	assert.Len(t, doc.Map(), 2)
}

func Test_Process_When_ReplaceTargetsAMissingDocument_TheDocumentIsReseeded(t *testing.T) {
	// setup
	ctx := context.Background()
	store := givenStore(t)
	p := givenMutationProcessor(t, store)
	key := "customer_order_history:orders:00042{0}"
	entry := streams.Entry{ID: "9-0", Fields: map[string]string{"jsonKeyName": key, "pathToUse": "$.stage-entries[3].stage", "stage": "new"}}

	// act
	err := p.Process(ctx, "control:replace", entry)

	// assert
	require.NoError(t, err)
	doc := documentOf(t, store, key)
	assert.Equal(t, int64(1), doc.Get("stage-entries.#").Int())
	assert.Equal(t, "new", doc.Get("stage-entries.0.stage").String())
}

func Test_Process_When_OperationIsUnknown_NothingIsWritten(t *testing.T) {
	// setup
	ctx := context.Background()
	store := givenStore(t)
	key := givenMaterializedDocument(t, store, 1)
	p := givenMutationProcessor(t, store)
	before := documentOf(t, store, key).Raw
	entry := streams.Entry{ID: "9-0", Fields: map[string]string{"jsonKeyName": key, "pathToUse": "$.stage-entries"}}

	// act
	err := p.Process(ctx, "control:truncate", entry)

	// assert
	assert.ErrorIs(t, err, materializer.ErrUnknownOperation)
	assert.Equal(t, before, documentOf(t, store, key).Raw)
}

func Test_Process_When_ReplaceParentIsMissing_TheStoreErrorPropagates(t *testing.T) {
	// setup
	ctx := context.Background()
	store := givenStore(t)
	key := givenMaterializedDocument(t, store, 1)
	p := givenMutationProcessor(t, store)
	entry := streams.Entry{ID: "9-0", Fields: map[string]string{"jsonKeyName": key, "pathToUse": "$.stage-entries[5].stage", "stage": "x"}}

	// act
	err := p.Process(ctx, "control:replace", entry)

	// assert
	assert.ErrorIs(t, err, streams.ErrPathNotFound)
}
