package consumergroup_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/order-lifecycle-streams/consumergroup"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams/memengine"
	"github.com/AntonStoeckl/order-lifecycle-streams/testutil/helper"
)

const group = "materializers"

var errInjected = errors.New("injected failure")

// flakyLogs fails the first failAcks acknowledgments and passes everything else through.
type flakyLogs struct {
	streams.LogClient
	mu       sync.Mutex
	failAcks int
	failRead int
	creates  map[string]error
}

func (f *flakyLogs) Ack(ctx context.Context, log, group string, ids ...string) error {
	f.mu.Lock()
	if f.failAcks > 0 {
		f.failAcks--
		f.mu.Unlock()

		return errInjected
	}
	f.mu.Unlock()

	return f.LogClient.Ack(ctx, log, group, ids...)
}

func (f *flakyLogs) ReadGroup(ctx context.Context, args streams.ReadGroupArgs) ([]streams.Batch, error) {
	f.mu.Lock()
	if f.failRead > 0 {
		f.failRead--
		f.mu.Unlock()

		return nil, errInjected
	}
	f.mu.Unlock()

	return f.LogClient.ReadGroup(ctx, args)
}

func (f *flakyLogs) CreateGroup(ctx context.Context, log, group, start string) error {
	if err, ok := f.creates[log]; ok {
		return err
	}

	return f.LogClient.CreateGroup(ctx, log, group, start)
}

// recorder is a processor that remembers the ids it saw.
type recorder struct {
	mu   sync.Mutex
	seen []string
	fail func(entry streams.Entry) bool
}

func (r *recorder) Process(_ context.Context, _ string, entry streams.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seen = append(r.seen, entry.ID)
	if r.fail != nil && r.fail(entry) {
		return errInjected
	}

	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.seen)
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.seen...)
}

func givenStore(t *testing.T) *memengine.Store {
	t.Helper()

	store, err := memengine.NewStore()
	require.NoError(t, err, "error in arranging test store")
	t.Cleanup(store.Close)

	return store
}

func givenEntries(t *testing.T, store *memengine.Store, log string, count int) []string {
	t.Helper()

	ids := make([]string, 0, count)
	for range count {
		id, err := store.Append(context.Background(), log, map[string]string{"n": "x"})
		require.NoError(t, err, "error in arranging test entries")
		ids = append(ids, id)
	}

	return ids
}

func givenManager(t *testing.T, logs streams.LogClient, logNames []string, options ...consumergroup.Option) *consumergroup.Manager {
	t.Helper()

	options = append(
		[]consumergroup.Option{
			consumergroup.WithStartPosition(streams.StartBeginning),
			consumergroup.WithBlockTimeout(20 * time.Millisecond),
			consumergroup.WithBackoff(time.Millisecond, 5*time.Millisecond),
		},
		options...,
	)

	m, err := consumergroup.NewManager(logs, group, logNames, options...)
	require.NoError(t, err, "error in arranging test manager")

	return m
}

// runUntil runs one worker until condition holds, then cancels it and waits for Run to return.
func runUntil(t *testing.T, m *consumergroup.Manager, consumer string, processor consumergroup.Processor, condition func() bool) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- m.Run(ctx, consumer, processor) }()

	helper.Eventually(t, 2*time.Second, condition, "worker did not reach the expected state")
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func Test_NewManager_When_ArgumentsAreInvalid(t *testing.T) {
	store := givenStore(t)

	_, errLogs := consumergroup.NewManager(nil, group, []string{"a"})
	_, errGroup := consumergroup.NewManager(store, "", []string{"a"})
	_, errNoLogs := consumergroup.NewManager(store, group, nil)
	_, errEmptyLog := consumergroup.NewManager(store, group, []string{"a", ""})
	_, errBatch := consumergroup.NewManager(store, group, []string{"a"}, consumergroup.WithBatchSize(0))
	_, errBackoff := consumergroup.NewManager(store, group, []string{"a"}, consumergroup.WithBackoff(time.Second, time.Millisecond))
	_, errPrefix := consumergroup.NewManager(store, group, []string{"a"}, consumergroup.WithConsumerPrefix(""))

	assert.ErrorIs(t, errLogs, consumergroup.ErrNilLogClient)
	assert.ErrorIs(t, errGroup, streams.ErrEmptyGroupName)
	assert.ErrorIs(t, errNoLogs, consumergroup.ErrNoLogs)
	assert.ErrorIs(t, errEmptyLog, streams.ErrEmptyLogName)
	assert.ErrorIs(t, errBatch, consumergroup.ErrInvalidBatchSize)
	assert.ErrorIs(t, errBackoff, consumergroup.ErrInvalidBackoff)
	assert.ErrorIs(t, errPrefix, streams.ErrEmptyConsumerName)
}

func Test_ConsumerName_When_OffsetIsConfigured(t *testing.T) {
	m := givenManager(t, givenStore(t), []string{"a"}, consumergroup.WithConsumerOffset(3))

	assert.Equal(t, "worker4", m.ConsumerName(0))
	assert.Equal(t, "worker5", m.ConsumerName(1))
}

func Test_CreateGroup_When_CalledTwice_ItIsIdempotent(t *testing.T) {
	// setup
	ctx := context.Background()
	spy := helper.NewLogHandlerSpy(false)
	m := givenManager(t, givenStore(t), []string{"a", "b"}, consumergroup.WithLogger(slog.New(spy)))

	// act
	errFirst := m.CreateGroup(ctx)
	errSecond := m.CreateGroup(ctx)

	// assert
	require.NoError(t, errFirst)
	require.NoError(t, errSecond)
	assert.Equal(t, 2, spy.CountLogs(slog.LevelDebug, "consumer group already exists"))
	assert.True(t, spy.HasLogWithAttr("consumer groups ensured", "existing", "2"))
}

func Test_CreateGroup_When_OneLogFails_TheOthersAreStillCreated(t *testing.T) {
	// setup
	ctx := context.Background()
	store := givenStore(t)
	logs := &flakyLogs{LogClient: store, creates: map[string]error{"b": errInjected}}
	m := givenManager(t, logs, []string{"a", "b", "c"})

	// act
	err := m.CreateGroup(ctx)

	// assert
	assert.ErrorIs(t, err, consumergroup.ErrCreateGroupsFailed)
	assert.ErrorIs(t, err, errInjected)
	assert.ErrorIs(t, store.CreateGroup(ctx, "a", group, streams.StartBeginning), streams.ErrGroupExists)
	assert.ErrorIs(t, store.CreateGroup(ctx, "c", group, streams.StartBeginning), streams.ErrGroupExists)
}

func Test_Run_When_EntriesArrive_AllAreProcessedAndAcknowledged(t *testing.T) {
	// setup
	store := givenStore(t)
	m := givenManager(t, store, []string{"a", "b"}, consumergroup.WithBatchSize(3))
	require.NoError(t, m.CreateGroup(context.Background()))
	givenEntries(t, store, "a", 7)
	givenEntries(t, store, "b", 4)
	processor := &recorder{}

	// act
	runUntil(t, m, "worker1", processor, func() bool { return processor.count() == 11 })

	// assert
	assert.Equal(t, 0, store.PendingCount("a", group, "worker1"))
	assert.Equal(t, 0, store.PendingCount("b", group, "worker1"))
}

func Test_Run_When_ProcessingFails_TheEntryStaysPending(t *testing.T) {
	// setup
	store := givenStore(t)
	metrics := helper.NewMetricsCollectorSpy()
	m := givenManager(t, store, []string{"a"}, consumergroup.WithMetrics(metrics))
	require.NoError(t, m.CreateGroup(context.Background()))
	ids := givenEntries(t, store, "a", 3)
	processor := &recorder{fail: func(entry streams.Entry) bool { return entry.ID == ids[1] }}

	// act
	runUntil(t, m, "worker1", processor, func() bool { return processor.count() == 3 })

	// assert
	assert.Equal(t, 1, store.PendingCount("a", group, "worker1"))
	assert.Equal(t, 1, metrics.CountCounterRecords("consumer_entries_failed_total", map[string]string{"group": group}))
	assert.Equal(t, 2, metrics.CountCounterRecords("consumer_entries_processed_total", map[string]string{"group": group}))
}

func Test_Run_When_EntriesAreProcessed_MetricsAreLabeledByShardNotByLog(t *testing.T) {
	// setup
	store := givenStore(t)
	metrics := helper.NewMetricsCollectorSpy()
	m := givenManager(t, store, []string{"X:orders:00000{0}", "X:orders:00002{0}"}, consumergroup.WithMetrics(metrics))
	require.NoError(t, m.CreateGroup(context.Background()))
	givenEntries(t, store, "X:orders:00000{0}", 2)
	givenEntries(t, store, "X:orders:00002{0}", 1)
	processor := &recorder{}

	// act
	runUntil(t, m, "worker1", processor, func() bool { return processor.count() == 3 })

	// assert
	assert.Equal(t, 3, metrics.CountCounterRecords("consumer_entries_processed_total", map[string]string{"shard": "{0}"}))
	for _, record := range metrics.GetCounterRecords() {
		assert.NotContains(t, record.Labels, "log", record.Metric)
	}
}

func Test_Run_When_AckFailedBeforeRestart_TheEntryIsReplayed(t *testing.T) {
	// setup
	store := givenStore(t)
	logs := &flakyLogs{LogClient: store, failAcks: 1}
	m := givenManager(t, logs, []string{"a"})
	require.NoError(t, m.CreateGroup(context.Background()))
	ids := givenEntries(t, store, "a", 2)
	firstRun := &recorder{}
	runUntil(t, m, "worker1", firstRun, func() bool { return firstRun.count() == 2 })
	require.Equal(t, 1, store.PendingCount("a", group, "worker1"))

	// act
	secondRun := &recorder{}
	runUntil(t, m, "worker1", secondRun, func() bool { return store.PendingCount("a", group, "worker1") == 0 })

	// assert
	assert.Equal(t, ids, firstRun.ids())
	assert.Equal(t, []string{ids[0]}, secondRun.ids())
}

func Test_Run_When_RecoveryReplaysAFailingEntry_ItIsNotRetriedInALoop(t *testing.T) {
	// setup
	store := givenStore(t)
	spy := helper.NewLogHandlerSpy(false)
	m := givenManager(t, store, []string{"a"}, consumergroup.WithLogger(slog.New(spy)))
	require.NoError(t, m.CreateGroup(context.Background()))
	givenEntries(t, store, "a", 1)
	alwaysFails := &recorder{fail: func(streams.Entry) bool { return true }}
	runUntil(t, m, "worker1", alwaysFails, func() bool { return alwaysFails.count() == 1 })

	// act
	replay := &recorder{fail: func(streams.Entry) bool { return true }}
	runUntil(t, m, "worker1", replay, func() bool { return spy.CountLogs(slog.LevelInfo, "pending entry recovery finished") == 2 })

	// assert
	assert.Equal(t, 1, replay.count())
	assert.Equal(t, 1, store.PendingCount("a", group, "worker1"))
}

func Test_Run_When_ReadFails_TheWorkerBacksOffAndContinues(t *testing.T) {
	// setup
	store := givenStore(t)
	logs := &flakyLogs{LogClient: store, failRead: 2}
	spy := helper.NewLogHandlerSpy(false)
	metrics := helper.NewMetricsCollectorSpy()
	m := givenManager(t, logs, []string{"a"}, consumergroup.WithLogger(slog.New(spy)), consumergroup.WithMetrics(metrics))
	require.NoError(t, m.CreateGroup(context.Background()))
	givenEntries(t, store, "a", 1)
	processor := &recorder{}

	// act
	runUntil(t, m, "worker1", processor, func() bool { return processor.count() == 1 })

	// assert
	assert.Equal(t, 2, spy.CountLogs(slog.LevelError, "reading from consumer group failed"))
	assert.Equal(t, 2, metrics.CountCounterRecords("consumer_read_errors_total", map[string]string{"consumer": "worker1"}))
}

func Test_Run_When_TracingIsConfigured_EachEntryGetsASpan(t *testing.T) {
	// setup
	store := givenStore(t)
	tracing := helper.NewTracingCollectorSpy()
	m := givenManager(t, store, []string{"a"}, consumergroup.WithTracing(tracing))
	require.NoError(t, m.CreateGroup(context.Background()))
	ids := givenEntries(t, store, "a", 2)
	processor := &recorder{fail: func(entry streams.Entry) bool { return entry.ID == ids[0] }}

	// act
	runUntil(t, m, "worker1", processor, func() bool { return processor.count() == 2 })

	// assert
	assert.Equal(t, 1, tracing.CountSpans("consumergroup.process_entry", streams.StatusSuccess))
	assert.Equal(t, 1, tracing.CountSpans("consumergroup.process_entry", streams.StatusError))
}

func Test_Run_When_ContextualLoggerIsConfigured_RecordsCarryTheContext(t *testing.T) {
	// setup
	store := givenStore(t)
	contextual := helper.NewContextualLoggerSpy()
	m := givenManager(t, store, []string{"a"}, consumergroup.WithContextualLogger(contextual))
	require.NoError(t, m.CreateGroup(context.Background()))
	givenEntries(t, store, "a", 1)
	processor := &recorder{fail: func(streams.Entry) bool { return true }}

	// act
	runUntil(t, m, "worker1", processor, func() bool { return processor.count() == 1 })

	// assert
	assert.True(t, contextual.HasRecord(slog.LevelInfo, "consumer worker started"))
	assert.True(t, contextual.HasRecord(slog.LevelInfo, "consumer worker stopped"))
	assert.Equal(t, 1, contextual.CountRecords(slog.LevelError, "processing entry failed, leaving it pending"))

	for _, record := range contextual.Records() {
		assert.NotNil(t, record.Context)
	}
}

func Test_Start_When_ManyWorkersCompete_EveryEntryIsProcessedOnce(t *testing.T) {
	// setup
	store := givenStore(t)
	m := givenManager(t, store, []string{"a", "b"}, consumergroup.WithBatchSize(2))
	require.NoError(t, m.CreateGroup(context.Background()))
	var processed, duplicates atomic.Int64
	var seen sync.Map
	processor := consumergroup.ProcessorFunc(func(_ context.Context, log string, entry streams.Entry) error {
		if _, loaded := seen.LoadOrStore(log+"/"+entry.ID, true); loaded {
			duplicates.Add(1)
		}
		processed.Add(1)

		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// act
	require.NoError(t, m.Start(ctx, 3, processor))
	givenEntries(t, store, "a", 30)
	givenEntries(t, store, "b", 30)
	helper.Eventually(t, 2*time.Second, func() bool { return processed.Load() == 60 }, "not all entries were processed")
	cancel()
	m.Wait()

	// assert
	assert.Zero(t, duplicates.Load())
	for n := range 3 {
		assert.Zero(t, store.PendingCount("a", group, m.ConsumerName(n)))
		assert.Zero(t, store.PendingCount("b", group, m.ConsumerName(n)))
	}
}

func Test_Start_When_WorkerCountIsInvalid(t *testing.T) {
	m := givenManager(t, givenStore(t), []string{"a"})

	assert.ErrorIs(t, m.Start(context.Background(), 0, &recorder{}), consumergroup.ErrInvalidWorkerCount)
	assert.ErrorIs(t, m.Start(context.Background(), 1, nil), consumergroup.ErrNilProcessor)
	assert.ErrorIs(t, m.Run(context.Background(), "", &recorder{}), streams.ErrEmptyConsumerName)
}
