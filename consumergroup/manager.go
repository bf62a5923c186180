// Package consumergroup drains many logs concurrently through competing consumers of one group.
//
// A Manager owns a fixed set of logs (typically all logs of one shard, so that a single multi-log read is
// valid on a clustered store) and runs one worker per consumer identity. Each worker first replays its own
// pending entries, then reads new ones. An entry is acknowledged only after its processor returned nil, so
// delivery is at-least-once: a crash between processing and acknowledgment replays the entry on restart.
package consumergroup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

const (
	defaultBatchSize      = 10
	defaultBlockTimeout   = 5 * time.Second
	defaultConsumerPrefix = "worker"
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
)

var (
	// ErrNilLogClient is returned when a manager is built without a log client.
	ErrNilLogClient = errors.New("nil log client supplied")

	// ErrNoLogs is returned when a manager is built without logs.
	ErrNoLogs = errors.New("manager needs at least one log")

	// ErrNilProcessor is returned when a worker is started without a processor.
	ErrNilProcessor = errors.New("nil processor supplied")

	// ErrInvalidWorkerCount is returned for a worker count below one.
	ErrInvalidWorkerCount = errors.New("worker count must be at least 1")

	// ErrInvalidBatchSize is returned for a batch size below one.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")

	// ErrInvalidBackoff is returned for non-positive or inverted backoff bounds.
	ErrInvalidBackoff = errors.New("backoff bounds must be positive and ordered")

	// ErrCreateGroupsFailed wraps the joined per-log failures of CreateGroup.
	ErrCreateGroupsFailed = errors.New("creating consumer groups failed for some logs")
)

// Processor handles one delivered entry. A nil return acknowledges the entry.
type Processor interface {
	Process(ctx context.Context, log string, entry streams.Entry) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, log string, entry streams.Entry) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, log string, entry streams.Entry) error {
	return f(ctx, log, entry)
}

// Manager runs the workers of one consumer group over a fixed set of logs.
type Manager struct {
	logs             streams.LogClient
	group            string
	logNames         []string
	start            string
	batchSize        int
	block            time.Duration
	consumerPrefix   string
	consumerOffset   int
	initialBackoff   time.Duration
	maxBackoff       time.Duration
	logger           streams.Logger
	contextualLogger streams.ContextualLogger
	metricsCollector streams.MetricsCollector
	tracingCollector streams.TracingCollector
	wg               sync.WaitGroup
}

// NewManager creates a Manager for the group over the given logs.
func NewManager(logs streams.LogClient, group string, logNames []string, options ...Option) (*Manager, error) {
	if logs == nil {
		return nil, ErrNilLogClient
	}

	if group == "" {
		return nil, streams.ErrEmptyGroupName
	}

	if len(logNames) == 0 {
		return nil, ErrNoLogs
	}

	for _, name := range logNames {
		if name == "" {
			return nil, streams.ErrEmptyLogName
		}
	}

	m := &Manager{
		logs:           logs,
		group:          group,
		logNames:       append([]string(nil), logNames...),
		start:          streams.StartLatest,
		batchSize:      defaultBatchSize,
		block:          defaultBlockTimeout,
		consumerPrefix: defaultConsumerPrefix,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
	}

	for _, option := range options {
		if err := option(m); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Group returns the consumer group name.
func (m *Manager) Group() string {
	return m.group
}

// Logs returns a copy of the managed log names.
func (m *Manager) Logs() []string {
	return append([]string(nil), m.logNames...)
}

// ConsumerName returns the identity of the n-th worker (zero based).
func (m *Manager) ConsumerName(n int) string {
	return m.consumerPrefix + strconv.Itoa(n+m.consumerOffset+1)
}

// CreateGroup ensures the group exists on every log. An existing group counts as success.
// Other failures are logged, the remaining logs are still processed, and all failures are returned joined.
func (m *Manager) CreateGroup(ctx context.Context) error {
	var failures []error
	created, existing := 0, 0

	for _, log := range m.logNames {
		err := m.logs.CreateGroup(ctx, log, m.group, m.start)
		switch {
		case err == nil:
			created++
		case errors.Is(err, streams.ErrGroupExists):
			existing++
			m.logDebug(ctx, logMsgGroupExists, logAttrLog, log, logAttrGroup, m.group)
		default:
			m.logError(ctx, logMsgCreateGroupFailed, err, logAttrLog, log, logAttrGroup, m.group)
			failures = append(failures, fmt.Errorf("log %q: %w", log, err))
		}
	}

	m.logInfo(
		ctx,
		logMsgGroupsEnsured,
		logAttrGroup, m.group,
		logAttrCreated, created,
		logAttrExisting, existing,
		logAttrFailed, len(failures),
	)

	if len(failures) > 0 {
		return errors.Join(ErrCreateGroupsFailed, errors.Join(failures...))
	}

	return nil
}

// Start launches workers goroutines, each running Run under its own consumer identity.
// Use Wait to join them after cancelling ctx.
func (m *Manager) Start(ctx context.Context, workers int, processor Processor) error {
	if workers < 1 {
		return ErrInvalidWorkerCount
	}

	if processor == nil {
		return ErrNilProcessor
	}

	for n := range workers {
		consumer := m.ConsumerName(n)

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()

			if err := m.Run(ctx, consumer, processor); err != nil {
				m.logError(ctx, logMsgWorkerFailed, err, logAttrConsumer, consumer, logAttrGroup, m.group)
			}
		}()
	}

	return nil
}

// Wait blocks until all started workers returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}
