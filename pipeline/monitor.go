package pipeline

import (
	"context"
	"errors"
	"maps"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

const defaultMonitorInterval = time.Second

var (
	// ErrInvalidMonitorInterval is returned for a non-positive sampling interval.
	ErrInvalidMonitorInterval = errors.New("monitor interval must be positive")

	// ErrNothingToMonitor is returned when a monitor is built without logs.
	ErrNothingToMonitor = errors.New("monitor needs at least one log")
)

// Monitor periodically samples a random log and logs the fields of its newest entry.
type Monitor struct {
	logs     streams.LogClient
	logNames []string
	interval time.Duration
	rng      *rand.Rand
	logger   streams.Logger
}

// MonitorOption defines a functional option for configuring Monitor.
type MonitorOption func(*Monitor) error

// WithMonitorInterval sets the pause between two samples.
func WithMonitorInterval(interval time.Duration) MonitorOption {
	return func(m *Monitor) error {
		if interval <= 0 {
			return ErrInvalidMonitorInterval
		}

		m.interval = interval

		return nil
	}
}

// WithMonitorRand replaces the source used to pick the sampled log.
func WithMonitorRand(rng *rand.Rand) MonitorOption {
	return func(m *Monitor) error {
		m.rng = rng
		return nil
	}
}

// WithMonitorLogger sets the logger the samples are written to.
func WithMonitorLogger(logger streams.Logger) MonitorOption {
	return func(m *Monitor) error {
		m.logger = logger
		return nil
	}
}

// NewMonitor creates a Monitor over logNames.
func NewMonitor(logs streams.LogClient, logNames []string, options ...MonitorOption) (*Monitor, error) {
	if logs == nil {
		return nil, ErrNilLogClient
	}

	if len(logNames) == 0 {
		return nil, ErrNothingToMonitor
	}

	m := &Monitor{
		logs:     logs,
		logNames: slices.Clone(logNames),
		interval: defaultMonitorInterval,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}

	for _, option := range options {
		if err := option(m); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Run samples until ctx is done. Failed samples are logged and do not stop the monitor.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sample(ctx)
		}
	}
}

// Sample logs the newest entry of one randomly chosen log. Empty or missing logs are skipped.
func (m *Monitor) Sample(ctx context.Context) {
	log := m.logNames[m.rng.IntN(len(m.logNames))]

	entry, found, err := m.logs.LastEntry(ctx, log)
	switch {
	case err != nil:
		if ctx.Err() == nil && m.logger != nil {
			m.logger.Error(logMsgSampleFailed, logAttrError, err.Error(), logAttrLog, log)
		}

		return
	case !found:
		if m.logger != nil {
			m.logger.Debug(logMsgSampleSkipped, logAttrLog, log)
		}

		return
	}

	if m.logger == nil {
		return
	}

	args := []any{logAttrLog, log, logAttrEntryID, entry.ID}
	for _, key := range slices.Sorted(maps.Keys(entry.Fields)) {
		args = append(args, key, entry.Fields[key])
	}

	m.logger.Info(logMsgSampled, args...)
}
