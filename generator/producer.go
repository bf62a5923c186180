package generator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

const (
	defaultTotalEvents    = 100
	defaultProducerDelay  = 50 * time.Millisecond
	defaultProducerName   = "producer"
	logMsgProducerStarted = "producer started"
	logMsgProducerStopped = "producer stopped"
	logMsgEmitFailed      = "emitting lifecycle event failed"
	logAttrProducer       = "producer"
	logAttrTotal          = "total_events"
	logAttrEntities       = "entities"
	logAttrDelay          = "delay"
	logAttrEmitted        = "emitted"
	logAttrFailed         = "failed"
	logAttrElapsed        = "elapsed"
	logAttrRate           = "events_per_second"
)

var (
	// ErrNilGenerator is returned when a producer is built without a generator.
	ErrNilGenerator = errors.New("nil generator supplied")

	// ErrNoEntities is returned when a producer has no entities to drive.
	ErrNoEntities = errors.New("producer needs at least one entity")

	// ErrInvalidTotalEvents is returned for a negative event count.
	ErrInvalidTotalEvents = errors.New("total events must not be negative")

	// ErrInvalidDelay is returned for a negative inter-event delay.
	ErrInvalidDelay = errors.New("producer delay must not be negative")
)

// Stats summarizes a producer run.
type Stats struct {
	Emitted int
	Failed  int
	Elapsed time.Duration
}

// Producer drives a fixed pool of entities with one Generator, pausing between emissions.
// The pool is owned exclusively so no entity is updated by two producers at once.
type Producer struct {
	generator *Generator
	entities  []int
	total     int
	delay     time.Duration
	name      string
	logger    streams.Logger

	mu        sync.Mutex
	emitted   int
	failed    int
	startTime time.Time
	stopTime  time.Time
}

// ProducerOption defines a functional option for configuring Producer.
type ProducerOption func(*Producer) error

// WithTotalEvents sets how many emissions the producer attempts before it stops.
func WithTotalEvents(total int) ProducerOption {
	return func(p *Producer) error {
		if total < 0 {
			return ErrInvalidTotalEvents
		}

		p.total = total

		return nil
	}
}

// WithDelay sets the pause between two emissions.
func WithDelay(delay time.Duration) ProducerOption {
	return func(p *Producer) error {
		if delay < 0 {
			return ErrInvalidDelay
		}

		p.delay = delay

		return nil
	}
}

// WithProducerName sets the name used in log records.
func WithProducerName(name string) ProducerOption {
	return func(p *Producer) error {
		p.name = name
		return nil
	}
}

// WithProducerLogger sets the logger for start, stop, and failure records.
func WithProducerLogger(logger streams.Logger) ProducerOption {
	return func(p *Producer) error {
		p.logger = logger
		return nil
	}
}

// NewProducer creates a Producer for the given entity pool.
func NewProducer(generator *Generator, entities []int, options ...ProducerOption) (*Producer, error) {
	if generator == nil {
		return nil, ErrNilGenerator
	}

	if len(entities) == 0 {
		return nil, ErrNoEntities
	}

	p := &Producer{
		generator: generator,
		entities:  append([]int(nil), entities...),
		total:     defaultTotalEvents,
		delay:     defaultProducerDelay,
		name:      defaultProducerName,
	}

	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Run emits until the configured total is reached or the context is cancelled.
// Failed emissions count towards the total and are logged; cancellation returns the context error.
func (p *Producer) Run(ctx context.Context) error {
	p.mu.Lock()
	p.startTime = time.Now()
	p.emitted, p.failed = 0, 0
	p.mu.Unlock()

	p.logInfo(logMsgProducerStarted, logAttrProducer, p.name, logAttrTotal, p.total, logAttrEntities, len(p.entities), logAttrDelay, p.delay.String())
	defer p.logFinalStats()

	for attempt := 0; attempt < p.total; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, _, err := p.generator.Emit(ctx, p.generator.pick(p.entities))

		p.mu.Lock()
		if err != nil {
			p.failed++
		} else {
			p.emitted++
		}
		p.mu.Unlock()

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			p.logError(logMsgEmitFailed, err)
		}

		if p.delay == 0 || attempt == p.total-1 {
			continue
		}

		timer := time.NewTimer(p.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return nil
}

// Stats returns the counters of the current or last run.
func (p *Producer) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	end := p.stopTime
	if end.IsZero() || end.Before(p.startTime) {
		end = time.Now()
	}

	return Stats{Emitted: p.emitted, Failed: p.failed, Elapsed: end.Sub(p.startTime)}
}

func (p *Producer) logFinalStats() {
	p.mu.Lock()
	p.stopTime = time.Now()
	p.mu.Unlock()

	stats := p.Stats()
	rate := 0.0
	if stats.Elapsed > 0 {
		rate = float64(stats.Emitted) / stats.Elapsed.Seconds()
	}

	p.logInfo(
		logMsgProducerStopped,
		logAttrProducer, p.name,
		logAttrEmitted, stats.Emitted,
		logAttrFailed, stats.Failed,
		logAttrElapsed, stats.Elapsed.Round(time.Millisecond).String(),
		logAttrRate, rate,
	)
}

func (p *Producer) logInfo(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Producer) logError(msg string, err error) {
	if p.logger != nil {
		p.logger.Error(msg, logAttrError, err.Error(), logAttrProducer, p.name)
	}
}

// PartitionEntities returns the ids in [0, entityCount) owned by one of producers producers.
func PartitionEntities(entityCount, producers, index int) []int {
	if producers < 1 {
		producers = 1
	}

	var ids []int
	for id := index; id < entityCount; id += producers {
		if id >= 0 {
			ids = append(ids, id)
		}
	}

	return ids
}
