// Package generator emits stochastic order lifecycle events into per-entity logs.
//
// Each event advances the entity's stage held in the counter store: an entity without state opens an order,
// a terminal stage reopens one with the next order sequence, and two overlays occasionally relabel events
// as delayed or cancelled. All randomness comes from an injectable seeded source.
package generator

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/AntonStoeckl/order-lifecycle-streams/lifecycle"
	"github.com/AntonStoeckl/order-lifecycle-streams/routing"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

const (
	// DefaultDelayProbability is the chance that an order in flight reports a delay instead of advancing.
	DefaultDelayProbability = 0.05

	// DefaultCancelProbability is the chance that an advanced order is cancelled.
	DefaultCancelProbability = 1.0 / 222

	// DefaultMaxItems bounds the number of items of a new order.
	DefaultMaxItems = 9
)

const (
	logMsgCorruptStage    = "corrupt stage counter, opening a new order"
	logMsgCorruptSequence = "corrupt order sequence, using raw value in order id"
	logMsgMissingSequence = "order in flight has no sequence, allocating one"
	logMsgEventEmitted    = "lifecycle event emitted"
	logMsgAppendFailed    = "appending lifecycle event failed"
	logAttrEntityID       = "entity_id"
	logAttrLog            = "log"
	logAttrEntryID        = "entry_id"
	logAttrStage          = "stage"
	logAttrOrderID        = "order_id"
	logAttrKey            = "key"
	logAttrRaw            = "raw"
	logAttrError          = "error"
	logAttrDurationMS     = "duration_ms"
	metricEventsEmitted   = "producer_events_emitted_total"
	metricEmitDuration    = "producer_emit_duration_seconds"
	metricEmitErrors      = "producer_emit_errors_total"
	labelStage            = "stage"
	labelStatus           = "status"
)

var (
	// ErrNilLogClient is returned when the generator is built without a log client.
	ErrNilLogClient = errors.New("nil log client supplied")

	// ErrNilStateStore is returned when the generator is built without a state store.
	ErrNilStateStore = errors.New("nil state store supplied")

	// ErrUnconfiguredRouter is returned for a zero-value router.
	ErrUnconfiguredRouter = errors.New("router has no shards")

	// ErrInvalidProbability is returned for probabilities outside [0, 1].
	ErrInvalidProbability = errors.New("probability must be between 0 and 1")

	// ErrInvalidMaxItems is returned for item bounds below one.
	ErrInvalidMaxItems = errors.New("max items must be at least 1")

	// ErrStateUnavailable wraps failures to read or update entity state.
	ErrStateUnavailable = errors.New("entity state unavailable")
)

// Generator derives and appends lifecycle events. It is not safe for concurrent use.
type Generator struct {
	logs              streams.LogClient
	states            *lifecycle.StateStore
	router            routing.Router
	rng               *rand.Rand
	fake              FakeData
	delayProbability  float64
	cancelProbability float64
	maxItems          int
	logger            streams.Logger
	contextualLogger  streams.ContextualLogger
	metricsCollector  streams.MetricsCollector
}

// Option defines a functional option for configuring Generator.
type Option func(*Generator) error

// WithSeed seeds both the lifecycle randomness and the fake data.
func WithSeed(seed uint64) Option {
	return func(g *Generator) error {
		g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		g.fake = NewGofakeitData(seed)

		return nil
	}
}

// WithRand replaces the lifecycle randomness source.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) error {
		g.rng = rng
		return nil
	}
}

// WithFakeData replaces the fake data provider.
func WithFakeData(fake FakeData) Option {
	return func(g *Generator) error {
		g.fake = fake
		return nil
	}
}

// WithDelayProbability sets the chance of the delayed overlay.
func WithDelayProbability(p float64) Option {
	return func(g *Generator) error {
		if p < 0 || p > 1 {
			return ErrInvalidProbability
		}

		g.delayProbability = p

		return nil
	}
}

// WithCancelProbability sets the chance of the cancelled overlay.
func WithCancelProbability(p float64) Option {
	return func(g *Generator) error {
		if p < 0 || p > 1 {
			return ErrInvalidProbability
		}

		g.cancelProbability = p

		return nil
	}
}

// WithMaxItems bounds the item count of new orders.
func WithMaxItems(n int) Option {
	return func(g *Generator) error {
		if n < 1 {
			return ErrInvalidMaxItems
		}

		g.maxItems = n

		return nil
	}
}

// WithLogger sets the logger.
// Debug level: every emitted event
// Warn level: corrupt entity state
// Error level: failed appends.
func WithLogger(logger streams.Logger) Option {
	return func(g *Generator) error {
		g.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger used in addition to the plain logger.
func WithContextualLogger(logger streams.ContextualLogger) Option {
	return func(g *Generator) error {
		g.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for emitted events, emit durations, and errors.
func WithMetrics(collector streams.MetricsCollector) Option {
	return func(g *Generator) error {
		g.metricsCollector = collector
		return nil
	}
}

// NewGenerator creates a Generator. Without WithSeed or WithRand it seeds from the clock.
func NewGenerator(logs streams.LogClient, states *lifecycle.StateStore, router routing.Router, options ...Option) (*Generator, error) {
	if logs == nil {
		return nil, ErrNilLogClient
	}

	if states == nil {
		return nil, ErrNilStateStore
	}

	if router.Shards() < 1 {
		return nil, ErrUnconfiguredRouter
	}

	seed := uint64(time.Now().UnixNano())
	g := &Generator{
		logs:              logs,
		states:            states,
		router:            router,
		rng:               rand.New(rand.NewPCG(seed, seed>>1)),
		fake:              NewGofakeitData(seed),
		delayProbability:  DefaultDelayProbability,
		cancelProbability: DefaultCancelProbability,
		maxItems:          DefaultMaxItems,
	}

	for _, option := range options {
		if err := option(g); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// Emit derives the entity's next event and appends it to the entity's log.
// It returns the event and the assigned entry id.
func (g *Generator) Emit(ctx context.Context, entityID int) (lifecycle.Event, string, error) {
	start := time.Now()

	event, err := g.Next(ctx, entityID)
	if err != nil {
		g.recordEmit(ctx, event, streams.StatusError, time.Since(start))
		return lifecycle.Event{}, "", err
	}

	log := g.router.LogName(entityID)

	id, err := g.logs.Append(ctx, log, event.Fields())
	if err != nil {
		g.logError(ctx, logMsgAppendFailed, err, logAttrEntityID, entityID, logAttrLog, log)
		g.recordEmit(ctx, event, streams.StatusError, time.Since(start))

		return lifecycle.Event{}, "", err
	}

	duration := time.Since(start)
	g.logDebug(
		ctx,
		logMsgEventEmitted,
		logAttrLog, log,
		logAttrEntryID, id,
		logAttrStage, event.Label,
		logAttrOrderID, event.OrderID,
		logAttrDurationMS, toMilliseconds(duration),
	)
	g.recordEmit(ctx, event, streams.StatusSuccess, duration)

	return event, id, nil
}

// Next moves the entity's state one step and returns the resulting event without appending it.
func (g *Generator) Next(ctx context.Context, entityID int) (lifecycle.Event, error) {
	current, found, err := g.states.Stage(ctx, entityID)
	switch {
	case errors.Is(err, lifecycle.ErrCorruptState):
		g.logCorrupt(ctx, logMsgCorruptStage, entityID, err)
		return g.openOrder(ctx, entityID)
	case err != nil:
		return lifecycle.Event{}, errors.Join(ErrStateUnavailable, err)
	case !found:
		return g.openOrder(ctx, entityID)
	}

	if current > lifecycle.StageNew && current < lifecycle.StageCompleted && g.rng.Float64() < g.delayProbability {
		orderID, err := g.currentOrderID(ctx, entityID)
		if err != nil {
			return lifecycle.Event{}, err
		}

		return lifecycle.Event{
			EntityID: entityID,
			Stage:    current,
			Label:    lifecycle.LabelDelayed,
			OrderID:  orderID,
		}, nil
	}

	next, err := g.states.Advance(ctx, entityID)
	switch {
	case errors.Is(err, lifecycle.ErrCorruptState):
		g.logCorrupt(ctx, logMsgCorruptStage, entityID, err)
		return g.openOrder(ctx, entityID)
	case err != nil:
		return lifecycle.Event{}, errors.Join(ErrStateUnavailable, err)
	case next > lifecycle.StageCompleted:
		return g.openOrder(ctx, entityID)
	}

	orderID, err := g.currentOrderID(ctx, entityID)
	if err != nil {
		return lifecycle.Event{}, err
	}

	event := lifecycle.Event{
		EntityID: entityID,
		Stage:    next,
		Label:    next.Label(),
		OrderID:  orderID,
	}

	if g.rng.Float64() < g.cancelProbability {
		if err := g.states.Cancel(ctx, entityID); err != nil {
			return lifecycle.Event{}, errors.Join(ErrStateUnavailable, err)
		}

		event.Stage = lifecycle.StageCancelled
		event.Label = lifecycle.StageCancelled.Label()
	}

	return event, nil
}

// openOrder resets the entity to StageNew under the next order sequence and builds the full order payload.
func (g *Generator) openOrder(ctx context.Context, entityID int) (lifecycle.Event, error) {
	if err := g.states.Reset(ctx, entityID); err != nil {
		return lifecycle.Event{}, errors.Join(ErrStateUnavailable, err)
	}

	var orderID string
	seq, err := g.states.NextOrderSequence(ctx, entityID)
	var corrupt *lifecycle.CorruptValueError
	switch {
	case errors.As(err, &corrupt):
		g.logCorrupt(ctx, logMsgCorruptSequence, entityID, err)
		orderID = lifecycle.OrderIDFromRaw(entityID, corrupt.Raw)
	case err != nil:
		return lifecycle.Event{}, errors.Join(ErrStateUnavailable, err)
	default:
		orderID = lifecycle.OrderID(entityID, seq)
	}

	itemCount := 1 + g.rng.IntN(g.maxItems)
	items := make([]string, 0, itemCount)
	cost := 0.0
	for range itemCount {
		items = append(items, g.fake.Ingredient())
		cost += g.fake.ItemPrice()
	}

	return lifecycle.Event{
		EntityID:    entityID,
		Stage:       lifecycle.StageNew,
		Label:       lifecycle.StageNew.Label(),
		OrderID:     orderID,
		Items:       items,
		ContactName: g.fake.ContactName(),
		Cost:        roundCents(cost),
	}, nil
}

// pick draws one entity id from the pool.
func (g *Generator) pick(entities []int) int {
	return entities[g.rng.IntN(len(entities))]
}

// currentOrderID reads the order sequence of an order in flight. A missing sequence is allocated,
// a corrupt one is used as raw text.
func (g *Generator) currentOrderID(ctx context.Context, entityID int) (string, error) {
	seq, found, err := g.states.OrderSequence(ctx, entityID)
	if err == nil && !found {
		g.logCorrupt(ctx, logMsgMissingSequence, entityID, nil)
		seq, err = g.states.NextOrderSequence(ctx, entityID)
	}

	var corrupt *lifecycle.CorruptValueError
	switch {
	case errors.As(err, &corrupt):
		g.logCorrupt(ctx, logMsgCorruptSequence, entityID, err)
		return lifecycle.OrderIDFromRaw(entityID, corrupt.Raw), nil
	case err != nil:
		return "", errors.Join(ErrStateUnavailable, err)
	}

	return lifecycle.OrderID(entityID, seq), nil
}
