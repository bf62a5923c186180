package memengine

import (
	"context"
	"errors"
	"sync"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams/redisengine"
)

// ErrStartFailed is returned when the embedded server cannot be started.
var ErrStartFailed = errors.New("starting the embedded redis server failed")

// Store runs logs and counters on an embedded miniredis server and keeps documents in process memory.
type Store struct {
	server           *miniredis.Miniredis
	client           *redis.Client
	redis            redisengine.Store
	mu               sync.Mutex
	documents        map[string][]byte
	logger           streams.Logger
	metricsCollector streams.MetricsCollector
}

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithLogger sets the logger for the Store and its redis commands.
//
// Debug level: every command with its duration
// Warn level: reads against missing groups.
func WithLogger(logger streams.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for redis command durations and errors.
func WithMetrics(collector streams.MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}

// NewStore starts an embedded server on a loopback port and returns an empty Store on it.
// Close releases the server.
func NewStore(options ...Option) (*Store, error) {
	s := &Store{documents: make(map[string][]byte)}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	server, err := miniredis.Run()
	if err != nil {
		return nil, errors.Join(ErrStartFailed, err)
	}

	client := redis.NewClient(&redis.Options{Addr: server.Addr(), ContextTimeoutEnabled: true})

	var redisOptions []redisengine.Option
	if s.logger != nil {
		redisOptions = append(redisOptions, redisengine.WithLogger(s.logger))
	}

	if s.metricsCollector != nil {
		redisOptions = append(redisOptions, redisengine.WithMetrics(s.metricsCollector))
	}

	engine, err := redisengine.NewStore(client, redisOptions...)
	if err != nil {
		_ = client.Close()
		server.Close()

		return nil, err
	}

	s.server = server
	s.client = client
	s.redis = engine

	return s, nil
}

// Close stops the embedded server. Documents are dropped with the Store.
func (s *Store) Close() {
	_ = s.client.Close()
	s.server.Close()
}

// Addr is the loopback address of the embedded server.
func (s *Store) Addr() string {
	return s.server.Addr()
}

// Append adds an entry to the log.
func (s *Store) Append(ctx context.Context, log string, fields map[string]string) (string, error) {
	return s.redis.Append(ctx, log, fields)
}

// CreateGroup creates a consumer group, creating the log if needed.
func (s *Store) CreateGroup(ctx context.Context, log, group, start string) error {
	return s.redis.CreateGroup(ctx, log, group, start)
}

// ReadGroup reads new or pending entries for a consumer.
func (s *Store) ReadGroup(ctx context.Context, args streams.ReadGroupArgs) ([]streams.Batch, error) {
	return s.redis.ReadGroup(ctx, args)
}

// Ack acknowledges entries of the log for the group.
func (s *Store) Ack(ctx context.Context, log, group string, ids ...string) error {
	return s.redis.Ack(ctx, log, group, ids...)
}

// LastEntry returns the newest entry of the log.
func (s *Store) LastEntry(ctx context.Context, log string) (streams.Entry, bool, error) {
	return s.redis.LastEntry(ctx, log)
}

// Get returns the raw counter value.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	return s.redis.Get(ctx, key)
}

// Set overwrites the counter value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.redis.Set(ctx, key, value)
}

// Incr increments an integer value, creating it at 1.
func (s *Store) Incr(ctx context.Context, key string) (int64, error) {
	return s.redis.Incr(ctx, key)
}

// Len returns the number of entries in the log, zero when it is missing.
func (s *Store) Len(log string) int {
	n, err := s.client.XLen(context.Background(), log).Result()
	if err != nil {
		return 0
	}

	return int(n)
}

// PendingCount returns how many entries of the log are delivered to the consumer but not acknowledged.
func (s *Store) PendingCount(log, group, consumer string) int {
	pending, err := s.client.XPending(context.Background(), log, group).Result()
	if err != nil {
		return 0
	}

	return int(pending.Consumers[consumer])
}

var _ streams.Store = (*Store)(nil)
