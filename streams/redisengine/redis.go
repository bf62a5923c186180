package redisengine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

const (
	errPrefixBusyGroup   = "BUSYGROUP"
	errPrefixNoGroup     = "NOGROUP"
	errTextNotAnInteger  = "not an integer"
	errTextNewAtRoot     = "new objects must be created at the root"
	errTextMissingKey    = "doesn't exist"
	noBlock              = -1 * time.Millisecond
	minimumBlockInterval = time.Millisecond
)

// ErrNilClient is returned when a Store is built without a client.
var ErrNilClient = errors.New("nil redis client supplied")

// Store implements streams.Store on a go-redis client.
type Store struct {
	client           redis.UniversalClient
	logger           streams.Logger
	metricsCollector streams.MetricsCollector
}

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithLogger sets the logger for the Store.
//
// Debug level: every command with its duration
// Warn level: reads against missing groups
// Error level: failed commands.
func WithLogger(logger streams.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for command durations and errors.
func WithMetrics(collector streams.MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}

// NewStore creates a Store on the client. The caller keeps ownership of the client.
func NewStore(client redis.UniversalClient, options ...Option) (Store, error) {
	if client == nil {
		return Store{}, ErrNilClient
	}

	s := Store{client: client}

	for _, option := range options {
		if err := option(&s); err != nil {
			return Store{}, err
		}
	}

	return s, nil
}

// Ping checks the connection.
func (s Store) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.client.Ping(ctx).Err()
	s.observe(ctx, commandPing, start, err)

	return err
}

// blockArg maps the boundary's "zero means do not block" to go-redis, where zero blocks forever.
func blockArg(block time.Duration) time.Duration {
	if block <= 0 {
		return noBlock
	}

	if block < minimumBlockInterval {
		return minimumBlockInterval
	}

	return block
}

func isBusyGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), errPrefixBusyGroup)
}

func isNoGroup(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), errPrefixNoGroup)
}

func isNotAnInteger(err error) bool {
	return err != nil && strings.Contains(err.Error(), errTextNotAnInteger)
}

func isMissingDocument(err error) bool {
	return err != nil && (strings.Contains(err.Error(), errTextNewAtRoot) || strings.Contains(err.Error(), errTextMissingKey))
}

var _ streams.Store = Store{}
