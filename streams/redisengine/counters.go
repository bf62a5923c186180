package redisengine

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

// Get runs GET.
func (s Store) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	value, err := s.client.Get(ctx, key).Result()

	if errors.Is(err, redis.Nil) {
		s.observe(ctx, commandGet, start, nil, logAttrKey, key)
		return "", false, nil
	}

	s.observe(ctx, commandGet, start, err, logAttrKey, key)

	if err != nil {
		return "", false, errors.Join(streams.ErrCounterFailed, err)
	}

	return value, true, nil
}

// Set runs SET without expiry.
func (s Store) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := s.client.Set(ctx, key, value, 0).Err()
	s.observe(ctx, commandSet, start, err, logAttrKey, key)

	if err != nil {
		return errors.Join(streams.ErrCounterFailed, err)
	}

	return nil
}

// Incr runs INCR.
func (s Store) Incr(ctx context.Context, key string) (int64, error) {
	start := time.Now()
	value, err := s.client.Incr(ctx, key).Result()
	s.observe(ctx, commandIncr, start, err, logAttrKey, key)

	switch {
	case isNotAnInteger(err):
		return 0, errors.Join(streams.ErrNotAnInteger, err)
	case err != nil:
		return 0, errors.Join(streams.ErrCounterFailed, err)
	}

	return value, nil
}
