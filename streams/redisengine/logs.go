package redisengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

// Append runs XADD with an auto-generated id.
func (s Store) Append(ctx context.Context, log string, fields map[string]string) (string, error) {
	if log == "" {
		return "", streams.ErrEmptyLogName
	}

	values := make(map[string]any, len(fields))
	for name, value := range fields {
		values[name] = value
	}

	start := time.Now()
	id, err := s.client.XAdd(ctx, &redis.XAddArgs{Stream: log, Values: values}).Result()
	s.observe(ctx, commandXAdd, start, err, logAttrLog, log)

	if err != nil {
		return "", errors.Join(streams.ErrAppendFailed, err)
	}

	return id, nil
}

// CreateGroup runs XGROUP CREATE with MKSTREAM.
func (s Store) CreateGroup(ctx context.Context, log, group, startID string) error {
	if log == "" {
		return streams.ErrEmptyLogName
	}

	if group == "" {
		return streams.ErrEmptyGroupName
	}

	if startID == "" {
		startID = streams.StartBeginning
	}

	start := time.Now()
	err := s.client.XGroupCreateMkStream(ctx, log, group, startID).Err()

	if isBusyGroup(err) {
		s.observe(ctx, commandXGroupCreate, start, nil, logAttrLog, log, logAttrGroup, group)
		return errors.Join(streams.ErrGroupExists, err)
	}

	s.observe(ctx, commandXGroupCreate, start, err, logAttrLog, log, logAttrGroup, group)

	if err != nil {
		return errors.Join(streams.ErrCreateGroupFailed, err)
	}

	return nil
}

// ReadGroup runs one XREADGROUP across all cursors. A timed out block returns no batches.
func (s Store) ReadGroup(ctx context.Context, args streams.ReadGroupArgs) ([]streams.Batch, error) {
	if args.Group == "" {
		return nil, streams.ErrEmptyGroupName
	}

	if args.Consumer == "" {
		return nil, streams.ErrEmptyConsumerName
	}

	keys := make([]string, 0, 2*len(args.Cursors))
	for _, cursor := range args.Cursors {
		if cursor.Log == "" {
			return nil, streams.ErrEmptyLogName
		}

		keys = append(keys, cursor.Log)
	}

	for _, cursor := range args.Cursors {
		keys = append(keys, cursor.After)
	}

	start := time.Now()
	result, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    args.Group,
		Consumer: args.Consumer,
		Streams:  keys,
		Count:    int64(args.Count),
		Block:    blockArg(args.Block),
	}).Result()

	if errors.Is(err, redis.Nil) {
		s.observe(ctx, commandXReadGroup, start, nil, logAttrGroup, args.Group, logAttrConsumer, args.Consumer)
		return nil, nil
	}

	s.observe(ctx, commandXReadGroup, start, err, logAttrGroup, args.Group, logAttrConsumer, args.Consumer)

	if err != nil {
		if isNoGroup(err) {
			s.logWarn(logMsgUnknownGroup, logAttrGroup, args.Group, logAttrError, err.Error())
			return nil, errors.Join(streams.ErrUnknownGroup, err)
		}

		return nil, errors.Join(streams.ErrReadGroupFailed, err)
	}

	batches := make([]streams.Batch, 0, len(result))
	for _, stream := range result {
		if len(stream.Messages) == 0 {
			continue
		}

		batches = append(batches, streams.Batch{Log: stream.Stream, Entries: toEntries(stream.Messages)})
	}

	return batches, nil
}

// Ack runs XACK.
func (s Store) Ack(ctx context.Context, log, group string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	start := time.Now()
	err := s.client.XAck(ctx, log, group, ids...).Err()
	s.observe(ctx, commandXAck, start, err, logAttrLog, log, logAttrGroup, group)

	if err != nil {
		return errors.Join(streams.ErrAckFailed, err)
	}

	return nil
}

// LastEntry runs XREVRANGE with a count of one.
func (s Store) LastEntry(ctx context.Context, log string) (streams.Entry, bool, error) {
	start := time.Now()
	messages, err := s.client.XRevRangeN(ctx, log, "+", "-", 1).Result()
	s.observe(ctx, commandXRevRange, start, err, logAttrLog, log)

	if err != nil {
		return streams.Entry{}, false, errors.Join(streams.ErrReadFailed, fmt.Errorf("log %q: %w", log, err))
	}

	if len(messages) == 0 {
		return streams.Entry{}, false, nil
	}

	return toEntries(messages)[0], true, nil
}

func toEntries(messages []redis.XMessage) []streams.Entry {
	entries := make([]streams.Entry, 0, len(messages))

	for _, message := range messages {
		fields := make(map[string]string, len(message.Values))
		for name, value := range message.Values {
			fields[name] = fmt.Sprint(value)
		}

		entries = append(entries, streams.Entry{ID: message.ID, Fields: fields})
	}

	return entries
}
