package redisengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

const (
	cmdJSONArrAppend = "JSON.ARRAPPEND"
	legacyRootPath   = "."
)

var json = jsoniter.ConfigFastest

// DocumentExists runs EXISTS.
func (s Store) DocumentExists(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	count, err := s.client.Exists(ctx, key).Result()
	s.observe(ctx, commandExists, start, err, logAttrKey, key)

	if err != nil {
		return false, errors.Join(streams.ErrDocumentFailed, err)
	}

	return count > 0, nil
}

// Document runs JSON.GET on the root.
func (s Store) Document(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	raw, err := s.client.JSONGet(ctx, key, legacyRootPath).Result()

	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		s.observe(ctx, commandJSONGet, start, nil, logAttrKey, key)
		return nil, false, nil
	}

	s.observe(ctx, commandJSONGet, start, err, logAttrKey, key)

	if err != nil {
		return nil, false, errors.Join(streams.ErrDocumentFailed, err)
	}

	return []byte(raw), true, nil
}

// SetAt runs JSON.SET. A nil reply means the parent of the path is missing.
func (s Store) SetAt(ctx context.Context, key string, path streams.Path, valueJSON []byte) error {
	if !json.Valid(valueJSON) {
		return streams.ErrInvalidJSON
	}

	start := time.Now()
	err := s.client.JSONSet(ctx, key, path.String(), string(valueJSON)).Err()

	switch {
	case errors.Is(err, redis.Nil):
		s.observe(ctx, commandJSONSet, start, nil, logAttrKey, key, logAttrPath, path.String())
		return errors.Join(streams.ErrPathNotFound, fmt.Errorf("%s", path))
	case isMissingDocument(err):
		s.observe(ctx, commandJSONSet, start, nil, logAttrKey, key, logAttrPath, path.String())
		return errors.Join(streams.ErrDocumentNotFound, err)
	}

	s.observe(ctx, commandJSONSet, start, err, logAttrKey, key, logAttrPath, path.String())

	if err != nil {
		return errors.Join(streams.ErrDocumentFailed, err)
	}

	return nil
}

// ArrAppend runs JSON.ARRAPPEND. The reply carries one length per matched path, nil for non-arrays.
func (s Store) ArrAppend(ctx context.Context, key string, path streams.Path, valueJSON []byte) error {
	if !json.Valid(valueJSON) {
		return streams.ErrInvalidJSON
	}

	start := time.Now()
	reply, err := s.client.Do(ctx, cmdJSONArrAppend, key, path.String(), string(valueJSON)).Result()

	if isMissingDocument(err) {
		s.observe(ctx, commandJSONArrAppend, start, nil, logAttrKey, key, logAttrPath, path.String())
		return errors.Join(streams.ErrDocumentNotFound, err)
	}

	s.observe(ctx, commandJSONArrAppend, start, err, logAttrKey, key, logAttrPath, path.String())

	if err != nil {
		return errors.Join(streams.ErrDocumentFailed, err)
	}

	return arrAppendResult(reply, path)
}

func arrAppendResult(reply any, path streams.Path) error {
	lengths, ok := reply.([]any)
	if !ok {
		// Legacy single-path replies are a plain integer.
		if _, isInt := reply.(int64); isInt {
			return nil
		}

		return errors.Join(streams.ErrDocumentFailed, fmt.Errorf("unexpected reply %T", reply))
	}

	if len(lengths) == 0 {
		return errors.Join(streams.ErrPathNotFound, fmt.Errorf("%s", path))
	}

	for _, length := range lengths {
		if length == nil {
			return errors.Join(streams.ErrPathNotArray, fmt.Errorf("%s", path))
		}
	}

	return nil
}

// DeleteAt runs JSON.DEL, which deletes the key for the root path.
func (s Store) DeleteAt(ctx context.Context, key string, path streams.Path) error {
	start := time.Now()
	err := s.client.JSONDel(ctx, key, path.String()).Err()

	if errors.Is(err, redis.Nil) {
		err = nil
	}

	s.observe(ctx, commandJSONDel, start, err, logAttrKey, key, logAttrPath, path.String())

	if err != nil {
		return errors.Join(streams.ErrDocumentFailed, err)
	}

	return nil
}
