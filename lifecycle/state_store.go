package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

var (
	// ErrCorruptState matches a counter that holds a non-numeric value.
	ErrCorruptState = errors.New("entity state is not numeric")

	// ErrNilCounters is returned when the state store is built without a counter store.
	ErrNilCounters = errors.New("nil counter store supplied")

	// ErrNilKeys is returned when the state store is built without a key scheme.
	ErrNilKeys = errors.New("nil key scheme supplied")
)

// CorruptValueError carries the raw text of a corrupt counter.
type CorruptValueError struct {
	Key string
	Raw string
}

func (e *CorruptValueError) Error() string {
	return fmt.Sprintf("key %q holds non-numeric value %q", e.Key, e.Raw)
}

// Is makes errors.Is(err, ErrCorruptState) match.
func (e *CorruptValueError) Is(target error) bool {
	return target == ErrCorruptState
}

// Keys names the two counters of an entity. routing.Router implements it.
type Keys interface {
	StageKey(entityID int) string
	OrderKey(entityID int) string
}

// StateStore keeps each entity's stage and order sequence in the counter store.
// It holds no state of its own, so any number of producers can share one store.
type StateStore struct {
	counters streams.Counters
	keys     Keys
}

// NewStateStore creates a StateStore.
func NewStateStore(counters streams.Counters, keys Keys) (*StateStore, error) {
	if counters == nil {
		return nil, ErrNilCounters
	}

	if keys == nil {
		return nil, ErrNilKeys
	}

	return &StateStore{counters: counters, keys: keys}, nil
}

// Stage returns the current stage, or false when the entity has no state yet.
func (s *StateStore) Stage(ctx context.Context, entityID int) (Stage, bool, error) {
	value, found, err := s.read(ctx, s.keys.StageKey(entityID))
	if err != nil || !found {
		return StageNew, found, err
	}

	return Stage(value), true, nil
}

// Advance atomically moves the stage one step forward and returns the new stage.
func (s *StateStore) Advance(ctx context.Context, entityID int) (Stage, error) {
	key := s.keys.StageKey(entityID)

	next, err := s.counters.Incr(ctx, key)
	if err != nil {
		return StageNew, s.wrapIncrError(ctx, key, err)
	}

	return Stage(next), nil
}

// Reset puts the entity back to StageNew.
func (s *StateStore) Reset(ctx context.Context, entityID int) error {
	return s.counters.Set(ctx, s.keys.StageKey(entityID), strconv.Itoa(int(StageNew)))
}

// Cancel force-sets the cancelled sentinel.
func (s *StateStore) Cancel(ctx context.Context, entityID int) error {
	return s.counters.Set(ctx, s.keys.StageKey(entityID), strconv.Itoa(int(StageCancelled)))
}

// NextOrderSequence atomically increments the order sequence and returns it.
func (s *StateStore) NextOrderSequence(ctx context.Context, entityID int) (int64, error) {
	key := s.keys.OrderKey(entityID)

	next, err := s.counters.Incr(ctx, key)
	if err != nil {
		return 0, s.wrapIncrError(ctx, key, err)
	}

	return next, nil
}

// OrderSequence returns the current order sequence, or false when no order was opened yet.
func (s *StateStore) OrderSequence(ctx context.Context, entityID int) (int64, bool, error) {
	return s.read(ctx, s.keys.OrderKey(entityID))
}

func (s *StateStore) read(ctx context.Context, key string) (int64, bool, error) {
	raw, found, err := s.counters.Get(ctx, key)
	if err != nil || !found {
		return 0, found, err
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, true, &CorruptValueError{Key: key, Raw: raw}
	}

	return value, true, nil
}

// wrapIncrError turns an integer-parse failure of the store into a CorruptValueError with the raw text.
func (s *StateStore) wrapIncrError(ctx context.Context, key string, err error) error {
	if !errors.Is(err, streams.ErrNotAnInteger) {
		return err
	}

	raw, _, getErr := s.counters.Get(ctx, key)
	if getErr != nil {
		return err
	}

	return &CorruptValueError{Key: key, Raw: raw}
}
