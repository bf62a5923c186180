package postgresengine

import (
	"context"
	"errors"
	"strconv"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
)

// Get returns the raw counter value.
func (s Store) Get(ctx context.Context, key string) (string, bool, error) {
	query, err := s.buildGetCounterQuery(key)
	if err != nil {
		return "", false, err
	}

	var value string
	found, err := s.queryRow(ctx, operationGet, query, &value)
	if err != nil {
		return "", false, errors.Join(streams.ErrCounterFailed, err)
	}

	return value, found, nil
}

// Set upserts the counter value.
func (s Store) Set(ctx context.Context, key, value string) error {
	query, err := s.buildSetCounterQuery(key, value)
	if err != nil {
		return err
	}

	if _, err = s.exec(ctx, operationSet, query); err != nil {
		return errors.Join(streams.ErrCounterFailed, err)
	}

	return nil
}

// Incr increments the counter in one statement, inserting 1 for a missing key.
func (s Store) Incr(ctx context.Context, key string) (int64, error) {
	query, err := s.buildIncrCounterQuery(key)
	if err != nil {
		return 0, err
	}

	var raw string
	if _, err = s.queryRow(ctx, operationIncr, query, &raw); err != nil {
		if isNotAnInteger(err) {
			return 0, errors.Join(streams.ErrNotAnInteger, err)
		}

		return 0, errors.Join(streams.ErrCounterFailed, err)
	}

	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.Join(streams.ErrNotAnInteger, err)
	}

	return value, nil
}

func (s Store) buildGetCounterQuery(key string) (string, error) {
	return toSQL(
		builder().
			From(s.countersTableName).
			Select(colValue).
			Where(goqu.C(colKey).Eq(key)),
	)
}

func (s Store) buildSetCounterQuery(key, value string) (string, error) {
	return toSQL(
		builder().
			Insert(s.countersTableName).
			Rows(goqu.Record{colKey: key, colValue: value}).
			OnConflict(goqu.DoUpdate(colKey, goqu.Record{colValue: goqu.L("EXCLUDED." + colValue)})),
	)
}

func (s Store) buildIncrCounterQuery(key string) (string, error) {
	incremented := goqu.L("((?)::bigint + 1)::text", goqu.T(s.countersTableName).Col(colValue))

	return toSQL(
		builder().
			Insert(s.countersTableName).
			Rows(goqu.Record{colKey: key, colValue: "1"}).
			OnConflict(goqu.DoUpdate(colKey, goqu.Record{colValue: incremented})).
			Returning(colValue),
	)
}

// isNotAnInteger detects the cast failure of a non-numeric counter with either driver.
func isNotAnInteger(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateInvalidText || pgErr.Code == sqlStateOutOfRange
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == sqlStateInvalidText || string(pqErr.Code) == sqlStateOutOfRange
	}

	return false
}
