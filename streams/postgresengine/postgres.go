package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/order-lifecycle-streams/streams"
	"github.com/AntonStoeckl/order-lifecycle-streams/streams/postgresengine/internal/adapters"
)

const (
	defaultCountersTableName  = "order_counters"
	defaultDocumentsTableName = "order_documents"
	dialectPostgres           = "postgres"
	colKey                    = "key"
	colValue                  = "value"
	colBody                   = "body"
	castJsonb                 = "?::jsonb"
	castTextArray             = "?::text[]"
	sqlStateInvalidText       = "22P02"
	sqlStateOutOfRange        = "22003"
	createCountersTable       = "CREATE TABLE IF NOT EXISTS %s (key text PRIMARY KEY, value text NOT NULL)"
	createDocumentsTable      = "CREATE TABLE IF NOT EXISTS %s (key text PRIMARY KEY, body jsonb NOT NULL)"
)

var (
	// ErrNilDatabaseConnection is returned when a Store is built without a connection.
	ErrNilDatabaseConnection = errors.New("nil database connection supplied")

	// ErrEmptyTableName is returned for an empty table name option.
	ErrEmptyTableName = errors.New("table name must not be empty")

	// ErrBuildingQueryFailed wraps goqu failures.
	ErrBuildingQueryFailed = errors.New("building query failed")

	// ErrScanningRowFailed wraps row scan failures.
	ErrScanningRowFailed = errors.New("scanning database row failed")
)

// Store implements streams.StateAndDocuments on PostgreSQL.
type Store struct {
	db                 adapters.DBAdapter
	countersTableName  string
	documentsTableName string
	logger             streams.Logger
	metricsCollector   streams.MetricsCollector
}

// NewStoreFromPGXPool creates a Store using a pgx Pool.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options)
}

// NewStoreFromSQLDB creates a Store using a sql.DB.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options)
}

// NewStoreFromSQLX creates a Store using a sqlx.DB.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options)
}

func newStore(db adapters.DBAdapter, options []Option) (Store, error) {
	s := Store{
		db:                 db,
		countersTableName:  defaultCountersTableName,
		documentsTableName: defaultDocumentsTableName,
	}

	for _, option := range options {
		if err := option(&s); err != nil {
			return Store{}, err
		}
	}

	return s, nil
}

// EnsureSchema creates both tables when they are missing.
func (s Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(createCountersTable, pgx.Identifier{s.countersTableName}.Sanitize()),
		fmt.Sprintf(createDocumentsTable, pgx.Identifier{s.documentsTableName}.Sanitize()),
	}

	for _, statement := range statements {
		if _, err := s.exec(ctx, operationEnsureSchema, statement); err != nil {
			return err
		}
	}

	return nil
}

func builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

func toSQL(statement sqlBuilder) (string, error) {
	query, _, err := statement.ToSQL()
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return query, nil
}

// exec runs a statement and returns the affected row count.
func (s Store) exec(ctx context.Context, operation, query string) (int64, error) {
	start := time.Now()
	result, err := s.db.Exec(ctx, query)
	duration := time.Since(start)
	s.logQueryWithDuration(query, operation, duration)

	if err != nil {
		s.recordOperation(ctx, operation, streams.StatusError, duration)
		s.logError(logMsgDBExecFailed, err, logAttrOperation, operation, logAttrQuery, query)

		return 0, err
	}

	s.recordOperation(ctx, operation, streams.StatusSuccess, duration)

	return result.RowsAffected()
}

// queryRow runs a query expected to return at most one row and scans it into dest.
func (s Store) queryRow(ctx context.Context, operation, query string, dest ...any) (bool, error) {
	start := time.Now()
	rows, err := s.db.Query(ctx, query)
	duration := time.Since(start)
	s.logQueryWithDuration(query, operation, duration)

	if err != nil {
		s.recordOperation(ctx, operation, streams.StatusError, duration)
		s.logError(logMsgDBQueryFailed, err, logAttrOperation, operation, logAttrQuery, query)

		return false, err
	}
	defer s.closeRows(rows)

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			s.recordOperation(ctx, operation, streams.StatusError, duration)
			s.logError(logMsgDBQueryFailed, err, logAttrOperation, operation, logAttrQuery, query)

			return false, err
		}

		s.recordOperation(ctx, operation, streams.StatusSuccess, duration)

		return false, nil
	}

	if err = rows.Scan(dest...); err != nil {
		s.logError(logMsgScanRowFailed, err, logAttrOperation, operation)
		return false, errors.Join(ErrScanningRowFailed, err)
	}

	s.recordOperation(ctx, operation, streams.StatusSuccess, duration)

	return true, nil
}

func (s Store) closeRows(rows adapters.DBRows) {
	if err := rows.Close(); err != nil && s.logger != nil {
		s.logger.Warn(logMsgCloseRowsFailed, logAttrError, err.Error())
	}
}

var _ streams.StateAndDocuments = Store{}
