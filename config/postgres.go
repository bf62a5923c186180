package config

import (
	"database/sql"
	"errors"
	"flag"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver for database/sql and sqlx
)

const (
	postgresDriverName        = "postgres"
	postgresMaxConnections    = int32(8)
	postgresMinConnections    = int32(2)
	postgresMaxIdleConns      = 4
	postgresMaxConnLifetime   = time.Hour
	postgresMaxConnIdleTime   = 5 * time.Minute
	postgresHealthCheckPeriod = time.Minute
	postgresConnectTimeout    = 5 * time.Second
)

// ErrInvalidPostgresDSN wraps DSN parse failures.
var ErrInvalidPostgresDSN = errors.New("invalid postgres DSN")

// PostgresConfig describes the connection to PostgreSQL.
type PostgresConfig struct {
	DSN string `env:"DSN"`
}

func (c *PostgresConfig) bind(fs *flag.FlagSet) {
	fs.StringVar(&c.DSN, "postgres-dsn", c.DSN, "postgres connection string, used by the postgres backend")
}

// PGXPoolConfig parses the DSN into a pgxpool configuration with the pool defaults applied.
func (c PostgresConfig) PGXPoolConfig() (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, errors.Join(ErrInvalidPostgresDSN, err)
	}

	poolConfig.MaxConns = postgresMaxConnections
	poolConfig.MinConns = postgresMinConnections
	poolConfig.MaxConnLifetime = postgresMaxConnLifetime
	poolConfig.MaxConnIdleTime = postgresMaxConnIdleTime
	poolConfig.HealthCheckPeriod = postgresHealthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = postgresConnectTimeout

	return poolConfig, nil
}

// OpenSQLDB opens a lib/pq backed *sql.DB. It does not connect; callers ping when they need to.
func (c PostgresConfig) OpenSQLDB() (*sql.DB, error) {
	db, err := sql.Open(postgresDriverName, c.DSN)
	if err != nil {
		return nil, errors.Join(ErrInvalidPostgresDSN, err)
	}

	configurePool(db)

	return db, nil
}

// OpenSQLX opens a lib/pq backed *sqlx.DB. It does not connect; callers ping when they need to.
func (c PostgresConfig) OpenSQLX() (*sqlx.DB, error) {
	db, err := sqlx.Open(postgresDriverName, c.DSN)
	if err != nil {
		return nil, errors.Join(ErrInvalidPostgresDSN, err)
	}

	configurePool(db.DB)

	return db, nil
}

func configurePool(db *sql.DB) {
	db.SetMaxOpenConns(int(postgresMaxConnections))
	db.SetMaxIdleConns(postgresMaxIdleConns)
	db.SetConnMaxLifetime(postgresMaxConnLifetime)
	db.SetConnMaxIdleTime(postgresMaxConnIdleTime)
}
