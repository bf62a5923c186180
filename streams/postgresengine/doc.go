// Package postgresengine stores counters and JSON documents in PostgreSQL.
//
// It implements streams.Counters and streams.Documents on two tables:
//
//	order_counters(key text PRIMARY KEY, value text NOT NULL)
//	order_documents(key text PRIMARY KEY, body jsonb NOT NULL)
//
// Documents are updated in place with jsonb_set, the #- operator, and array concatenation. Path semantics
// follow RedisJSON: only the last step of a path may be missing and array indexes must be in range.
// The engine does not implement logs; pair it with a streams.LogClient from another engine.
//
// Stores can be built from a pgxpool.Pool, a sql.DB, or a sqlx.DB. All SQL is built with goqu.
package postgresengine
