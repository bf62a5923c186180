// Package adapters let the PostgreSQL engine run on pgxpool.Pool, sql.DB, or sqlx.DB.
//
// Every adapter executes fully interpolated SQL strings and exposes the rows and results
// through the same small interfaces.
package adapters
