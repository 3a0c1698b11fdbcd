package postgres

import (
	"context"
	"database/sql"
)

// DB is the query surface repositories need. Satisfied by *sql.DB and by
// database.PostgresDB's circuit-breaker wrapper.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}
