// Package dialect defines the interfaces and constants used for
// database-specific operations, allowing the engine to support multiple SQL
// backends (SQLite, PostgreSQL) behind one driver abstraction.
package dialect

import "context"

// Supported dialect names.
const (
	SQLite     = "sqlite"
	Postgres   = "postgres"
)

// Driver is the interface every backend-specific driver implements.
type Driver interface {
	ExecQuerier
	Tx(ctx context.Context) (Tx, error)
	Close() error
	Dialect() string
}

// Tx extends Driver with transaction finalization methods.
type Tx interface {
	Driver
	Commit() error
	Rollback() error
}

// ExecQuerier is implemented by both Driver and Tx.
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}
