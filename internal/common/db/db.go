package db

import (
	"context"
	"database/sql"
	"errors"
)

// Database defines the operations shared by all SQL backends.
// Repositories depend on this interface so tests can swap in fakes
// without a running server.
type Database interface {
	Querier

	// Transaction executes fn inside a transaction.
	// The transaction is committed if fn returns nil, rolled back otherwise.
	Transaction(ctx context.Context, fn func(tx Transaction) error) error

	// Ping verifies the connection is alive
	Ping(ctx context.Context) error

	// Close closes the connection pool
	Close() error
}

// Querier abstracts query operations shared by a database and a transaction.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
}

// Transaction represents an in-flight database transaction.
type Transaction interface {
	Querier

	Commit() error
	Rollback() error
}

// Rows is the result of a query returning multiple rows.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Row is the result of a query returning at most one row.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result summarizes an executed statement.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// IsNoRows checks if the error is sql.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
