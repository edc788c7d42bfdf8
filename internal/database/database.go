// Package database owns the SurrealDB connection used by the repositories.
//
// A Database is created once in main, connected, handed to every repository
// and closed on shutdown. Query returns one {status, result} entry per
// statement; Execute runs writes and discards the results. Writes that
// touch several tables at once go through AtomicBatch.
//
// Store errors are classified onto the sentinels below, so callers test
// them with errors.Is:
//
//	if errors.Is(err, database.ErrDuplicate) {
//	    // unique index violated
//	}
package database

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the addressed record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate means a unique index rejected the write.
	ErrDuplicate = errors.New("duplicate record")

	// ErrConnection means the store could not be reached.
	ErrConnection = errors.New("database connection error")

	// ErrQuery means a statement failed for any other reason.
	ErrQuery = errors.New("query error")
)

// Database is the connection the repositories run SurrealQL on
type Database interface {
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Query returns one {status, result} entry per statement
	Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error)

	// Execute runs a query and discards its results
	Execute(ctx context.Context, query string, vars map[string]interface{}) error
}

// Config addresses one SurrealDB namespace and database
type Config struct {
	Host      string
	Port      string
	User      string
	Password  string
	Namespace string
	Database  string
}

// Endpoint is the websocket URL of the server
func (c Config) Endpoint() string {
	return fmt.Sprintf("ws://%s:%s", c.Host, c.Port)
}
