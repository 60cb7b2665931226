// Package adapter defines the database connector boundary.
//
// A Connector is stateless with respect to the caller: every operation takes
// the connection string it should run against. Concrete connectors live in
// pkg/adapters subdirectories and register themselves by URL scheme.
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/leapdesk/pkg/core"
)

// Connector is the contract every database connector implements.
type Connector interface {
	// CheckConnectivity reports whether a connection can be established.
	CheckConnectivity(ctx context.Context, connectionString string) bool

	// FetchSchemas returns every schema with its tables and columns.
	// System schemas are included; callers filter them as needed.
	FetchSchemas(ctx context.Context, connectionString string) ([]core.Schema, error)

	// RunSQL executes sql and returns the result as a serialized
	// core.QueryResult payload.
	RunSQL(ctx context.Context, sql, connectionString string) ([]byte, error)
}

// OpenFunc opens a database handle for a connection string.
type OpenFunc func(ctx context.Context, connectionString string) (*sql.DB, error)
