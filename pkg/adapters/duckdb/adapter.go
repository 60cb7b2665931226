// Package duckdb provides a DuckDB connector for local database files.
//
// Connection strings have the form duckdb://<path>[?setting=value...].
// An empty path opens a fresh in-memory database on every call.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/leapstack-labs/leapdesk/pkg/adapter"
	"github.com/leapstack-labs/leapdesk/pkg/core"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Scheme is the connection string scheme handled by this connector.
const Scheme = "duckdb"

const memoryPath = ":memory:"

// Connector implements adapter.Connector for DuckDB.
type Connector struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB connector.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Connector{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}}
	c.Open = c.open
	return c
}

// DSN converts a duckdb:// connection string to a driver DSN.
func DSN(connectionString string) (string, error) {
	prefix := Scheme + "://"
	if len(connectionString) < len(prefix) || !strings.EqualFold(connectionString[:len(prefix)], prefix) {
		return "", &core.MalformedConnectionStringError{
			Input:  connectionString,
			Reason: "expected " + prefix + "<path>",
		}
	}
	rest := connectionString[len(prefix):]
	path, query, _ := strings.Cut(rest, "?")
	if path == "" {
		path = memoryPath
	}
	if query != "" {
		return path + "?" + query, nil
	}
	return path, nil
}

func (c *Connector) open(_ context.Context, connectionString string) (*sql.DB, error) {
	dsn, err := DSN(connectionString)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	return db, nil
}

// CheckConnectivity reports whether the database file exists and opens.
// Unlike queries it never creates a missing file.
func (c *Connector) CheckConnectivity(ctx context.Context, connectionString string) bool {
	dsn, err := DSN(connectionString)
	if err != nil {
		c.Logger.Debug("connectivity check failed", "error", err)
		return false
	}
	path, _, _ := strings.Cut(dsn, "?")
	if path != memoryPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			c.Logger.Debug("connectivity check failed", "path", path, "error", err)
			return false
		}
	}
	return c.BaseSQLAdapter.CheckConnectivity(ctx, connectionString)
}

// Ensure Connector implements adapter.Connector interface
var _ adapter.Connector = (*Connector)(nil)
