// Package postgres provides a PostgreSQL connector backed by pgx.
package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/leapdesk/pkg/adapter"
	"github.com/leapstack-labs/leapdesk/pkg/core"
)

// DefaultConnectTimeout bounds connection establishment when the
// connection string does not set connect_timeout.
const DefaultConnectTimeout = 10 * time.Second

// Connector implements adapter.Connector for PostgreSQL.
// Queries and introspection go through database/sql with the pgx driver.
type Connector struct {
	adapter.BaseSQLAdapter
	ConnectTimeout time.Duration
}

// New creates a new PostgreSQL connector.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Connector{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
		ConnectTimeout: DefaultConnectTimeout,
	}
	c.Open = c.open
	return c
}

// ParseConfig parses a PostgreSQL URL or keyword/value connection string.
func (c *Connector) ParseConfig(connectionString string) (*pgx.ConnConfig, error) {
	cfg, err := pgx.ParseConfig(connectionString)
	if err != nil {
		return nil, &core.MalformedConnectionStringError{
			Input:  connectionString,
			Reason: "not a valid PostgreSQL connection string",
		}
	}
	if cfg.ConnectTimeout == 0 && c.ConnectTimeout > 0 {
		cfg.ConnectTimeout = c.ConnectTimeout
	}
	return cfg, nil
}

func (c *Connector) open(_ context.Context, connectionString string) (*sql.DB, error) {
	cfg, err := c.ParseConfig(connectionString)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("opening postgres connection", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db := stdlib.OpenDB(*cfg)
	db.SetMaxOpenConns(1)
	return db, nil
}

// CheckConnectivity opens a native pgx connection and pings it.
func (c *Connector) CheckConnectivity(ctx context.Context, connectionString string) bool {
	cfg, err := c.ParseConfig(connectionString)
	if err != nil {
		c.Logger.Debug("connectivity check failed", "error", err)
		return false
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		c.Logger.Debug("connectivity check failed", slog.String("host", cfg.Host), "error", err)
		return false
	}
	defer func() { _ = conn.Close(context.WithoutCancel(ctx)) }()

	return conn.Ping(ctx) == nil
}

// Ensure Connector implements adapter.Connector interface
var _ adapter.Connector = (*Connector)(nil)
