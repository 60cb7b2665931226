// Package catalog loads and caches database schemas per connection.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/leapstack-labs/leapdesk/pkg/core"
	"golang.org/x/sync/singleflight"
)

// DefaultSize is the number of connections whose schemas are cached.
const DefaultSize = 64

// Fetcher retrieves schemas from a database.
type Fetcher interface {
	FetchSchemas(ctx context.Context, connectionString string) ([]core.Schema, error)
}

// Catalog caches schemas by connection string. Concurrent loads of the
// same connection share a single fetch. Returned slices are shared and
// must not be modified.
type Catalog struct {
	fetcher Fetcher
	timeout time.Duration
	cache   *ristretto.Cache[string, []core.Schema]
	group   singleflight.Group
	logger  *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithFetchTimeout bounds a shared fetch. Zero disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Catalog) {
		c.timeout = d
	}
}

// New creates a catalog holding at most size entries.
// A size of zero or less uses DefaultSize.
func New(fetcher Fetcher, size int64, logger *slog.Logger, opts ...Option) (*Catalog, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if size <= 0 {
		size = DefaultSize
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, []core.Schema]{
		NumCounters:        size * 10,
		MaxCost:            size,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create schema cache: %w", err)
	}

	c := &Catalog{
		fetcher: fetcher,
		cache:   cache,
		logger:  logger.With("component", "catalog"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Load returns the schemas of a connection, fetching them on a cache miss.
// Fetch failures are returned as *core.ConnectivityError and not retried.
// Cancelling ctx abandons the wait but not a fetch shared with other callers.
func (c *Catalog) Load(ctx context.Context, connectionString string) ([]core.Schema, error) {
	if schemas, ok := c.cache.Get(connectionString); ok {
		return schemas, nil
	}
	return c.fetch(ctx, connectionString)
}

// Refresh discards the cached schemas and fetches them again. A fetch
// already in flight is not joined.
func (c *Catalog) Refresh(ctx context.Context, connectionString string) ([]core.Schema, error) {
	c.group.Forget(connectionString)
	c.cache.Del(connectionString)
	return c.fetch(ctx, connectionString)
}

// Invalidate drops the cached schemas of a connection. A fetch in flight
// keeps serving the callers that joined it.
func (c *Catalog) Invalidate(connectionString string) {
	c.cache.Del(connectionString)
}

// Cached reports whether a connection's schemas are in the cache.
func (c *Catalog) Cached(connectionString string) bool {
	_, ok := c.cache.Get(connectionString)
	return ok
}

// Close releases the cache.
func (c *Catalog) Close() {
	c.cache.Close()
}

func (c *Catalog) fetch(ctx context.Context, connectionString string) ([]core.Schema, error) {
	// A shared fetch is not cancelled by any one caller.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(connectionString, func() (any, error) {
		fctx := fetchCtx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, c.timeout)
			defer cancel()
		}
		schemas, err := c.fetcher.FetchSchemas(fctx, connectionString)
		if err != nil {
			return nil, asLoadError(connectionString, err)
		}
		if schemas == nil {
			schemas = []core.Schema{}
		}
		c.cache.Set(connectionString, schemas, 1)
		return schemas, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			c.logger.Debug("schema load failed", "error", res.Err)
			return nil, res.Err
		}
		schemas := res.Val.([]core.Schema)
		c.logger.Debug("schemas loaded", "schemas", len(schemas), "shared", res.Shared)
		return schemas, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// asLoadError reports fetch failures as connectivity errors. Timeouts and
// cancellation are returned as they are.
func asLoadError(connectionString string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("load schemas: %w", err)
	}
	var connErr *core.ConnectivityError
	if errors.As(err, &connErr) {
		return err
	}
	return &core.ConnectivityError{
		Op:     "load schemas",
		Target: core.RedactConnectionString(connectionString),
		Err:    err,
	}
}
