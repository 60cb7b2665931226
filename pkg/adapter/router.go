package adapter

import (
	"context"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leapdesk/pkg/core"
)

// Router is a Connector that dispatches each call to the connector
// registered for the connection string's scheme. Connectors are created
// lazily and reused.
type Router struct {
	mu         sync.Mutex
	connectors map[string]Connector
	logger     *slog.Logger
}

// NewRouter creates a router over the registered connectors.
// If logger is nil, a discard logger is used.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{
		connectors: make(map[string]Connector),
		logger:     logger.With("component", "router"),
	}
}

// Use routes scheme to c, overriding the registry.
func (r *Router) Use(scheme string, c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[scheme] = c
}

// Resolve returns the connector for a connection string.
func (r *Router) Resolve(connectionString string) (Connector, error) {
	scheme := SchemeOf(connectionString)

	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.connectors[scheme]; ok {
		return c, nil
	}
	factory, ok := Get(scheme)
	if !ok || scheme == "" {
		return nil, &UnknownSchemeError{Scheme: scheme, Available: ListSchemes()}
	}
	c := factory(r.logger.With("scheme", scheme))
	r.connectors[scheme] = c
	return c, nil
}

// CheckConnectivity implements Connector. Unknown schemes are unreachable.
func (r *Router) CheckConnectivity(ctx context.Context, connectionString string) bool {
	c, err := r.Resolve(connectionString)
	if err != nil {
		r.logger.Debug("connectivity check skipped", "error", err)
		return false
	}
	return c.CheckConnectivity(ctx, connectionString)
}

// FetchSchemas implements Connector.
func (r *Router) FetchSchemas(ctx context.Context, connectionString string) ([]core.Schema, error) {
	c, err := r.Resolve(connectionString)
	if err != nil {
		return nil, err
	}
	return c.FetchSchemas(ctx, connectionString)
}

// RunSQL implements Connector.
func (r *Router) RunSQL(ctx context.Context, sql, connectionString string) ([]byte, error) {
	c, err := r.Resolve(connectionString)
	if err != nil {
		return nil, err
	}
	return c.RunSQL(ctx, sql, connectionString)
}

var _ Connector = (*Router)(nil)
