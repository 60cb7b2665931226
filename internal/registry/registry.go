// Package registry keeps the list of saved database connections.
//
// The list lives under a single key of a KeyedStore. The registry is the
// only writer of that key.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leapdesk/internal/store"
	"github.com/leapstack-labs/leapdesk/pkg/core"
)

const (
	// StoreName is the file name of the registry store.
	StoreName = ".connections.dat"
	// Key is the store key holding the connection list.
	Key = "connections"
)

// ErrNotFound is returned when no connection has the requested name.
var ErrNotFound = errors.New("connection not found")

type document struct {
	Connections []core.Connection `json:"connections"`
}

// Checker verifies that a connection string reaches a database.
type Checker interface {
	CheckConnectivity(ctx context.Context, connectionString string) bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithConnectivityCheck makes Add reject connection strings that checker
// cannot reach.
func WithConnectivityCheck(checker Checker) Option {
	return func(r *Registry) {
		r.checker = checker
	}
}

// Registry manages saved connections.
type Registry struct {
	mu      sync.Mutex
	store   *store.Store
	owned   bool
	checker Checker
	logger  *slog.Logger
}

// New creates a registry over an open store. The caller keeps ownership
// of the store.
func New(s *store.Store, logger *slog.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Registry{
		store:  s,
		logger: logger.With("component", "registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open opens the registry store inside dir. Close releases it.
func Open(ctx context.Context, dir string, logger *slog.Logger, opts ...Option) (*Registry, error) {
	s, err := store.Open(ctx, store.PathFor(dir, StoreName), logger)
	if err != nil {
		return nil, err
	}
	r := New(s, logger, opts...)
	r.owned = true
	// Other processes may add or remove connections while this one runs.
	if err := s.WatchFile(); err != nil {
		r.logger.Warn("connection changes from other processes will not be seen", "error", err)
	}
	return r, nil
}

// Close closes the store if the registry opened it.
func (r *Registry) Close() error {
	if !r.owned {
		return nil
	}
	return r.store.Close()
}

// List returns the saved connections in insertion order.
func (r *Registry) List() ([]core.Connection, error) {
	var doc document
	if _, err := r.store.Get(Key, &doc); err != nil {
		return nil, err
	}
	if doc.Connections == nil {
		return []core.Connection{}, nil
	}
	return doc.Connections, nil
}

// Get returns the first connection named name.
func (r *Registry) Get(name string) (core.Connection, error) {
	list, err := r.List()
	if err != nil {
		return core.Connection{}, err
	}
	for _, c := range list {
		if c.Name == name {
			return c, nil
		}
	}
	return core.Connection{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Add saves a new connection. The name is derived from the connection
// string. When a connectivity check is configured, an unreachable database
// yields a ConnectivityError and nothing is saved. Duplicates are allowed.
func (r *Registry) Add(ctx context.Context, connectionString string) (core.Connection, error) {
	name, err := DeriveName(connectionString)
	if err != nil {
		return core.Connection{}, err
	}

	if r.checker != nil && !r.checker.CheckConnectivity(ctx, connectionString) {
		return core.Connection{}, &core.ConnectivityError{
			Op:     "add connection",
			Target: core.RedactConnectionString(connectionString),
		}
	}

	conn := core.Connection{Name: name, ConnectionString: connectionString}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.List()
	if err != nil {
		return core.Connection{}, err
	}
	next := make([]core.Connection, 0, len(list)+1)
	next = append(next, list...)
	next = append(next, conn)

	if err := r.write(ctx, list, next); err != nil {
		return core.Connection{}, err
	}

	r.logger.Info("connection added", "name", name, "total", len(next))
	return conn, nil
}

// Remove deletes every connection named name and returns how many were removed.
func (r *Registry) Remove(ctx context.Context, name string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.List()
	if err != nil {
		return 0, err
	}
	next := make([]core.Connection, 0, len(list))
	for _, c := range list {
		if c.Name != name {
			next = append(next, c)
		}
	}
	removed := len(list) - len(next)
	if removed == 0 {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if err := r.write(ctx, list, next); err != nil {
		return 0, err
	}

	r.logger.Info("connection removed", "name", name, "removed", removed)
	return removed, nil
}

// write stages next and saves it. If the save fails, prev is staged
// again so a failed change is never visible.
func (r *Registry) write(ctx context.Context, prev, next []core.Connection) error {
	if err := r.store.Set(Key, document{Connections: next}); err != nil {
		return err
	}
	if err := r.store.Save(ctx); err != nil {
		if rerr := r.store.Set(Key, document{Connections: prev}); rerr != nil {
			r.logger.Warn("failed to restore connection list", "error", rerr)
		}
		return err
	}
	return nil
}
