// Package session wires the stores, connectors and engines of one process
// and opens workspaces on top of them.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapdesk/internal/catalog"
	"github.com/leapstack-labs/leapdesk/internal/config"
	"github.com/leapstack-labs/leapdesk/internal/execute"
	"github.com/leapstack-labs/leapdesk/internal/generate"
	"github.com/leapstack-labs/leapdesk/internal/registry"
	"github.com/leapstack-labs/leapdesk/internal/workspace"
	"github.com/leapstack-labs/leapdesk/pkg/adapter"
	"github.com/leapstack-labs/leapdesk/pkg/adapters/postgres"
	"github.com/leapstack-labs/leapdesk/pkg/core"

	// Registers the duckdb:// scheme.
	_ "github.com/leapstack-labs/leapdesk/pkg/adapters/duckdb"
)

// ErrNoConnection is returned when no connection was named and no default
// connection is configured.
var ErrNoConnection = errors.New("no connection given and no default_connection configured")

// Option configures a Session.
type Option func(*options)

type options struct {
	provider   generate.Provider
	connectors map[string]adapter.Connector
}

// WithProvider replaces the OpenAI-compatible provider.
func WithProvider(p generate.Provider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithConnector routes scheme to c.
func WithConnector(scheme string, c adapter.Connector) Option {
	return func(o *options) {
		o.connectors[strings.ToLower(scheme)] = c
	}
}

// Session holds the shared services of a process.
type Session struct {
	cfg    *config.Config
	logger *slog.Logger

	router    *adapter.Router
	registry  *registry.Registry
	catalog   *catalog.Catalog
	generator *generate.Engine
	executor  *execute.Engine

	mu         sync.Mutex
	workspaces map[*workspace.Workspace]string
	closed     bool
}

// Open builds a session from cfg. Saved connections are read from
// cfg.DataDir. If logger is nil, a discard logger is used.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Session, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	o := &options{connectors: make(map[string]adapter.Connector)}
	for _, opt := range opts {
		opt(o)
	}

	router := adapter.NewRouter(logger)
	pg := postgres.New(logger.With("scheme", "postgres"))
	if cfg.Database.ConnectTimeout > 0 {
		pg.ConnectTimeout = cfg.Database.ConnectTimeout
	}
	for _, scheme := range postgres.Schemes {
		router.Use(scheme, pg)
	}
	for scheme, c := range o.connectors {
		router.Use(scheme, c)
	}

	reg, err := registry.Open(ctx, cfg.DataDir, logger, registry.WithConnectivityCheck(router))
	if err != nil {
		return nil, fmt.Errorf("failed to open connection registry: %w", err)
	}

	cat, err := catalog.New(router, cfg.Catalog.CacheSize, logger, catalog.WithFetchTimeout(cfg.Database.QueryTimeout))
	if err != nil {
		_ = reg.Close()
		return nil, err
	}

	provider := o.provider
	if provider == nil {
		provider = generate.NewOpenAIProvider(generate.OpenAIConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Timeout: cfg.LLM.Timeout,
		}, logger)
	}

	s := &Session{
		cfg:        cfg,
		logger:     logger.With("component", "session"),
		router:     router,
		registry:   reg,
		catalog:    cat,
		generator:  generate.NewEngine(provider, cfg.Params(), logger),
		executor:   execute.New(router, logger, execute.WithTimeout(cfg.Database.QueryTimeout)),
		workspaces: make(map[*workspace.Workspace]string),
	}
	s.logger.Debug("session opened", "data_dir", cfg.DataDir, "schemes", adapter.ListSchemes())
	return s, nil
}

// Config returns the configuration the session was opened with.
func (s *Session) Config() *config.Config { return s.cfg }

// Registry returns the saved connection registry.
func (s *Session) Registry() *registry.Registry { return s.registry }

// Catalog returns the schema catalog.
func (s *Session) Catalog() *catalog.Catalog { return s.catalog }

// Generator returns the SQL generation engine.
func (s *Session) Generator() *generate.Engine { return s.generator }

// Executor returns the query execution engine.
func (s *Session) Executor() *execute.Engine { return s.executor }

// Connector returns the scheme router used for every database call.
func (s *Session) Connector() adapter.Connector { return s.router }

// Resolve turns a saved connection name or a raw connection string into a
// connection. saved reports whether it came from the registry. An empty
// argument selects the configured default connection.
func (s *Session) Resolve(nameOrDSN string) (conn core.Connection, saved bool, err error) {
	if nameOrDSN == "" {
		nameOrDSN = s.cfg.DefaultConnection
	}
	if nameOrDSN == "" {
		return core.Connection{}, false, ErrNoConnection
	}

	if strings.Contains(nameOrDSN, "://") {
		name, err := registry.DeriveName(nameOrDSN)
		if err != nil {
			name = core.RedactConnectionString(nameOrDSN)
		}
		return core.Connection{Name: name, ConnectionString: nameOrDSN}, false, nil
	}

	conn, err = s.registry.Get(nameOrDSN)
	if err != nil {
		return core.Connection{}, false, err
	}
	return conn, true, nil
}

// OpenWorkspace opens a workspace for a saved connection name or a raw
// connection string. Workspaces on saved connections watch the registry.
// Workspaces still open when the session closes are closed with it.
func (s *Session) OpenWorkspace(ctx context.Context, nameOrDSN string) (*workspace.Workspace, error) {
	conn, saved, err := s.Resolve(nameOrDSN)
	if err != nil {
		return nil, err
	}

	deps := workspace.Deps{
		Catalog:        s.catalog,
		Generator:      s.generator,
		Executor:       s.executor,
		TableViewLimit: s.cfg.Database.TableViewLimit,
		Logger:         s.logger,
	}
	if saved {
		deps.Registry = s.registry
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, workspace.ErrClosed
	}
	ws := workspace.Open(ctx, conn, deps)
	s.workspaces[ws] = conn.ConnectionString
	return ws, nil
}

// CloseWorkspace closes ws and forgets it. The cached catalog of its
// connection is dropped once no other open workspace uses it.
func (s *Session) CloseWorkspace(ws *workspace.Workspace) error {
	s.mu.Lock()
	cs, tracked := s.workspaces[ws]
	delete(s.workspaces, ws)
	last := tracked && !s.inUseLocked(cs)
	s.mu.Unlock()

	err := ws.Close()
	if last {
		s.catalog.Invalidate(cs)
	}
	return err
}

func (s *Session) inUseLocked(connectionString string) bool {
	for _, cs := range s.workspaces {
		if cs == connectionString {
			return true
		}
	}
	return false
}

// Close closes all open workspaces, the catalog and the registry.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	open := make([]*workspace.Workspace, 0, len(s.workspaces))
	for ws := range s.workspaces {
		open = append(open, ws)
	}
	s.workspaces = nil
	s.mu.Unlock()

	var errs []error
	for _, ws := range open {
		errs = append(errs, ws.Close())
	}
	s.catalog.Close()
	errs = append(errs, s.registry.Close())
	s.logger.Debug("session closed", "workspaces", len(open))
	return errors.Join(errs...)
}
