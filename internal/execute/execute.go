// Package execute runs SQL through a connector and decodes the result.
package execute

import (
	"context"
	"log/slog"
	"time"

	"github.com/leapstack-labs/leapdesk/pkg/core"
)

// Runner executes SQL and returns a serialized core.QueryResult.
type Runner interface {
	RunSQL(ctx context.Context, sql, connectionString string) ([]byte, error)
}

// Engine executes queries. There is no retry and no transaction handling.
type Engine struct {
	runner  Runner
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout bounds every query. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// New creates an engine. If logger is nil, a discard logger is used.
func New(runner Runner, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{
		runner: runner,
		logger: logger.With("component", "execute"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// withTimeout applies the query timeout unless ctx already expires sooner.
func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= e.timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// Execute runs sql against a connection. A connector failure is returned
// as *core.ExecutionError, an undecodable payload as
// *core.MalformedResultError.
func (e *Engine) Execute(ctx context.Context, sql, connectionString string) (*core.QueryResult, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	payload, err := e.runner.RunSQL(ctx, sql, connectionString)
	if err != nil {
		e.logger.Debug("query failed", "duration", time.Since(start), "error", err)
		return nil, &core.ExecutionError{Err: err}
	}

	result, err := Decode(payload)
	if err != nil {
		e.logger.Warn("malformed query result", "bytes", len(payload), "error", err)
		return nil, err
	}

	e.logger.Debug("query executed",
		"duration", time.Since(start),
		"columns", len(result.Columns),
		"rows", len(result.Rows))
	return result, nil
}

// Decode parses a serialized query result.
func Decode(payload []byte) (*core.QueryResult, error) {
	var result core.QueryResult
	if err := result.UnmarshalJSON(payload); err != nil {
		return nil, &core.MalformedResultError{Err: err}
	}
	return &result, nil
}
