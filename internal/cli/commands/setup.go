package commands

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/leapdesk/internal/cli/output"
	"github.com/leapstack-labs/leapdesk/internal/config"
	"github.com/leapstack-labs/leapdesk/internal/session"
	"github.com/spf13/cobra"
)

// runtimeKey stores the Runtime in a command context.
type runtimeKey struct{}

// Runtime is what the root command prepares for every subcommand.
type Runtime struct {
	Config *config.Config
	Logger *slog.Logger
	// SessionOptions are passed to session.Open.
	SessionOptions []session.Option
}

// WithRuntime returns ctx carrying rt.
func WithRuntime(ctx context.Context, rt *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// runtimeFrom returns the Runtime of ctx, or defaults when none was set.
func runtimeFrom(ctx context.Context) *Runtime {
	if ctx != nil {
		if rt, ok := ctx.Value(runtimeKey{}).(*Runtime); ok && rt != nil {
			return rt
		}
	}
	return &Runtime{Config: config.Defaults()}
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Session  *session.Session
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with an open session.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutSession(cmd)
	rt := runtimeFrom(cmd.Context())

	s, err := session.Open(cmd.Context(), cc.Cfg, cc.Logger, rt.SessionOptions...)
	if err != nil {
		return nil, nil, err
	}
	cc.Session = s

	cleanup := func() {
		if err := s.Close(); err != nil {
			cc.Logger.Warn("failed to close session", "error", err)
		}
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutSession creates a CommandContext without a session.
// Useful for commands that don't need saved connections or a database.
func NewCommandContextWithoutSession(cmd *cobra.Command) *CommandContext {
	rt := runtimeFrom(cmd.Context())
	logger := rt.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CommandContext{
		Cfg:      rt.Config,
		Logger:   logger,
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(rt.Config.Output)),
	}
}
