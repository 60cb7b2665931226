package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/leapdesk/internal/cli/output"
	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Input string
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <connection> [SQL]",
		Short: "Execute SQL against a database",
		Long: `Execute SQL against a saved connection or a connection string and print
the result.

The SQL is taken from the arguments, from --input, or from standard input
when it is piped.`,
		Example: `  # Execute SQL directly
  leapdesk run db.internal:5432/sales "SELECT count(*) FROM orders"

  # Read SQL from a file
  leapdesk run db.internal:5432/sales -i report.sql

  # Pipe SQL and get JSON
  echo "SELECT 1" | leapdesk run duckdb:// --output json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	return cmd
}

func runSQL(cmd *cobra.Command, args []string, opts *RunOptions) error {
	var sqlText string
	switch {
	case len(args) > 1:
		sqlText = strings.Join(args[1:], " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlText = string(content)
	case !output.IsTerminal(cmd.InOrStdin()):
		content, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlText = string(content)
	}
	sqlText = strings.TrimSpace(sqlText)
	if sqlText == "" {
		return fmt.Errorf("no SQL given")
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	conn, _, err := cc.Session.Resolve(args[0])
	if err != nil {
		return err
	}
	cc.Logger.Debug("running query", "connection", conn.Name)

	result, err := cc.Session.Executor().Execute(cmd.Context(), sqlText, conn.ConnectionString)
	if err != nil {
		return err
	}
	return cc.Renderer.Result(result)
}
