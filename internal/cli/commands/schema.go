package commands

import (
	"github.com/leapstack-labs/leapdesk/pkg/core"
	"github.com/spf13/cobra"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	var (
		all     bool
		columns bool
	)

	cmd := &cobra.Command{
		Use:   "schema [connection]",
		Short: "Show the schemas, tables and columns of a database",
		Long: `Show the schemas and tables of a database.

The connection is a saved connection name or a connection string. Without
an argument the configured default_connection is used. System schemas are
hidden unless --all is given.`,
		Example: `  leapdesk schema db.internal:5432/sales
  leapdesk schema duckdb://./local.duckdb --columns
  leapdesk schema --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			conn, _, err := cc.Session.Resolve(firstArg(args))
			if err != nil {
				return err
			}
			schemas, err := cc.Session.Catalog().Load(cmd.Context(), conn.ConnectionString)
			if err != nil {
				return err
			}
			if !all {
				schemas = core.UserSchemas(schemas)
			}
			return renderCatalog(cc.Renderer, schemas, columns)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include system schemas")
	cmd.Flags().BoolVarP(&columns, "columns", "C", false, "List columns of every table")
	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
