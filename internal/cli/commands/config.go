package commands

import (
	"github.com/leapstack-labs/leapdesk/internal/cli/output"
	"github.com/leapstack-labs/leapdesk/internal/config"
	"github.com/spf13/cobra"
)

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
		Long: `Inspect the effective configuration or write a starter config file.

Configuration is read from leapdesk.yaml, a .env file, LEAPDESK_* environment
variables and command line flags, in increasing order of precedence.`,
	}
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigInitCommand())
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContextWithoutSession(cmd)
			cfg := cc.Cfg.Redacted()

			if cc.Renderer.EffectiveMode() == output.ModeJSON {
				return cc.Renderer.JSON(cfg.ToMap())
			}
			if cfg.Source != "" {
				cc.Renderer.Muted("# " + cfg.Source)
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			cc.Renderer.Printf("%s", data)
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with the current settings",
		Long: `Write the effective configuration to a YAML file (default: ./leapdesk.yaml).

The API key is never written. Provide it through OPENAI_API_KEY,
LEAPDESK_LLM__API_KEY or a .env file instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := NewCommandContextWithoutSession(cmd)

			path := config.DefaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteFile(path, cc.Cfg, force); err != nil {
				return err
			}
			if cc.Renderer.EffectiveMode() == output.ModeJSON {
				return cc.Renderer.JSON(map[string]string{"path": path})
			}
			cc.Renderer.Success("Wrote " + path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}
