package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/talaria-db/talaria/internal/config"
	"github.com/talaria-db/talaria/internal/output"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new talaria workspace",
		Long: `Initialize a talaria workspace at TALARIA_HOME (defaults to ~/.talaria).

This command creates the data, databases, and logs directories and writes
a talaria.yaml configuration file with the built-in defaults. The other
commands read their settings from the user config file and TALARIA_*
environment variables; they do not read this talaria.yaml.`,
		Example: `  # Initialize with defaults
  talaria init

  # Reinitialize, overwriting an existing config file
  talaria init --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")

	return cmd
}

func runInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	cfg := config.NewConfig()
	out.Statusf("", "Workspace home: %s", cfg.Paths.Home)

	configPath := filepath.Join(cfg.Paths.Home, "talaria.yaml")
	if _, err := os.Stat(configPath); err == nil && !force {
		out.Warning("Configuration already exists")
		out.Status("", "Use --force to overwrite it")
		return nil
	}

	for _, dir := range []string{cfg.Paths.Home, cfg.Paths.DataDir, cfg.Paths.DatabasesDir, filepath.Join(cfg.Paths.Home, "logs")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	out.Success("Created data, databases, and logs directories")

	if err := cfg.WriteYAML(configPath); err != nil {
		return fmt.Errorf("write configuration: %w", err)
	}
	out.Successf("Wrote %s", configPath)

	out.Status("", "Next steps:")
	out.Status("", "  talaria download <source>/<dataset> --url <url>")
	out.Status("", "  talaria status")

	return nil
}
