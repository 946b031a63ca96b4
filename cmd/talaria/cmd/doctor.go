package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/talaria-db/talaria/internal/config"
	"github.com/talaria-db/talaria/internal/preflight"
)

var errDoctorFailed = errors.New("system check failed")

func newDoctorCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run system checks against the workspace home",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose)
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show details for passing checks too")
	return cmd
}

func runDoctor(cmd *cobra.Command, verbose bool) error {
	cfg, err := config.LoadUserConfig()
	if err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(cmd.Context(), cfg.Paths.Home)
	checker.PrintResults(results)

	if checker.HasCriticalFailures(results) {
		return errDoctorFailed
	}
	return nil
}
