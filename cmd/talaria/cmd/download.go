package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talaria-db/talaria/internal/config"
	"github.com/talaria-db/talaria/internal/download"
	"github.com/talaria-db/talaria/internal/hashing"
	"github.com/talaria-db/talaria/internal/output"
	"github.com/talaria-db/talaria/internal/progress"
)

func newDownloadCmd() *cobra.Command {
	var url, checksum, artifactName string
	var preserveOnFailure bool

	cmd := &cobra.Command{
		Use:   "download <source>/<dataset>",
		Short: "Resume-capable download of a source database artifact",
		Long: `Download fetches a database artifact into a workspace under
TALARIA_HOME/downloads/<source>_<dataset>, tracking progress through the
staged download pipeline (initializing, downloading, verifying,
finalizing). Interrupted downloads resume from the last checkpoint and
the last written byte on the next invocation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, args[0], url, checksum, artifactName, preserveOnFailure)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Artifact URL (required)")
	cmd.Flags().StringVar(&checksum, "checksum", "", "Expected SHA-256 checksum, hex-encoded")
	cmd.Flags().StringVar(&artifactName, "artifact", "artifact.dat", "Artifact file name within the workspace")
	cmd.Flags().BoolVar(&preserveOnFailure, "preserve-on-failure", false, "Keep the workspace around after the download completes (a failed download always keeps it)")
	_ = cmd.MarkFlagRequired("url")

	return cmd
}

func runDownload(cmd *cobra.Command, ref, url, checksumHex, artifactName string, preserveOnFailure bool) error {
	source, dataset, err := splitDatabaseRef(ref)
	if err != nil {
		return err
	}

	cfg, err := config.LoadUserConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Download.PreserveOnFailure {
		preserveOnFailure = true
	}

	ws, err := download.OpenWorkspace(cfg.Paths.Home, source, dataset)
	if err != nil {
		return fmt.Errorf("open workspace: %w", err)
	}

	var expected *hashing.Hash
	if checksumHex != "" {
		h, err := hashing.ParseHash(checksumHex)
		if err != nil {
			return fmt.Errorf("--checksum: %w", err)
		}
		expected = &h
	}

	out := output.New(cmd.OutOrStdout())
	sink := &cliProgressSink{out: out}

	pipeline := download.NewPipeline(ws, nil)
	opts := download.Options{
		URL:                url,
		ArtifactName:       artifactName,
		ExpectedChecksum:   expected,
		PreserveOnComplete: preserveOnFailure,
		Sink:               sink,
	}

	if err := pipeline.Run(cmd.Context(), source, dataset, opts); err != nil {
		return fmt.Errorf("download: %w", err)
	}

	out.Success("Download complete")
	return nil
}

// cliProgressSink renders download progress as periodic status lines.
type cliProgressSink struct {
	out *output.Writer
}

func (s *cliProgressSink) StartOperation(kind progress.Kind, total int, message string) {
	s.out.Statusf("", "%s: %s (total %d)", kind, message, total)
}

func (s *cliProgressSink) Update(progress.Kind, int) {}

func (s *cliProgressSink) Increment(progress.Kind, int) {}

func (s *cliProgressSink) Finish(kind progress.Kind, message string) {
	s.out.Statusf("", "%s: %s", kind, message)
}
