package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/talaria-db/talaria/internal/config"
	"github.com/talaria-db/talaria/internal/index"
	"github.com/talaria-db/talaria/internal/manifest"
	"github.com/talaria-db/talaria/internal/output"
)

type statusInfo struct {
	Source       string             `json:"source"`
	Dataset      string             `json:"dataset"`
	CurrentAlias string             `json:"current_version,omitempty"`
	VersionCount int                `json:"version_count"`
	IndexStats   index.Stats        `json:"index_stats"`
	Manifest     *manifest.Manifest `json:"manifest,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <source>/<dataset>",
		Short: "Show index and version status for a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, ref string, jsonOutput bool) error {
	source, dataset, err := splitDatabaseRef(ref)
	if err != nil {
		return err
	}

	cfg, err := config.LoadUserConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	idx, err := index.Open(filepath.Join(cfg.Paths.DataDir, "index.db"), cfg.Index.BloomExpectedItems, cfg.Index.BloomFPR)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer idx.Close()

	stats, err := idx.Stats()
	if err != nil {
		return fmt.Errorf("read index stats: %w", err)
	}

	versions, err := manifest.Open(cfg.Paths.DatabasesDir, cfg.Retention.KeepVersions, nil)
	if err != nil {
		return fmt.Errorf("open manifest store: %w", err)
	}

	info := statusInfo{Source: source, Dataset: dataset, IndexStats: stats}

	list, err := versions.List(source, dataset, manifest.ListOpts{})
	if err == nil {
		info.VersionCount = len(list)
	}

	if current, err := versions.ResolveAlias(source, dataset, "current"); err == nil {
		info.CurrentAlias = current
		if m, err := versions.Load(source, dataset, current); err == nil {
			info.Manifest = m
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("", "%s/%s", source, dataset)
	if info.CurrentAlias == "" {
		out.Warning("No versions registered yet")
		return nil
	}
	out.Statusf("", "  current version: %s", info.CurrentAlias)
	out.Statusf("", "  versions kept:   %d", info.VersionCount)
	out.Statusf("", "  accessions:      %d", stats.Accessions)
	out.Statusf("", "  taxa indexed:    %d", stats.Taxa)
	out.Statusf("", "  databases:       %d", stats.Databases)
	if info.Manifest != nil {
		out.Statusf("", "  chunks:          %d", len(info.Manifest.ChunkIndex))
		out.Statusf("", "  sequence root:   %s", info.Manifest.SequenceRoot.String())
		out.Statusf("", "  sequence time:   %s", info.Manifest.SequenceTime.Format("2006-01-02"))
		out.Statusf("", "  taxonomy time:   %s", info.Manifest.TaxonomyTime.Format("2006-01-02"))
	}
	return nil
}
