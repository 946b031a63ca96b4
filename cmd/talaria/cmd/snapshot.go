package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talaria-db/talaria/internal/config"
	"github.com/talaria-db/talaria/internal/manifest"
	"github.com/talaria-db/talaria/internal/output"
	"github.com/talaria-db/talaria/internal/retro"
	"github.com/talaria-db/talaria/internal/taxonomy"
)

func newSnapshotCmd() *cobra.Command {
	var at string
	var sequences, history string
	var dropDeleted bool

	cmd := &cobra.Command{
		Use:   "snapshot <source>/<dataset>",
		Short: "Resolve the database as it stood at a bi-temporal coordinate",
		Long: `Snapshot picks the manifest version current as of --at on the sequence
axis and the taxonomy snapshot current as of --at on the taxonomy axis,
then re-labels the sequences in --sequences through the taxonomy's
merge chain as of that coordinate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd, args[0], at, sequences, history, dropDeleted)
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Coordinate time for both axes (RFC3339, required)")
	cmd.Flags().StringVar(&sequences, "sequences", "-", "JSONL sequence set (id, taxon_id), or - for stdin")
	cmd.Flags().StringVar(&history, "history", "", "JSONL taxonomy history file")
	cmd.Flags().BoolVar(&dropDeleted, "drop-deleted", false, "Drop sequences whose taxon no longer exists at --at")
	_ = cmd.MarkFlagRequired("at")
	_ = cmd.MarkFlagRequired("history")

	return cmd
}

func runSnapshot(cmd *cobra.Command, ref, at, sequencesPath, historyPath string, dropDeleted bool) error {
	source, dataset, err := splitDatabaseRef(ref)
	if err != nil {
		return err
	}

	coordTime, err := parseOptionalTime(at)
	if err != nil {
		return fmt.Errorf("--at: %w", err)
	}

	cfg, err := config.LoadUserConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	versions, err := manifest.Open(cfg.Paths.DatabasesDir, cfg.Retention.KeepVersions, nil)
	if err != nil {
		return fmt.Errorf("open manifest store: %w", err)
	}

	evo, err := loadEvolution(historyPath)
	if err != nil {
		return fmt.Errorf("load taxonomy history: %w", err)
	}

	seqLines, err := loadSequenceRecords(sequencesPath)
	if err != nil {
		return fmt.Errorf("load sequences: %w", err)
	}
	sequences := make([]retro.SequenceRecord, len(seqLines))
	for i, s := range seqLines {
		sequences[i] = retro.SequenceRecord{ID: s.ID, TaxonID: taxonomy.ID(s.TaxonID)}
	}

	engine := retro.New(versions, evo, source, dataset)
	result, err := engine.Snapshot(retro.At(coordTime), sequences, dropDeleted)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("", "manifest version: %s", result.ManifestVersion)
	return nil
}
