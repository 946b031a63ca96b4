package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talaria-db/talaria/internal/config"
	"github.com/talaria-db/talaria/internal/manifest"
	"github.com/talaria-db/talaria/internal/retro"
	"github.com/talaria-db/talaria/internal/taxonomy"
)

func newDiffCmd() *cobra.Command {
	var atA, atB string
	var sequencesA, sequencesB, history string

	cmd := &cobra.Command{
		Use:   "diff <source>/<dataset>",
		Short: "Report what changed between two bi-temporal coordinates",
		Long: `Diff compares the sequence sets at two bi-temporal coordinates and
reports additions, removals, and reclassifications driven purely by
taxonomy changes between the two points.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, args[0], atA, atB, sequencesA, sequencesB, history)
		},
	}

	cmd.Flags().StringVar(&atA, "at-a", "", "Earlier coordinate time (RFC3339, required)")
	cmd.Flags().StringVar(&atB, "at-b", "", "Later coordinate time (RFC3339, required)")
	cmd.Flags().StringVar(&sequencesA, "sequences-a", "", "JSONL sequence set at --at-a")
	cmd.Flags().StringVar(&sequencesB, "sequences-b", "", "JSONL sequence set at --at-b")
	cmd.Flags().StringVar(&history, "history", "", "JSONL taxonomy history file")
	_ = cmd.MarkFlagRequired("at-a")
	_ = cmd.MarkFlagRequired("at-b")
	_ = cmd.MarkFlagRequired("sequences-a")
	_ = cmd.MarkFlagRequired("sequences-b")
	_ = cmd.MarkFlagRequired("history")

	return cmd
}

func runDiff(cmd *cobra.Command, ref, atA, atB, sequencesAPath, sequencesBPath, historyPath string) error {
	source, dataset, err := splitDatabaseRef(ref)
	if err != nil {
		return err
	}

	coordATime, err := parseOptionalTime(atA)
	if err != nil {
		return fmt.Errorf("--at-a: %w", err)
	}
	coordBTime, err := parseOptionalTime(atB)
	if err != nil {
		return fmt.Errorf("--at-b: %w", err)
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

	seqsA, err := toSequenceRecords(sequencesAPath)
	if err != nil {
		return fmt.Errorf("--sequences-a: %w", err)
	}
	seqsB, err := toSequenceRecords(sequencesBPath)
	if err != nil {
		return fmt.Errorf("--sequences-b: %w", err)
	}

	engine := retro.New(versions, evo, source, dataset)
	changes, err := engine.Diff(retro.At(coordATime), retro.At(coordBTime), seqsA, seqsB)
	if err != nil {
		return fmt.Errorf("diff: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(changes)
}

func toSequenceRecords(path string) ([]retro.SequenceRecord, error) {
	lines, err := loadSequenceRecords(path)
	if err != nil {
		return nil, err
	}
	out := make([]retro.SequenceRecord, len(lines))
	for i, l := range lines {
		out[i] = retro.SequenceRecord{ID: l.ID, TaxonID: taxonomy.ID(l.TaxonID)}
	}
	return out, nil
}
