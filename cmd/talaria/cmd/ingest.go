package cmd

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/talaria-db/talaria/internal/chunker"
	"github.com/talaria-db/talaria/internal/config"
	"github.com/talaria-db/talaria/internal/index"
	"github.com/talaria-db/talaria/internal/ingest"
	"github.com/talaria-db/talaria/internal/manifest"
	"github.com/talaria-db/talaria/internal/output"
	"github.com/talaria-db/talaria/internal/store"
	"github.com/talaria-db/talaria/internal/taxonomy"
)

// recordLine is one JSONL record in the ingest input stream. Sequence
// bytes travel base64-encoded since JSON has no native byte-string type.
type recordLine struct {
	SequenceID  string  `json:"sequence_id"`
	Description string  `json:"description"`
	TaxonID     *uint32 `json:"taxon_id,omitempty"`
	PayloadB64  string  `json:"payload"`
}

// taxonLine is one JSONL entry in a taxonomy snapshot file.
type taxonLine struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name"`
	Rank     string `json:"rank"`
	ParentID uint32 `json:"parent_id"`
}

func newIngestCmd() *cobra.Command {
	var recordsPath, taxonomyPath string
	var sequenceTime, taxonomyTime string
	var streaming bool

	cmd := &cobra.Command{
		Use:   "ingest <source>/<dataset>",
		Short: "Ingest sequence records into a new manifest version",
		Long: `Ingest reads newline-delimited JSON sequence records (sequence_id,
description, taxon_id, base64 payload) and a newline-delimited JSON
taxonomy snapshot (id, name, rank, parent_id), chunks the records by
taxonomic lineage, stores each chunk by content hash, updates the
accession/taxon/database index, and registers a new manifest version
stamped with the given sequence and taxonomy observation times.

--streaming skips the accession/taxon/database lookup buckets and
updates only the bloom filter, trading lookup availability during the
run for lower memory use on an initial bulk load; rerun without it (or
against the same index) to backfill the lookup buckets afterward.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0], recordsPath, taxonomyPath, sequenceTime, taxonomyTime, streaming)
		},
	}

	cmd.Flags().StringVar(&recordsPath, "records", "-", "Path to a JSONL record file, or - for stdin")
	cmd.Flags().StringVar(&taxonomyPath, "taxonomy", "", "Path to a JSONL taxonomy snapshot file")
	cmd.Flags().StringVar(&sequenceTime, "sequence-time", "", "Sequence observation time (RFC3339, default now)")
	cmd.Flags().StringVar(&taxonomyTime, "taxonomy-time", "", "Taxonomy classification time (RFC3339, default now)")
	cmd.Flags().BoolVar(&streaming, "streaming", false, "Bulk-ingest mode: update only the bloom filter, skip lookup buckets")
	_ = cmd.MarkFlagRequired("taxonomy")

	return cmd
}

func runIngest(cmd *cobra.Command, ref, recordsPath, taxonomyPath, sequenceTimeFlag, taxonomyTimeFlag string, streaming bool) error {
	source, dataset, err := splitDatabaseRef(ref)
	if err != nil {
		return err
	}

	seqTime, err := parseOptionalTime(sequenceTimeFlag)
	if err != nil {
		return fmt.Errorf("--sequence-time: %w", err)
	}
	taxTime, err := parseOptionalTime(taxonomyTimeFlag)
	if err != nil {
		return fmt.Errorf("--taxonomy-time: %w", err)
	}

	snapshot, err := loadTaxonomySnapshot(taxonomyPath)
	if err != nil {
		return fmt.Errorf("load taxonomy: %w", err)
	}

	records, err := loadRecords(recordsPath)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	cfg, err := config.LoadUserConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	s, err := store.Open(filepath.Join(cfg.Paths.DataDir, "chunks"), nil)
	if err != nil {
		return fmt.Errorf("open chunk store: %w", err)
	}
	idx, err := index.Open(filepath.Join(cfg.Paths.DataDir, "index.db"), cfg.Index.BloomExpectedItems, cfg.Index.BloomFPR)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer idx.Close()
	if streaming {
		idx.SetStreamingMode(true)
	}
	versions, err := manifest.Open(cfg.Paths.DatabasesDir, cfg.Retention.KeepVersions, nil)
	if err != nil {
		return fmt.Errorf("open manifest store: %w", err)
	}

	strategy := chunker.Strategy{
		TargetBytes:          cfg.Chunking.TargetChunkBytes,
		MaxBytes:             cfg.Chunking.MaxChunkBytes,
		MinSequencesPerChunk: cfg.Chunking.MinSequencesPerChunk,
		TaxonomicCoherence:   cfg.Chunking.TaxonomicCoherence,
	}
	c := chunker.New(snapshot, strategy)
	engine := ingest.New(c, s, idx, versions)

	result, err := engine.Ingest(cmd.Context(), source, dataset, records, nil, seqTime, taxTime)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	out := output.New(cmd.OutOrStdout())
	out.Successf("Registered version %s for %s/%s", result.Version.ID, source, dataset)
	out.Statusf("", "  chunks:     %d (%d new)", result.ChunkCount, result.NewChunks)
	out.Statusf("", "  sequences:  %d", len(records))
	return nil
}

func parseOptionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	return time.Parse(time.RFC3339, s)
}

func loadRecords(path string) ([]chunker.Record, error) {
	r, closer, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer closer()

	var out []chunker.Record
	dec := json.NewDecoder(r)
	for dec.More() {
		var line recordLine
		if err := dec.Decode(&line); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		payload, err := base64.StdEncoding.DecodeString(line.PayloadB64)
		if err != nil {
			return nil, fmt.Errorf("decode payload for %s: %w", line.SequenceID, err)
		}
		rec := chunker.Record{
			SequenceID:  line.SequenceID,
			Description: line.Description,
			Payload:     payload,
		}
		if line.TaxonID != nil {
			taxonID := taxonomy.ID(*line.TaxonID)
			rec.TaxonID = &taxonID
		}
		out = append(out, rec)
	}
	return out, nil
}

func loadTaxonomySnapshot(path string) (*taxonomy.Snapshot, error) {
	r, closer, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer closer()

	var records []taxonomy.Record
	dec := json.NewDecoder(r)
	for dec.More() {
		var line taxonLine
		if err := dec.Decode(&line); err != nil {
			return nil, fmt.Errorf("decode taxon: %w", err)
		}
		records = append(records, taxonomy.Record{
			ID:       taxonomy.ID(line.ID),
			Name:     line.Name,
			Rank:     taxonomy.Rank(line.Rank),
			ParentID: taxonomy.ID(line.ParentID),
		})
	}
	return taxonomy.NewSnapshot(records), nil
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, func() { _ = f.Close() }, nil
}
