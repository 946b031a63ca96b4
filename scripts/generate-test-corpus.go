//go:build ignore

// Package main generates a synthetic sequence/taxonomy corpus for
// benchmarking the chunker and ingest pipeline.
// Usage: go run scripts/generate-test-corpus.go -sequences 100000 -output testdata/bench
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numSequences = flag.Int("sequences", 100000, "Number of sequence records to generate")
	numTaxa      = flag.Int("taxa", 2000, "Number of taxa in the synthetic taxonomy")
	outputDir    = flag.String("output", "testdata/bench", "Output directory")
	seed         = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var ranks = []string{"kingdom", "phylum", "class", "order", "family", "genus", "species"}

var aminoAcids = []byte("ACDEFGHIKLMNPQRSTVWY")

type taxonRecord struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name"`
	Rank     string `json:"rank"`
	ParentID uint32 `json:"parent_id"`
}

type sequenceRecord struct {
	SequenceID  string  `json:"sequence_id"`
	Description string  `json:"description"`
	TaxonID     *uint32 `json:"taxon_id,omitempty"`
	PayloadB64  string  `json:"payload"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}

	taxa := generateTaxonomy(rng, *numTaxa)
	if err := writeJSONL(filepath.Join(*outputDir, "taxonomy.jsonl"), taxa); err != nil {
		fmt.Fprintf(os.Stderr, "write taxonomy: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %d taxa\n", len(taxa))

	leafTaxa := leafIDs(taxa)
	records := generateSequences(rng, *numSequences, leafTaxa)
	if err := writeJSONL(filepath.Join(*outputDir, "records.jsonl"), records); err != nil {
		fmt.Fprintf(os.Stderr, "write records: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %d sequence records\n", len(records))
}

// generateTaxonomy builds a random tree of n taxa: a single root, and
// the rest attached to a random earlier-generated parent so lineages
// are always well-formed (parent id < child id).
func generateTaxonomy(rng *rand.Rand, n int) []taxonRecord {
	taxa := make([]taxonRecord, 0, n)
	taxa = append(taxa, taxonRecord{ID: 1, Name: "root", Rank: "kingdom", ParentID: 0})

	for id := 2; id <= n; id++ {
		parent := taxa[rng.Intn(len(taxa))]
		rank := childRank(parent.Rank)
		taxa = append(taxa, taxonRecord{
			ID:       uint32(id),
			Name:     fmt.Sprintf("taxon_%d", id),
			Rank:     rank,
			ParentID: parent.ID,
		})
	}
	return taxa
}

func childRank(parentRank string) string {
	for i, r := range ranks {
		if r == parentRank && i < len(ranks)-1 {
			return ranks[i+1]
		}
	}
	return "species"
}

// leafIDs returns the ids of taxa at "species" rank, biasing sequence
// assignment toward realistic classification depth.
func leafIDs(taxa []taxonRecord) []uint32 {
	var leaves []uint32
	for _, t := range taxa {
		if t.Rank == "species" {
			leaves = append(leaves, t.ID)
		}
	}
	if len(leaves) == 0 {
		for _, t := range taxa {
			leaves = append(leaves, t.ID)
		}
	}
	return leaves
}

func generateSequences(rng *rand.Rand, n int, taxa []uint32) []sequenceRecord {
	records := make([]sequenceRecord, n)
	for i := 0; i < n; i++ {
		taxonID := taxa[rng.Intn(len(taxa))]
		length := 100 + rng.Intn(900)
		payload := make([]byte, length)
		for j := range payload {
			payload[j] = aminoAcids[rng.Intn(len(aminoAcids))]
		}
		records[i] = sequenceRecord{
			SequenceID:  fmt.Sprintf("SEQ%08d", i),
			Description: fmt.Sprintf("synthetic sequence %d OX=%d", i, taxonID),
			TaxonID:     &taxonID,
			PayloadB64:  base64.StdEncoding.EncodeToString(payload),
		}
	}
	return records
}

func writeJSONL[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}
