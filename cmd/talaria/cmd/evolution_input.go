package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/talaria-db/talaria/internal/taxonomy"
)

// evolutionVersionLine is one JSONL entry in a taxonomy history file:
// a taxonomy snapshot as of time, plus the taxon-ID merges that
// occurred going into this version (old ID -> surviving ID).
type evolutionVersionLine struct {
	Time   time.Time         `json:"time"`
	Taxa   []taxonLine       `json:"taxa"`
	Merges map[uint32]uint32 `json:"merges,omitempty"`
}

// loadEvolution reads a taxonomy history file and replays it into an
// Evolution log in chronological order.
func loadEvolution(path string) (*taxonomy.Evolution, error) {
	r, closer, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer closer()

	evo := taxonomy.NewEvolution()
	dec := json.NewDecoder(r)
	for dec.More() {
		var line evolutionVersionLine
		if err := dec.Decode(&line); err != nil {
			return nil, fmt.Errorf("decode evolution version: %w", err)
		}

		records := make([]taxonomy.Record, len(line.Taxa))
		for i, t := range line.Taxa {
			records[i] = taxonomy.Record{
				ID:       taxonomy.ID(t.ID),
				Name:     t.Name,
				Rank:     taxonomy.Rank(t.Rank),
				ParentID: taxonomy.ID(t.ParentID),
			}
		}

		merges := make(map[taxonomy.ID]taxonomy.ID, len(line.Merges))
		for from, to := range line.Merges {
			merges[taxonomy.ID(from)] = taxonomy.ID(to)
		}

		evo.AddVersion(line.Time, taxonomy.NewSnapshot(records), merges)
	}
	return evo, nil
}

// loadSequenceRecords reads a JSONL accession->taxon mapping used as
// the caller-supplied sequence set for a retro query.
func loadSequenceRecords(path string) ([]sequenceLine, error) {
	r, closer, err := openInput(path)
	if err != nil {
		return nil, err
	}
	defer closer()

	var out []sequenceLine
	dec := json.NewDecoder(r)
	for dec.More() {
		var line sequenceLine
		if err := dec.Decode(&line); err != nil {
			return nil, fmt.Errorf("decode sequence record: %w", err)
		}
		out = append(out, line)
	}
	return out, nil
}

type sequenceLine struct {
	ID      string `json:"id"`
	TaxonID uint32 `json:"taxon_id"`
}
