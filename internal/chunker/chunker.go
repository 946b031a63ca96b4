// Package chunker implements the taxonomy-aware hierarchical chunker:
// it resolves each input sequence's authoritative taxon, groups
// sequences along their lineage from kingdom down to species, and
// greedily seals chunks sized by the group's organism-importance
// classification.
package chunker

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/talaria-db/talaria/internal/taxonomy"
)

// SpecialHandling overrides the default grouping behavior for a
// specific taxon.
type SpecialHandling int

const (
	// GroupWithSiblings is the default: a taxon's chunks may be
	// merged with taxonomic siblings during tail-merge.
	GroupWithSiblings SpecialHandling = iota
	// OwnChunks forces a taxon's records into dedicated chunks that
	// are never merged with siblings, even if undersized.
	OwnChunks
	// GroupAtLevel collapses grouping to a specific lineage depth
	// regardless of the taxon's own rank.
	GroupAtLevel
)

// SpecialTaxon names a taxon that deviates from default chunking
// behavior.
type SpecialTaxon struct {
	TaxonID  taxonomy.ID
	Handling SpecialHandling
	Level    int // meaningful only when Handling == GroupAtLevel
}

// Strategy configures the chunker's size targets and special-case
// handling.
type Strategy struct {
	TargetBytes          int64
	MaxBytes             int64
	MinSequencesPerChunk int
	TaxonomicCoherence   float64
	Special              []SpecialTaxon
}

// DefaultStrategy mirrors the original implementation's defaults.
func DefaultStrategy() Strategy {
	return Strategy{
		TargetBytes:          10 * 1024 * 1024,
		MaxBytes:             50 * 1024 * 1024,
		MinSequencesPerChunk: 10,
		TaxonomicCoherence:   0.8,
	}
}

func (s Strategy) specialFor(id taxonomy.ID) (SpecialTaxon, bool) {
	for _, t := range s.Special {
		if t.TaxonID == id {
			return t, true
		}
	}
	return SpecialTaxon{}, false
}

// importanceSizeRange returns the adaptive (min, max) byte range for
// an importance class, per the original chunker's size bands.
func importanceSizeRange(imp taxonomy.Importance) (min, max int64) {
	const mib = 1024 * 1024
	switch imp {
	case taxonomy.ModelOrganism:
		return 50 * mib, 200 * mib
	case taxonomy.Pathogen:
		return 100 * mib, 500 * mib
	default:
		return 500 * mib, 1024 * mib
	}
}

// Record is one input sequence to be chunked.
type Record struct {
	SequenceID  string
	Payload     []byte
	TaxonID     *taxonomy.ID // explicit taxon, if known
	Description string
}

var oxPattern = regexp.MustCompile(`OX=(\d+)`)
var taxIDPattern = regexp.MustCompile(`TaxID=(\d+)`)

// ResolveTaxon determines a record's authoritative taxon id: an
// explicit TaxonID field, then an accession-to-taxon mapping lookup,
// then an OX=/TaxID= field parsed from the description. The first
// non-zero result wins; a record with no resolution takes taxon 0.
func ResolveTaxon(r Record, accessionMap map[string]taxonomy.ID) taxonomy.ID {
	if r.TaxonID != nil && *r.TaxonID != taxonomy.Unclassified {
		return *r.TaxonID
	}
	if id, ok := accessionMap[r.SequenceID]; ok && id != taxonomy.Unclassified {
		return id
	}
	if m := oxPattern.FindStringSubmatch(r.Description); m != nil {
		if v, err := strconv.ParseUint(m[1], 10, 32); err == nil && v != 0 {
			return taxonomy.ID(v)
		}
	}
	if m := taxIDPattern.FindStringSubmatch(r.Description); m != nil {
		if v, err := strconv.ParseUint(m[1], 10, 32); err == nil && v != 0 {
			return taxonomy.ID(v)
		}
	}
	return taxonomy.Unclassified
}

// Chunk is one sealed output chunk: the records it contains and the
// taxa it covers, keyed by the lineage node it was grouped under.
type Chunk struct {
	GroupTaxon    taxonomy.ID
	GroupRank     taxonomy.Rank
	TaxonIDs      []taxonomy.ID
	Records       []Record
	SequenceCount int
	TotalSize     int64
}

// Chunker groups and seals chunks against a loaded taxonomy snapshot.
type Chunker struct {
	snapshot *taxonomy.Snapshot
	strategy Strategy
}

// New returns a Chunker bound to snapshot and strategy.
func New(snapshot *taxonomy.Snapshot, strategy Strategy) *Chunker {
	return &Chunker{snapshot: snapshot, strategy: strategy}
}

type groupKey struct {
	taxon taxonomy.ID
	rank  taxonomy.Rank
}

// Chunk groups records along their taxonomic lineage and greedily
// seals chunks per (taxon, level), merging undersized tail chunks
// into a preceding sibling chunk of the same group.
func (c *Chunker) Chunk(records []Record, accessionMap map[string]taxonomy.ID) ([]Chunk, error) {
	groups := make(map[groupKey][]Record)
	var order []groupKey

	for _, r := range records {
		taxonID := ResolveTaxon(r, accessionMap)
		lineage, err := c.lineageOrSelf(taxonID)
		if err != nil {
			return nil, fmt.Errorf("chunker: resolve lineage for taxon %d: %w", taxonID, err)
		}
		for _, node := range lineage {
			key := groupKey{taxon: node, rank: c.rankOf(node)}
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], r)
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].taxon != order[j].taxon {
			return order[i].taxon < order[j].taxon
		}
		return order[i].rank < order[j].rank
	})

	var chunks []Chunk
	for _, key := range order {
		recs := groups[key]
		sort.Slice(recs, func(i, j int) bool { return recs[i].SequenceID < recs[j].SequenceID })

		sealed := c.sealGroup(key, recs)
		chunks = append(chunks, sealed...)
	}
	return chunks, nil
}

func (c *Chunker) lineageOrSelf(id taxonomy.ID) ([]taxonomy.ID, error) {
	if c.snapshot == nil {
		return []taxonomy.ID{id}, nil
	}
	lineage, err := c.snapshot.Lineage(id)
	if err != nil {
		return []taxonomy.ID{id}, nil
	}
	return lineage, nil
}

func (c *Chunker) rankOf(id taxonomy.ID) taxonomy.Rank {
	if c.snapshot == nil {
		return ""
	}
	if rec, ok := c.snapshot.Taxa[id]; ok {
		return rec.Rank
	}
	return ""
}

// sealGroup greedily packs recs for one (taxon, level) group into one
// or more chunks, honoring the group's importance-derived size range
// (clamped by the stricter of strategy.MaxBytes and the importance
// band) and special-taxon OwnChunks handling.
func (c *Chunker) sealGroup(key groupKey, recs []Record) []Chunk {
	importance := taxonomy.Environmental
	if c.snapshot != nil {
		importance = c.snapshot.Importance(key.taxon)
	}
	_, impMax := importanceSizeRange(importance)

	maxBytes := c.strategy.MaxBytes
	if c.strategy.TargetBytes == 0 {
		// target disabled: pure taxon-coherence grouping, one chunk
		// for the whole group regardless of size.
		maxBytes = 0
	} else if impMax > 0 && impMax < maxBytes {
		maxBytes = impMax
	}

	special, hasSpecial := c.strategy.specialFor(key.taxon)
	ownChunks := hasSpecial && special.Handling == OwnChunks

	var sealed []Chunk
	var current []Record
	var currentSize int64

	flush := func() {
		if len(current) == 0 {
			return
		}
		sealed = append(sealed, newChunk(key, current))
		current = nil
		currentSize = 0
	}

	for _, r := range recs {
		size := int64(len(r.Payload))
		if maxBytes > 0 && currentSize+size > maxBytes && len(current) > 0 {
			flush()
		}
		current = append(current, r)
		currentSize += size
	}
	flush()

	// Dedicated (OwnChunks) taxa still seal on target/max size like any
	// other group; only the cross-group tail-merge below is skipped, so
	// their chunks never absorb records from a different taxon.
	if ownChunks || len(sealed) < 2 {
		return sealed
	}

	tail := sealed[len(sealed)-1]
	if tail.SequenceCount < c.strategy.MinSequencesPerChunk {
		prev := &sealed[len(sealed)-2]
		prev.Records = append(prev.Records, tail.Records...)
		prev.SequenceCount += tail.SequenceCount
		prev.TotalSize += tail.TotalSize
		sealed = sealed[:len(sealed)-1]
	}
	return sealed
}

func newChunk(key groupKey, recs []Record) Chunk {
	taxa := map[taxonomy.ID]bool{key.taxon: true}
	var total int64
	for _, r := range recs {
		total += int64(len(r.Payload))
	}
	ids := make([]taxonomy.ID, 0, len(taxa))
	for t := range taxa {
		ids = append(ids, t)
	}
	return Chunk{
		GroupTaxon:    key.taxon,
		GroupRank:     key.rank,
		TaxonIDs:      ids,
		Records:       recs,
		SequenceCount: len(recs),
		TotalSize:     total,
	}
}
