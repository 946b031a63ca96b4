// Package manifest implements the bi-temporal manifest and version
// store: one manifest per database release, indexed chunk-by-chunk,
// linked into a version chain, and diffable against any earlier
// release for incremental update planning.
package manifest

import (
	"time"

	"github.com/talaria-db/talaria/internal/hashing"
	"github.com/talaria-db/talaria/internal/store"
	"github.com/talaria-db/talaria/internal/taxonomy"
)

// ChunkEntry records one chunk's place in a manifest's chunk_index:
// its content hash, the taxa it covers, size statistics, and the
// storage format its bytes were written in.
type ChunkEntry struct {
	Hash           hashing.Hash
	TaxonIDs       []taxonomy.ID
	SequenceCount  int
	Size           int64
	CompressedSize int64
	HasCompressed  bool
	Format         store.Format
}

// Reclassification records a taxon's lineage move between two
// taxonomy snapshots.
type Reclassification struct {
	TaxonID   taxonomy.ID
	OldParent taxonomy.ID
	NewParent taxonomy.ID
	Reason    string
}

// TaxonomyChanges summarizes a taxonomy diff between two snapshots.
type TaxonomyChanges struct {
	Reclassifications []Reclassification
	NewTaxa           []taxonomy.ID
	DeprecatedTaxa    []taxonomy.ID
	MergedTaxa        [][2]taxonomy.ID // [old, new]
}

// Discrepancy records a mismatch between header-claimed,
// mapping-claimed, and inferred taxonomy for one sequence.
type Discrepancy struct {
	SequenceID    string
	HeaderTaxon   *taxonomy.ID
	MappedTaxon   *taxonomy.ID
	InferredTaxon *taxonomy.ID
	Confidence    float32
	DetectedAt    time.Time
	Type          DiscrepancyType
}

// DiscrepancyType classifies a taxonomic discrepancy.
type DiscrepancyType string

const (
	DiscrepancyMissing      DiscrepancyType = "missing"
	DiscrepancyConflict     DiscrepancyType = "conflict"
	DiscrepancyOutdated     DiscrepancyType = "outdated"
	DiscrepancyReclassified DiscrepancyType = "reclassified"
	DiscrepancyInvalid      DiscrepancyType = "invalid"
)

// Manifest is the complete release record for one (source, dataset)
// pair at a bi-temporal coordinate.
type Manifest struct {
	Version      string
	CreatedAt    time.Time
	SequenceTime time.Time
	TaxonomyTime time.Time

	SequenceVersion string
	TaxonomyVersion string

	SequenceRoot         hashing.Hash
	TaxonomyRoot         hashing.Hash
	TaxonomyManifestHash hashing.Hash
	TaxonomyDumpVersion  string

	SourceDatabase string
	ChunkIndex     []ChunkEntry
	Discrepancies  []Discrepancy

	ETag            string
	PreviousVersion string
}

// Version is the directory-level record of a stored manifest: its
// id, where it lives, and summary statistics used by list/resolve
// without re-reading the manifest body.
type Version struct {
	ID             string
	CreatedAt      time.Time
	ManifestPath   string
	Size           int64
	ChunkCount     int
	EntryCount     int
	UpstreamVersion string
	Metadata       map[string]string
}

// ChangeType classifies one chunk_index diff entry.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
	ChangeModified ChangeType = "modified"
)

// ChunkChange describes one changed chunk-index position between two
// manifests.
type ChunkChange struct {
	Type     ChangeType
	Hash     hashing.Hash
	OldHash  hashing.Hash // set only for ChangeModified
	Position int
}

// Diff is the result of comparing two manifests: chunk-level and
// taxonomy-level changes.
type Diff struct {
	Added    []hashing.Hash
	Removed  []hashing.Hash
	Modified []hashing.Hash
	Changes  []ChunkChange
	Taxonomy TaxonomyChanges
}

// DiffStats summarizes a Diff for cost estimation and reporting.
type DiffStats struct {
	AddedCount    int
	RemovedCount  int
	ModifiedCount int
	TotalOld      int
	TotalNew      int
}

// Stats computes summary counts from a Diff and the sizes of the two
// manifests it was computed from.
func (d *Diff) Stats(oldCount, newCount int) DiffStats {
	return DiffStats{
		AddedCount:    len(d.Added),
		RemovedCount:  len(d.Removed),
		ModifiedCount: len(d.Modified),
		TotalOld:      oldCount,
		TotalNew:      newCount,
	}
}

// MigrationCost is the operational heuristic produced by EstimateCost:
// an estimate of what applying a diff will cost in bytes and time. It
// is explicitly not a correctness invariant, only a planning aid.
type MigrationCost struct {
	ChunksToFetch      int
	ChunksToRemove     int
	EstimatedBytes     int64
	EstimatedSeconds   float64
	PercentChanged     float64
	RecommendFullFetch bool
}
