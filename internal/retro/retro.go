// Package retro implements the retroactive (bi-temporal) query engine:
// given a sequence-time/taxonomy-time coordinate, it resolves which
// manifest and taxonomy snapshot apply, re-labels sequences through
// the taxonomy's merge chain, and reports how a caller-supplied
// sequence set changed between two coordinates.
//
// The engine is deliberately agnostic to where sequence metadata is
// stored: callers supply the sequence set for a coordinate (typically
// assembled from the index layer), and retro applies the temporal and
// taxonomic resolution logic on top.
package retro

import (
	"sort"
	"time"

	"github.com/talaria-db/talaria/internal/manifest"
	"github.com/talaria-db/talaria/internal/taxonomy"
)

// Coordinate is a bi-temporal point: an instant on the sequence axis
// and an instant on the taxonomy axis.
type Coordinate struct {
	SequenceTime time.Time
	TaxonomyTime time.Time
}

// At returns a coordinate with both axes set to t.
func At(t time.Time) Coordinate {
	return Coordinate{SequenceTime: t, TaxonomyTime: t}
}

// NewCoordinate returns a coordinate with independently set axes.
func NewCoordinate(sequenceTime, taxonomyTime time.Time) Coordinate {
	return Coordinate{SequenceTime: sequenceTime, TaxonomyTime: taxonomyTime}
}

// SequenceRecord is one sequence's identity and its taxon as known at
// ingest time, before any retroactive relabeling.
type SequenceRecord struct {
	ID      string
	TaxonID taxonomy.ID
}

// LabeledSequence is a SequenceRecord re-labeled against a specific
// taxonomy snapshot.
type LabeledSequence struct {
	ID      string
	TaxonID taxonomy.ID
	Dropped bool // true when TaxonID fell in the snapshot's deleted set and the caller opted to drop it
}

// SnapshotResult is the outcome of a point-in-time query.
type SnapshotResult struct {
	ManifestVersion string
	TaxonomyAt      time.Time
	Sequences       []LabeledSequence
}

// Engine answers retroactive queries for one (source, dataset) pair,
// backed by its manifest version chain and taxonomy evolution log.
type Engine struct {
	manifests       *manifest.Store
	evolution       *taxonomy.Evolution
	source, dataset string
}

// New returns an Engine over store's (source, dataset) version chain
// and evo's recorded taxonomy history.
func New(store *manifest.Store, evo *taxonomy.Evolution, source, dataset string) *Engine {
	return &Engine{manifests: store, evolution: evo, source: source, dataset: dataset}
}

// pickManifestVersion returns the version id whose manifest's
// creation time is at most coord.SequenceTime, greatest; ties break
// on the greater (lexicographically later) version id, which List
// already orders newest-first for canonical timestamp ids.
func (e *Engine) pickManifestVersion(coord Coordinate) (string, error) {
	ids, err := e.manifests.List(e.source, e.dataset, manifest.ListOpts{})
	if err != nil {
		return "", err
	}
	for _, id := range ids {
		m, err := e.manifests.Load(e.source, e.dataset, id)
		if err != nil {
			continue
		}
		if !m.CreatedAt.After(coord.SequenceTime) {
			return id, nil
		}
	}
	return "", errNoManifest
}

// Snapshot picks the manifest and taxonomy snapshot applicable at
// coord and re-labels sequences (supplied by the caller, typically
// drawn from the index layer for the chosen manifest) through the
// taxonomy's merge chain. Sequences whose taxon fell into the
// snapshot's deleted set are dropped when dropDeleted is set.
func (e *Engine) Snapshot(coord Coordinate, sequences []SequenceRecord, dropDeleted bool) (*SnapshotResult, error) {
	versionID, err := e.pickManifestVersion(coord)
	if err != nil {
		return nil, err
	}

	snap, _, at, ok := e.evolution.SnapshotAt(coord.TaxonomyTime)
	if !ok {
		return nil, errNoTaxonomySnapshot
	}

	labeled := make([]LabeledSequence, 0, len(sequences))
	for _, s := range sequences {
		canonical := e.evolution.CanonicalTaxon(s.TaxonID, coord.TaxonomyTime)
		_, stillPresent := snap.Taxa[canonical]
		dropped := !stillPresent && dropDeleted
		labeled = append(labeled, LabeledSequence{ID: s.ID, TaxonID: canonical, Dropped: dropped})
	}

	return &SnapshotResult{ManifestVersion: versionID, TaxonomyAt: at, Sequences: labeled}, nil
}
