package manifest

import (
	roaring "github.com/RoaringBitmap/roaring/v2"

	"github.com/talaria-db/talaria/internal/hashing"
	"github.com/talaria-db/talaria/internal/taxonomy"
)

// Compare computes the chunk-set and taxonomy diff between an older
// and a newer manifest. Chunk-index entries are compared by stored
// position: a hash present at the same position in both is unchanged;
// a hash present in old but not new (by value) is removed; present in
// new but not old is added; and an entry whose key position exists in
// both but whose hash differs is modified.
func Compare(old, new *Manifest) *Diff {
	oldPos := indexPositions(old.ChunkIndex)
	newPos := indexPositions(new.ChunkIndex)

	diff := &Diff{}
	for h, pos := range newPos {
		if _, ok := oldPos[h]; !ok {
			diff.Added = append(diff.Added, h)
			diff.Changes = append(diff.Changes, ChunkChange{Type: ChangeAdded, Hash: h, Position: pos})
		}
	}
	for h, pos := range oldPos {
		if _, ok := newPos[h]; !ok {
			diff.Removed = append(diff.Removed, h)
			diff.Changes = append(diff.Changes, ChunkChange{Type: ChangeRemoved, Hash: h, Position: pos})
		}
	}

	// Same position, different hash: treat as a modification rather
	// than an unrelated add/remove pair, when both manifests have an
	// entry at that position.
	limit := len(old.ChunkIndex)
	if len(new.ChunkIndex) < limit {
		limit = len(new.ChunkIndex)
	}
	for i := 0; i < limit; i++ {
		oldHash := old.ChunkIndex[i].Hash
		newHash := new.ChunkIndex[i].Hash
		if oldHash != newHash {
			diff.Modified = append(diff.Modified, newHash)
			diff.Changes = append(diff.Changes, ChunkChange{
				Type: ChangeModified, Hash: newHash, OldHash: oldHash, Position: i,
			})
		}
	}

	diff.Taxonomy = compareTaxonomy(old, new)
	return diff
}

func indexPositions(entries []ChunkEntry) map[hashing.Hash]int {
	m := make(map[hashing.Hash]int, len(entries))
	for i, e := range entries {
		m[e.Hash] = i
	}
	return m
}

// compareTaxonomy reports taxon IDs newly present or newly absent
// between two manifests' chunk indexes, as a coarse taxonomy-change
// signal independent of any loaded taxonomy snapshot. Richer
// reclassification/merge detection lives in internal/taxonomy's
// Evolution, driven from full snapshots rather than manifest diffs.
func compareTaxonomy(old, new *Manifest) TaxonomyChanges {
	oldTaxa := taxonSet(old.ChunkIndex)
	newTaxa := taxonSet(new.ChunkIndex)

	var changes TaxonomyChanges
	for t := range newTaxa {
		if !oldTaxa[t] {
			changes.NewTaxa = append(changes.NewTaxa, t)
		}
	}
	for t := range oldTaxa {
		if !newTaxa[t] {
			changes.DeprecatedTaxa = append(changes.DeprecatedTaxa, t)
		}
	}
	return changes
}

func taxonSet(entries []ChunkEntry) map[taxonomy.ID]bool {
	set := make(map[taxonomy.ID]bool)
	for _, e := range entries {
		for _, t := range e.TaxonIDs {
			set[t] = true
		}
	}
	return set
}

// PositionBitmap renders a set of chunk-index positions as a roaring
// bitmap, used to compactly serialize added/removed/modified position
// sets for the CLI or a cached diff.
func PositionBitmap(changes []ChunkChange, t ChangeType) *roaring.Bitmap {
	bm := roaring.New()
	for _, c := range changes {
		if c.Type == t {
			bm.Add(uint32(c.Position))
		}
	}
	return bm
}
