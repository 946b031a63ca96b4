package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talaria-db/talaria/internal/hashing"
	"github.com/talaria-db/talaria/internal/taxonomy"
)

func entry(seed string, taxa ...taxonomy.ID) ChunkEntry {
	return ChunkEntry{Hash: hashing.Sum([]byte(seed)), TaxonIDs: taxa, SequenceCount: 1, Size: 100}
}

func TestCompareDetectsAddedRemovedModified(t *testing.T) {
	old := &Manifest{ChunkIndex: []ChunkEntry{
		entry("a", 1),
		entry("b", 2),
		entry("c", 3),
	}}
	new := &Manifest{ChunkIndex: []ChunkEntry{
		entry("a", 1),
		entry("b-modified", 2),
		entry("d", 4),
	}}

	diff := Compare(old, new)

	assert.ElementsMatch(t, []hashing.Hash{hashing.Sum([]byte("d"))}, diff.Added)
	assert.ElementsMatch(t, []hashing.Hash{hashing.Sum([]byte("c"))}, diff.Removed)
	assert.ElementsMatch(t, []hashing.Hash{hashing.Sum([]byte("b-modified"))}, diff.Modified)
}

func TestCompareTaxonomyNewAndDeprecated(t *testing.T) {
	old := &Manifest{ChunkIndex: []ChunkEntry{entry("a", 1, 2)}}
	new := &Manifest{ChunkIndex: []ChunkEntry{entry("a-new", 2, 3)}}

	diff := Compare(old, new)
	assert.ElementsMatch(t, []taxonomy.ID{3}, diff.Taxonomy.NewTaxa)
	assert.ElementsMatch(t, []taxonomy.ID{1}, diff.Taxonomy.DeprecatedTaxa)
}

func TestPositionBitmapTracksPositions(t *testing.T) {
	old := &Manifest{ChunkIndex: []ChunkEntry{entry("a"), entry("b"), entry("c")}}
	new := &Manifest{ChunkIndex: []ChunkEntry{entry("a"), entry("x"), entry("c"), entry("y")}}

	diff := Compare(old, new)
	bm := PositionBitmap(diff.Changes, ChangeAdded)
	assert.True(t, bm.GetCardinality() >= 1)
}

func TestEstimateCostRecommendsFullFetchAboveThreshold(t *testing.T) {
	diff := &Diff{
		Added:    []hashing.Hash{hashing.Sum([]byte("1")), hashing.Sum([]byte("2"))},
		Removed:  []hashing.Hash{hashing.Sum([]byte("3"))},
		Modified: nil,
	}
	cost := EstimateCost(diff, 4)
	assert.True(t, cost.RecommendFullFetch)
	assert.Equal(t, 2, cost.ChunksToFetch)
	assert.Equal(t, 1, cost.ChunksToRemove)
	assert.Greater(t, cost.EstimatedBytes, int64(0))
}

func TestEstimateCostBelowThreshold(t *testing.T) {
	diff := &Diff{Added: []hashing.Hash{hashing.Sum([]byte("1"))}}
	cost := EstimateCost(diff, 100)
	assert.False(t, cost.RecommendFullFetch)
}
