package retro

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talaria-db/talaria/internal/hashing"
	"github.com/talaria-db/talaria/internal/manifest"
	"github.com/talaria-db/talaria/internal/taxonomy"
)

func manifestAt(version string, createdAt time.Time) *manifest.Manifest {
	h := hashing.Sum([]byte(version))
	tree := hashing.Build([]hashing.Hash{h})
	return &manifest.Manifest{
		Version:      version,
		CreatedAt:    createdAt,
		SequenceRoot: tree.Root(),
		ChunkIndex:   []manifest.ChunkEntry{{Hash: h, SequenceCount: 1, Size: 10}},
	}
}

func setupEngine(t *testing.T) (*Engine, time.Time, time.Time) {
	t.Helper()
	store, err := manifest.Open(t.TempDir(), 10, nil)
	require.NoError(t, err)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err = store.CreateVersion("refseq", "viral", manifestAt("20240101_000000", t0))
	require.NoError(t, err)
	_, err = store.CreateVersion("refseq", "viral", manifestAt("20240601_000000", t1))
	require.NoError(t, err)

	snapA := taxonomy.NewSnapshot([]taxonomy.Record{
		{ID: 100, Name: "old genus", Rank: taxonomy.RankGenus},
		{ID: 1, Name: "species-a", Rank: taxonomy.RankSpecies, ParentID: 100},
	})
	snapB := taxonomy.NewSnapshot([]taxonomy.Record{
		{ID: 200, Name: "new genus", Rank: taxonomy.RankGenus},
		{ID: 1, Name: "species-a", Rank: taxonomy.RankSpecies, ParentID: 200},
	})

	evo := taxonomy.NewEvolution()
	evo.AddVersion(t0, snapA, nil)
	evo.AddVersion(t1, snapB, map[taxonomy.ID]taxonomy.ID{100: 200})

	return New(store, evo, "refseq", "viral"), t0, t1
}

func TestSnapshotPicksManifestAtOrBeforeCoordinate(t *testing.T) {
	engine, t0, t1 := setupEngine(t)
	mid := t0.Add(2 * time.Hour)

	result, err := engine.Snapshot(At(mid), []SequenceRecord{{ID: "seq1", TaxonID: 1}}, false)
	require.NoError(t, err)
	assert.Equal(t, "20240101_000000", result.ManifestVersion)

	result, err = engine.Snapshot(At(t1.Add(time.Hour)), nil, false)
	require.NoError(t, err)
	assert.Equal(t, "20240601_000000", result.ManifestVersion)
}

func TestSnapshotKeepsTaxonWhoseParentMerged(t *testing.T) {
	engine, _, t1 := setupEngine(t)

	result, err := engine.Snapshot(At(t1), []SequenceRecord{{ID: "seq1", TaxonID: 1}}, false)
	require.NoError(t, err)
	require.Len(t, result.Sequences, 1)
	assert.Equal(t, taxonomy.ID(1), result.Sequences[0].TaxonID)
}

func TestDiffStableSequenceIsNotAddedOrRemoved(t *testing.T) {
	engine, t0, t1 := setupEngine(t)

	seqs := []SequenceRecord{{ID: "seq1", TaxonID: 1}}
	changes, err := engine.Diff(At(t0), At(t1), seqs, seqs)
	require.NoError(t, err)
	assert.Empty(t, changes.Added)
	assert.Empty(t, changes.Removed)
}

func TestJoinFindsParentChange(t *testing.T) {
	engine, t0, t1 := setupEngine(t)

	results := engine.Join(t0, t1, JoinOpts{})
	var found bool
	for _, r := range results {
		if r.ID == "1" {
			found = true
			assert.Equal(t, taxonomy.ID(100), r.OldTaxon)
			assert.Equal(t, taxonomy.ID(200), r.NewTaxon)
		}
	}
	assert.True(t, found)
}

func TestMassReclassificationsGroupsAboveThreshold(t *testing.T) {
	store, err := manifest.Open(t.TempDir(), 10, nil)
	require.NoError(t, err)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	snapA := taxonomy.NewSnapshot([]taxonomy.Record{
		{ID: 1, Rank: taxonomy.RankSpecies, ParentID: 10},
		{ID: 2, Rank: taxonomy.RankSpecies, ParentID: 10},
		{ID: 3, Rank: taxonomy.RankSpecies, ParentID: 20},
	})
	snapB := taxonomy.NewSnapshot([]taxonomy.Record{
		{ID: 1, Rank: taxonomy.RankSpecies, ParentID: 11},
		{ID: 2, Rank: taxonomy.RankSpecies, ParentID: 11},
		{ID: 3, Rank: taxonomy.RankSpecies, ParentID: 20},
	})

	evo := taxonomy.NewEvolution()
	evo.AddVersion(t0, snapA, nil)
	evo.AddVersion(t1, snapB, nil)

	engine := New(store, evo, "refseq", "viral")
	transitions := engine.MassReclassifications(2, t0, t1)
	require.Len(t, transitions, 1)
	assert.Equal(t, taxonomy.ID(10), transitions[0].OldParent)
	assert.Equal(t, taxonomy.ID(11), transitions[0].NewParent)
	assert.Equal(t, 2, transitions[0].Count)
}

func TestEvolutionTracksCreationAndReclassification(t *testing.T) {
	engine, t0, t1 := setupEngine(t)

	events := engine.Evolution(1, t0, t1)
	require.Len(t, events, 2)
	assert.Equal(t, EntityCreated, events[0].Type)
	assert.Equal(t, EntityReclassified, events[1].Type)
}
