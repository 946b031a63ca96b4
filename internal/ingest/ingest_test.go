package ingest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talaria-db/talaria/internal/chunker"
	"github.com/talaria-db/talaria/internal/index"
	"github.com/talaria-db/talaria/internal/manifest"
	"github.com/talaria-db/talaria/internal/store"
	"github.com/talaria-db/talaria/internal/taxonomy"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	base := t.TempDir()

	s, err := store.Open(filepath.Join(base, "chunks"), nil)
	require.NoError(t, err)
	idx, err := index.Open(filepath.Join(base, "index"), 1000, 0.01)
	require.NoError(t, err)
	versions, err := manifest.Open(base, 3, nil)
	require.NoError(t, err)

	snap := taxonomy.NewSnapshot([]taxonomy.Record{
		{ID: 9606, Name: "Homo sapiens", Rank: taxonomy.RankSpecies},
	})
	// Small bounds so the 4-byte test sequences actually split across
	// chunk boundaries instead of all landing in one chunk.
	strategy := chunker.Strategy{TargetBytes: 1, MaxBytes: 8, MinSequencesPerChunk: 1, TaxonomicCoherence: 0.8}
	c := chunker.New(snap, strategy)

	return New(c, s, idx, versions)
}

func records() []chunker.Record {
	taxon := taxonomy.ID(9606)
	return []chunker.Record{
		{SequenceID: "A", Payload: []byte("ACGT"), TaxonID: &taxon},
		{SequenceID: "B", Payload: []byte("TTTT"), TaxonID: &taxon},
	}
}

func TestIngestRegistersManifestVersion(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now()

	result, err := e.Ingest(t.Context(), "refseq", "human", records(), nil, now, now)
	require.NoError(t, err)
	assert.Greater(t, result.ChunkCount, 0)
	assert.Equal(t, result.ChunkCount, result.NewChunks, "first ingest: every chunk is new")

	loaded, err := e.versions.Load("refseq", "human", result.Version.ID)
	require.NoError(t, err)
	assert.False(t, loaded.SequenceRoot.IsZero())
}

func TestIngestDedupsUnchangedChunksAcrossReleases(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now()

	_, err := e.Ingest(t.Context(), "refseq", "human", records(), nil, now, now)
	require.NoError(t, err)

	taxon := taxonomy.ID(9606)
	second := append(records(), chunker.Record{SequenceID: "C", Payload: []byte("GGGG"), TaxonID: &taxon})
	result, err := e.Ingest(t.Context(), "refseq", "human", second, nil, now, now)
	require.NoError(t, err)

	assert.Less(t, result.NewChunks, result.ChunkCount, "second ingest should reuse at least one existing chunk")
}
