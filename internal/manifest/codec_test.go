package manifest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talaria-db/talaria/internal/hashing"
	"github.com/talaria-db/talaria/internal/store"
	"github.com/talaria-db/talaria/internal/taxonomy"
)

func sampleManifest() *Manifest {
	headerTaxon := taxonomy.ID(562)
	return &Manifest{
		Version:              "20260101_000000",
		CreatedAt:            time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		SequenceTime:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		TaxonomyTime:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		SequenceVersion:      "seq-v1",
		TaxonomyVersion:      "tax-v1",
		SequenceRoot:         hashing.Sum([]byte("seq-root")),
		TaxonomyRoot:         hashing.Sum([]byte("tax-root")),
		TaxonomyManifestHash: hashing.Sum([]byte("tax-manifest")),
		TaxonomyDumpVersion:  "2026-01-01",
		SourceDatabase:       "refseq",
		ChunkIndex: []ChunkEntry{
			{
				Hash:          hashing.Sum([]byte("chunk-1")),
				TaxonIDs:      []taxonomy.ID{562, 2},
				SequenceCount: 10,
				Size:          2048,
				Format:        store.FormatZstd,
			},
		},
		Discrepancies: []Discrepancy{
			{
				SequenceID:  "seq-1",
				HeaderTaxon: &headerTaxon,
				Confidence:  0.75,
				DetectedAt:  time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
				Type:        DiscrepancyConflict,
			},
		},
		ETag:            "etag-1",
		PreviousVersion: "20251201_000000",
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := sampleManifest()
	encoded, err := Encode(m)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, m.Version, decoded.Version)
	assert.True(t, m.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, m.SequenceRoot, decoded.SequenceRoot)
	assert.Equal(t, m.ChunkIndex, decoded.ChunkIndex)
	assert.Equal(t, m.ETag, decoded.ETag)
	assert.Equal(t, m.PreviousVersion, decoded.PreviousVersion)
	require.Len(t, decoded.Discrepancies, 1)
	assert.Equal(t, *m.Discrepancies[0].HeaderTaxon, *decoded.Discrepancies[0].HeaderTaxon)
	assert.Nil(t, decoded.Discrepancies[0].MappedTaxon)
	assert.InDelta(t, m.Discrepancies[0].Confidence, decoded.Discrepancies[0].Confidence, 0.0001)
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	_, err := Decode([]byte("not a manifest at all"))
	assert.Error(t, err)
}

func TestDecodeRejectsNewerFormatVersion(t *testing.T) {
	m := sampleManifest()
	encoded, err := Encode(m)
	require.NoError(t, err)
	encoded[4] = formatVersion + 1

	_, err = Decode(encoded)
	assert.Error(t, err)
}
