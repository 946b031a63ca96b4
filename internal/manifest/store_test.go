package manifest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talaria-db/talaria/internal/hashing"
)

func manifestWithChunks(version string, seeds ...string) *Manifest {
	entries := make([]ChunkEntry, len(seeds))
	leaves := make([]hashing.Hash, len(seeds))
	for i, seed := range seeds {
		h := hashing.Sum([]byte(seed))
		entries[i] = ChunkEntry{Hash: h, SequenceCount: 1, Size: 10}
		leaves[i] = h
	}
	tree := hashing.Build(leaves)
	return &Manifest{
		Version:      version,
		CreatedAt:    time.Now().UTC(),
		SequenceRoot: tree.Root(),
		ChunkIndex:   entries,
	}
}

func TestCreateVersionSetsCurrentAlias(t *testing.T) {
	store, err := Open(t.TempDir(), 3, nil)
	require.NoError(t, err)

	m := manifestWithChunks("20260101_000000", "a", "b")
	_, err = store.CreateVersion("refseq", "viral", m)
	require.NoError(t, err)

	current, err := store.ResolveAlias("refseq", "viral", "current")
	require.NoError(t, err)
	assert.Equal(t, "20260101_000000", current)
}

func TestListReturnsNewestFirst(t *testing.T) {
	store, err := Open(t.TempDir(), 10, nil)
	require.NoError(t, err)

	for _, v := range []string{"20260101_000000", "20260102_000000", "20260103_000000"} {
		_, err := store.CreateVersion("refseq", "viral", manifestWithChunks(v, "x"))
		require.NoError(t, err)
	}

	ids, err := store.List("refseq", "viral", ListOpts{})
	require.NoError(t, err)
	assert.Equal(t, []string{"20260103_000000", "20260102_000000", "20260101_000000"}, ids)
}

func TestLoadRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir(), 3, nil)
	require.NoError(t, err)

	m := manifestWithChunks("20260101_000000", "a", "b", "c")
	_, err = store.CreateVersion("refseq", "viral", m)
	require.NoError(t, err)

	loaded, err := store.Load("refseq", "viral", "20260101_000000")
	require.NoError(t, err)
	assert.Equal(t, m.ChunkIndex, loaded.ChunkIndex)
}

func TestDeleteClearsCurrentAlias(t *testing.T) {
	store, err := Open(t.TempDir(), 3, nil)
	require.NoError(t, err)

	_, err = store.CreateVersion("refseq", "viral", manifestWithChunks("20260101_000000", "a"))
	require.NoError(t, err)

	require.NoError(t, store.Delete("refseq", "viral", "20260101_000000"))

	_, err = store.ResolveAlias("refseq", "viral", "current")
	assert.Error(t, err)
}

func TestRetentionKeepsOnlyNewest(t *testing.T) {
	store, err := Open(t.TempDir(), 2, nil)
	require.NoError(t, err)

	for _, v := range []string{"20260101_000000", "20260102_000000", "20260103_000000"} {
		_, err := store.CreateVersion("refseq", "viral", manifestWithChunks(v, "x"))
		require.NoError(t, err)
	}

	ids, err := store.List("refseq", "viral", ListOpts{})
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Equal(t, []string{"20260103_000000", "20260102_000000"}, ids)
}

func TestCleanupIsIdempotent(t *testing.T) {
	store, err := Open(t.TempDir(), 10, nil)
	require.NoError(t, err)

	_, err = store.CreateVersion("refseq", "viral", manifestWithChunks("20260101_000000", "a"))
	require.NoError(t, err)

	deleted, err := store.Cleanup("refseq", "viral", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"20260101_000000"}, deleted)

	deleted, err = store.Cleanup("refseq", "viral", 0)
	require.NoError(t, err)
	assert.Empty(t, deleted)
}
