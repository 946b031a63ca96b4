package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerStartUpdateIncrementFinish(t *testing.T) {
	tr := NewTracker()
	tr.StartOperation("download", 100, "fetching")

	snap, ok := tr.Snapshot("download")
	require.True(t, ok)
	assert.Equal(t, 100, snap.Total)
	assert.Equal(t, 0, snap.Current)
	assert.False(t, snap.Finished)

	tr.Update("download", 40)
	tr.Increment("download", 10)

	snap, ok = tr.Snapshot("download")
	require.True(t, ok)
	assert.Equal(t, 50, snap.Current)

	tr.Finish("download", "done")
	snap, ok = tr.Snapshot("download")
	require.True(t, ok)
	assert.True(t, snap.Finished)
	assert.Equal(t, "done", snap.Message)
}

func TestSnapshotMissingKindReturnsNotOK(t *testing.T) {
	tr := NewTracker()
	_, ok := tr.Snapshot("never-started")
	assert.False(t, ok)
}

func TestAllReturnsEveryTrackedKind(t *testing.T) {
	tr := NewTracker()
	tr.StartOperation("download", 10, "")
	tr.StartOperation("verify", 1, "")

	all := tr.All()
	assert.Len(t, all, 2)
}

func TestNoopSinkDiscardsEverything(t *testing.T) {
	var sink Sink = NoopSink{}
	sink.StartOperation("x", 1, "")
	sink.Update("x", 1)
	sink.Increment("x", 1)
	sink.Finish("x", "")
}
