package taxonomy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimelineDetectsMergeVsDeprecation(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	v0 := NewSnapshot([]Record{
		{ID: 100, Name: "old genus", Rank: RankGenus},
		{ID: 200, Name: "deprecated sp.", Rank: RankSpecies},
	})
	v1 := NewSnapshot([]Record{
		{ID: 101, Name: "new genus", Rank: RankGenus},
	})

	e := NewEvolution()
	e.AddVersion(t0, v0, nil)
	e.AddVersion(t1, v1, map[ID]ID{100: 101})

	events := e.Timeline()

	var sawMerge, sawDeprecation, sawNew bool
	for _, ev := range events {
		switch ev.Type {
		case EventMerge:
			sawMerge = true
			assert.Equal(t, []ID{100, 101}, ev.TaxaID)
		case EventReclassification:
			sawDeprecation = true
			assert.Equal(t, []ID{200}, ev.TaxaID)
		case EventNewTaxa:
			sawNew = true
			assert.Contains(t, ev.TaxaID, ID(101))
		}
	}
	assert.True(t, sawMerge, "expected a merge event")
	assert.True(t, sawDeprecation, "expected a deprecation event")
	assert.True(t, sawNew, "expected a new-taxa event")
}

func TestTrackTaxonHistory(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	v0 := NewSnapshot([]Record{{ID: 5, Name: "x", Rank: RankSpecies}})
	v1 := NewSnapshot(nil)

	e := NewEvolution()
	e.AddVersion(t0, v0, nil)
	e.AddVersion(t1, v1, nil)

	history := e.TrackTaxon(5)
	assert.Len(t, history, 2)
	assert.Equal(t, StatusActive, history[0].Status)
	assert.Equal(t, StatusDeprecated, history[1].Status)
}

func TestAffectedTaxa(t *testing.T) {
	oldSnap := NewSnapshot([]Record{{ID: 1}, {ID: 2}})
	newSnap := NewSnapshot([]Record{{ID: 1}, {ID: 3}})

	affected := AffectedTaxa(oldSnap, newSnap, map[ID]ID{2: 3})
	assert.ElementsMatch(t, []ID{3, 2}, affected)
}

func TestSnapshotAtPicksLatestVersionNotAfterTime(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	v0 := NewSnapshot([]Record{{ID: 1, Name: "early"}})
	v1 := NewSnapshot([]Record{{ID: 1, Name: "later"}})

	e := NewEvolution()
	e.AddVersion(t0, v0, nil)
	e.AddVersion(t1, v1, nil)

	snap, _, at, ok := e.SnapshotAt(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, ok)
	assert.True(t, at.Equal(t0))
	assert.Equal(t, "early", snap.Taxa[1].Name)

	_, _, _, ok = e.SnapshotAt(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestCanonicalTaxonFollowsMergeChain(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	e := NewEvolution()
	e.AddVersion(t0, NewSnapshot(nil), map[ID]ID{100: 101})
	e.AddVersion(t1, NewSnapshot(nil), map[ID]ID{101: 102})

	assert.Equal(t, ID(102), e.CanonicalTaxon(100, t1))
	assert.Equal(t, ID(101), e.CanonicalTaxon(100, t0))
}
