package dbref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	talariaerrors "github.com/talaria-db/talaria/internal/errors"
)

func TestParseSourceDatasetOnly(t *testing.T) {
	r, err := Parse("refseq/viral")
	require.NoError(t, err)
	assert.Equal(t, "refseq", r.Source)
	assert.Equal(t, "viral", r.Dataset)
	assert.Empty(t, r.Version)
	assert.Empty(t, r.Profile)
}

func TestParseWithTimestampVersion(t *testing.T) {
	r, err := Parse("refseq/viral@20260101_120000")
	require.NoError(t, err)
	assert.Equal(t, "20260101_120000", r.Version)
}

func TestParseWithAliasVersionAndProfile(t *testing.T) {
	r, err := Parse("refseq/viral@current:taxonomy-only")
	require.NoError(t, err)
	assert.Equal(t, "current", r.Version)
	assert.Equal(t, "taxonomy-only", r.Profile)
}

func TestParseRejectsMissingDataset(t *testing.T) {
	_, err := Parse("refseq")
	assert.Error(t, err)
}

func TestParseRejectsEmptySegments(t *testing.T) {
	_, err := Parse("/viral")
	assert.Error(t, err)
	_, err = Parse("refseq/")
	assert.Error(t, err)
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"refseq/viral", "refseq/viral@20260101_120000", "refseq/viral@current:profile-a"} {
		r, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, r.String())
	}
}

func TestResolveKnownSuggestsClosestMatch(t *testing.T) {
	r, err := Parse("refseq/viruses")
	require.NoError(t, err)

	known := []string{"refseq/viral", "refseq/bacterial", "genbank/viral"}
	err = ResolveKnown(r, known)
	require.Error(t, err)

	structuredErr, ok := err.(*talariaerrors.Error)
	require.True(t, ok)
	assert.Contains(t, structuredErr.Suggestion, "refseq/viral")
}

func TestResolveKnownAcceptsExactMatch(t *testing.T) {
	r, err := Parse("refseq/viral")
	require.NoError(t, err)
	assert.NoError(t, ResolveKnown(r, []string{"refseq/viral"}))
}
