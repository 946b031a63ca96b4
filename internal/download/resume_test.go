package download

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindResumableDownloadsSkipsCompleteAndPermanentFailure(t *testing.T) {
	base := t.TempDir()

	resumable, err := OpenWorkspace(base, "refseq", "viral")
	require.NoError(t, err)
	s := NewState("refseq", "viral")
	require.NoError(t, s.Transition(Stage{Type: StageDownloading}))
	require.NoError(t, resumable.SaveState(s))

	complete, err := OpenWorkspace(base, "refseq", "plasmid")
	require.NoError(t, err)
	cs := NewState("refseq", "plasmid")
	require.NoError(t, cs.Transition(Stage{Type: StageDownloading}))
	require.NoError(t, cs.Transition(Stage{Type: StageVerifying}))
	require.NoError(t, cs.Transition(Stage{Type: StageProcessing}))
	require.NoError(t, cs.Transition(Stage{Type: StageFinalizing}))
	require.NoError(t, cs.Transition(Stage{Type: StageComplete}))
	require.NoError(t, complete.SaveState(cs))

	failed, err := OpenWorkspace(base, "genbank", "bacteria")
	require.NoError(t, err)
	fs := NewState("genbank", "bacteria")
	require.NoError(t, fs.Fail(false, "IoPermanent", "disk full"))
	require.NoError(t, failed.SaveState(fs))

	results, err := FindResumableDownloads(base)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "viral", results[0].Dataset)
}

func TestFindResumableDownloadsNoWorkspacesReturnsEmpty(t *testing.T) {
	results, err := FindResumableDownloads(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestResumeOffsetZeroForMissingFile(t *testing.T) {
	offset, err := ResumeOffset(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), offset)
}

func TestResumeOffsetMatchesExistingFileSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	offset, err := ResumeOffset(path)
	require.NoError(t, err)
	assert.Equal(t, int64(11), offset)
}
