package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	talariaerrors "github.com/talaria-db/talaria/internal/errors"
)

func TestTransitionAllowsDocumentedPath(t *testing.T) {
	s := NewState("refseq", "viral")
	require.NoError(t, s.Transition(Stage{Type: StageDownloading}))
	require.NoError(t, s.Transition(Stage{Type: StageVerifying}))
	require.NoError(t, s.Transition(Stage{Type: StageDecompressing}))
	require.NoError(t, s.Transition(Stage{Type: StageProcessing}))
	require.NoError(t, s.Transition(Stage{Type: StageFinalizing}))
	require.NoError(t, s.Transition(Stage{Type: StageComplete}))
	assert.Equal(t, StageComplete, s.Stage.Type)
}

func TestTransitionRejectsUndocumentedPath(t *testing.T) {
	s := NewState("refseq", "viral")
	err := s.Transition(Stage{Type: StageProcessing})
	require.Error(t, err)
	var structuredErr *talariaerrors.Error
	require.ErrorAs(t, err, &structuredErr)
	assert.Equal(t, StageInitializing, s.Stage.Type, "rejected transition must not modify state")
}

func TestCompleteHasNoOutgoingTransitions(t *testing.T) {
	s := NewState("refseq", "viral")
	for _, st := range []StageType{StageDownloading, StageVerifying, StageProcessing, StageFinalizing, StageComplete} {
		require.NoError(t, s.Transition(Stage{Type: st}))
	}
	err := s.Transition(Stage{Type: StageFailed})
	assert.Error(t, err)
}

func TestCheckpointStackBounded(t *testing.T) {
	s := NewState("refseq", "viral")
	require.NoError(t, s.Transition(Stage{Type: StageDownloading}))
	for i := 0; i < maxCheckpoints+10; i++ {
		require.NoError(t, s.Transition(Stage{Type: StageFailed, Recoverable: true}))
		require.NoError(t, s.RestoreLastCheckpoint())
	}
	assert.LessOrEqual(t, len(s.Checkpoints), maxCheckpoints)
}

func TestRestoreLastCheckpointReturnsToPriorStage(t *testing.T) {
	s := NewState("refseq", "viral")
	require.NoError(t, s.Transition(Stage{Type: StageDownloading}))
	require.NoError(t, s.Transition(Stage{Type: StageVerifying}))
	require.NoError(t, s.Fail(true, "IoTransient", "network blip"))

	require.NoError(t, s.RestoreLastCheckpoint())
	assert.Equal(t, StageVerifying, s.Stage.Type)
}

func TestRestoreLastCheckpointRejectsNonRecoverableFailure(t *testing.T) {
	s := NewState("refseq", "viral")
	require.NoError(t, s.Transition(Stage{Type: StageDownloading}))
	require.NoError(t, s.Fail(false, "IoPermanent", "disk full"))

	err := s.RestoreLastCheckpoint()
	assert.Error(t, err)
}

func TestResumableFalseForCompleteAndPermanentFailure(t *testing.T) {
	complete := NewState("a", "b")
	require.NoError(t, complete.Transition(Stage{Type: StageDownloading}))
	require.NoError(t, complete.Transition(Stage{Type: StageVerifying}))
	require.NoError(t, complete.Transition(Stage{Type: StageProcessing}))
	require.NoError(t, complete.Transition(Stage{Type: StageFinalizing}))
	require.NoError(t, complete.Transition(Stage{Type: StageComplete}))
	assert.False(t, complete.Resumable())

	failed := NewState("a", "b")
	require.NoError(t, failed.Fail(false, "IoPermanent", "disk full"))
	assert.False(t, failed.Resumable())
}

func TestResumableTrueForRecoverableFailure(t *testing.T) {
	s := NewState("a", "b")
	require.NoError(t, s.Transition(Stage{Type: StageDownloading}))
	require.NoError(t, s.Fail(true, "IoTransient", "timeout"))
	assert.True(t, s.Resumable())
}
