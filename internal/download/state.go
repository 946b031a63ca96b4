// Package download implements the resilient download pipeline: a
// persisted state machine with checkpointed resume, per-workspace
// cross-process locking, and file tracking for crash recovery.
package download

import (
	"time"

	talariaerrors "github.com/talaria-db/talaria/internal/errors"
)

// StageType names one state of the download state machine.
type StageType string

const (
	StageInitializing  StageType = "initializing"
	StageDownloading   StageType = "downloading"
	StageVerifying     StageType = "verifying"
	StageDecompressing StageType = "decompressing"
	StageProcessing    StageType = "processing"
	StageFinalizing    StageType = "finalizing"
	StageComplete      StageType = "complete"
	StageFailed        StageType = "failed"
)

// Stage is a tagged-union value of the state machine: its Type selects
// which payload fields are meaningful. Failed carries whether the
// failure is recoverable (eligible for restore_last_checkpoint) and
// the error kind/message that caused it. Downloading and Decompressing
// carry the source/destination paths relevant to resume.
type Stage struct {
	Type StageType

	// Downloading, Decompressing
	Src string `json:"src,omitempty"`
	Dst string `json:"dst,omitempty"`

	// Failed
	Recoverable bool   `json:"recoverable,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	ErrorMsg    string `json:"error_msg,omitempty"`
}

// transitions enumerates every allowed (from, to) stage type pair.
// Failed's "any earlier non-terminal stage" allowance is handled
// separately by RestoreLastCheckpoint rather than listed here, since it
// is not a forward Transition.
var transitions = map[StageType]map[StageType]bool{
	StageInitializing:  {StageDownloading: true, StageFailed: true},
	StageDownloading:   {StageVerifying: true, StageFailed: true},
	StageVerifying:     {StageDecompressing: true, StageProcessing: true, StageFailed: true},
	StageDecompressing: {StageProcessing: true, StageFailed: true},
	StageProcessing:    {StageFinalizing: true, StageFailed: true},
	StageFinalizing:    {StageComplete: true, StageFailed: true},
	StageComplete:      {},
	StageFailed:        {},
}

// nonTerminal is the set of stages RestoreLastCheckpoint may return to.
var nonTerminal = map[StageType]bool{
	StageInitializing:  true,
	StageDownloading:   true,
	StageVerifying:     true,
	StageDecompressing: true,
	StageProcessing:    true,
	StageFinalizing:    true,
}

// Checkpoint is a (stage, timestamp) pair pushed onto the checkpoint
// stack on every transition.
type Checkpoint struct {
	Stage Stage     `json:"stage"`
	At    time.Time `json:"at"`
}

// maxCheckpoints bounds the checkpoint stack; the oldest is dropped
// once the bound is exceeded.
const maxCheckpoints = 16

// FileTracking records workspace artifacts the pipeline must not
// delete if it ends in Failed.
type FileTracking struct {
	PreserveOnFailure []string `json:"preserve_on_failure"`
}

// State is the full persisted record for one (source, dataset)
// download: its current stage, the checkpoint history, and tracked
// files.
type State struct {
	Source      string       `json:"source"`
	Dataset     string       `json:"dataset"`
	Stage       Stage        `json:"stage"`
	Files       FileTracking `json:"files"`
	Checkpoints []Checkpoint `json:"checkpoints"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NewState starts a fresh state record in Initializing.
func NewState(source, dataset string) *State {
	now := time.Now()
	return &State{
		Source:    source,
		Dataset:   dataset,
		Stage:     Stage{Type: StageInitializing},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the state to next, pushing the current stage onto
// the checkpoint stack. It returns InvalidStateError and leaves the
// record unmodified if the transition is not allowed.
func (s *State) Transition(next Stage) error {
	allowed := transitions[s.Stage.Type]
	if allowed == nil || !allowed[next.Type] {
		return talariaerrors.InvalidStateError(
			"transition from "+string(s.Stage.Type)+" to "+string(next.Type)+" is not allowed", nil)
	}
	s.pushCheckpoint()
	s.Stage = next
	s.UpdatedAt = time.Now()
	return nil
}

// pushCheckpoint records the current stage, dropping the oldest entry
// if the stack is at capacity.
func (s *State) pushCheckpoint() {
	cp := Checkpoint{Stage: s.Stage, At: s.UpdatedAt}
	if s.UpdatedAt.IsZero() {
		cp.At = time.Now()
	}
	s.Checkpoints = append(s.Checkpoints, cp)
	if len(s.Checkpoints) > maxCheckpoints {
		s.Checkpoints = s.Checkpoints[len(s.Checkpoints)-maxCheckpoints:]
	}
}

// Fail transitions to Failed with the given recoverability and error
// detail. Fail is always allowed from any non-terminal stage; from
// Complete or an already-Failed state it returns InvalidStateError.
func (s *State) Fail(recoverable bool, kind, message string) error {
	return s.Transition(Stage{Type: StageFailed, Recoverable: recoverable, ErrorKind: kind, ErrorMsg: message})
}

// RestoreLastCheckpoint pops the tail checkpoint and sets it as the
// current stage, provided the state is currently Failed{recoverable},
// and the popped checkpoint names a non-terminal stage. It returns
// InvalidStateError otherwise.
func (s *State) RestoreLastCheckpoint() error {
	if s.Stage.Type != StageFailed || !s.Stage.Recoverable {
		return talariaerrors.InvalidStateError("restore_last_checkpoint requires a recoverable Failed state", nil)
	}
	if len(s.Checkpoints) == 0 {
		return talariaerrors.InvalidStateError("no checkpoint to restore", nil)
	}
	last := s.Checkpoints[len(s.Checkpoints)-1]
	if !nonTerminal[last.Stage.Type] {
		return talariaerrors.InvalidStateError("checkpoint stage is not resumable", nil)
	}
	s.Checkpoints = s.Checkpoints[:len(s.Checkpoints)-1]
	s.Stage = last.Stage
	s.UpdatedAt = time.Now()
	return nil
}

// Resumable reports whether the download's final stage is neither
// Complete nor a permanently Failed (non-recoverable) state.
func (s *State) Resumable() bool {
	if s.Stage.Type == StageComplete {
		return false
	}
	if s.Stage.Type == StageFailed && !s.Stage.Recoverable {
		return false
	}
	return true
}
