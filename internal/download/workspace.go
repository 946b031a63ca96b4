package download

import (
	"encoding/json"
	"os"
	"path/filepath"

	talariaerrors "github.com/talaria-db/talaria/internal/errors"
)

const (
	stateFileName = "state.json"
	lockFileName  = ".lock"
)

// Workspace is the per-(source,dataset) scratch directory holding the
// persisted state machine, the workspace lock, and in-progress
// download artifacts.
type Workspace struct {
	dir string
}

// workspaceDirName matches the on-disk layout's downloads/<source>_<dataset>.
func workspaceDirName(source, dataset string) string {
	return source + "_" + dataset
}

// OpenWorkspace returns the workspace for (source, dataset) under
// base/downloads, creating the directory if it does not exist.
func OpenWorkspace(base, source, dataset string) (*Workspace, error) {
	dir := filepath.Join(base, "downloads", workspaceDirName(source, dataset))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, talariaerrors.IOPermanentError("failed to create workspace directory", err)
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace's root directory.
func (w *Workspace) Dir() string { return w.dir }

// ArtifactPath returns the path of an in-progress artifact named name
// within the workspace.
func (w *Workspace) ArtifactPath(name string) string {
	return filepath.Join(w.dir, name)
}

func (w *Workspace) statePath() string {
	return filepath.Join(w.dir, stateFileName)
}

func (w *Workspace) lockPath() string {
	return filepath.Join(w.dir, lockFileName)
}

// LoadState reads and decodes the workspace's persisted state. It
// returns an error satisfying talariaerrors.NotFoundError semantics if
// no state file has been written yet.
func (w *Workspace) LoadState() (*State, error) {
	data, err := os.ReadFile(w.statePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, talariaerrors.NotFoundError("no state file for workspace "+w.dir, err)
		}
		return nil, talariaerrors.IOTransientError("failed to read state file", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, talariaerrors.CorruptedError("state file is not valid JSON", err)
	}
	return &s, nil
}

// SaveState atomically persists s to the workspace's state file via
// write-to-temp, fsync, rename.
func (w *Workspace) SaveState(s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return talariaerrors.InternalError("failed to encode state", err)
	}
	return writeAtomic(w.statePath(), data)
}

// writeAtomic writes data to path by creating a temp file in the same
// directory, syncing it, then renaming over path. Rename is atomic on
// the same filesystem, so readers never observe a partial write.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return talariaerrors.IOTransientError("failed to create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return talariaerrors.IOTransientError("failed to write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return talariaerrors.IOTransientError("failed to sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return talariaerrors.IOTransientError("failed to close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return talariaerrors.IOTransientError("failed to rename temp file into place", err)
	}
	return nil
}

// Remove deletes the entire workspace directory. Callers should only
// call this on Complete, or when TALARIA_PRESERVE_ON_FAILURE is unset
// and the pipeline ended in a non-recoverable Failed state.
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return talariaerrors.IOPermanentError("failed to remove workspace", err)
	}
	return nil
}
