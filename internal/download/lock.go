package download

import (
	"encoding/json"
	"os"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	talariaerrors "github.com/talaria-db/talaria/internal/errors"
)

// staleGrace is how long a lock with a dead or unreachable owner
// process is left alone before it becomes eligible to be stolen.
const staleGrace = 5 * time.Minute

// lockInfo is the JSON payload written inside the lock file,
// identifying its holder for stale-lock detection. RunID disambiguates
// a holder from a prior process that happened to reuse the same pid.
type lockInfo struct {
	PID        int       `json:"pid"`
	Host       string    `json:"host"`
	RunID      string    `json:"run_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// WorkspaceLock is a best-effort exclusive file lock over a
// workspace, extended with holder identity so a crashed holder's lock
// can be detected and, after a grace period, stolen.
type WorkspaceLock struct {
	path  string
	flock *flock.Flock
}

// NewWorkspaceLock returns the lock for w.
func NewWorkspaceLock(w *Workspace) *WorkspaceLock {
	path := w.lockPath()
	return &WorkspaceLock{path: path, flock: flock.New(path)}
}

// TryAcquire attempts to acquire the lock without blocking. If the
// lock is held by another live process it returns LockHeldError. If
// the lock is held but stale (its recorded pid is not alive on this
// host, and the grace period has elapsed) it is stolen and
// re-acquired for the caller.
func (l *WorkspaceLock) TryAcquire() error {
	acquired, err := l.flock.TryLock()
	if err != nil {
		return talariaerrors.IOTransientError("failed to attempt workspace lock", err)
	}
	if acquired {
		return l.writeInfo()
	}

	info, readErr := l.readInfo()
	// A stale lock is only stolen once the grace period has elapsed.
	if readErr != nil || !isStale(info) || time.Since(info.AcquiredAt) <= staleGrace {
		return talariaerrors.LockHeldError("workspace lock is held by another process", nil)
	}

	// The recorded holder looks dead; steal it.
	if err := l.flock.Unlock(); err != nil {
		return talariaerrors.IOTransientError("failed to release stale lock handle", err)
	}
	stolen, err := l.flock.TryLock()
	if err != nil || !stolen {
		return talariaerrors.LockHeldError("workspace lock contended while stealing stale lock", err)
	}
	return l.writeInfo()
}

// Release releases the lock. The holder info written at acquisition
// stays in the lock file until the next acquirer overwrites it.
func (l *WorkspaceLock) Release() error {
	if err := l.flock.Unlock(); err != nil {
		return talariaerrors.IOTransientError("failed to release workspace lock", err)
	}
	return nil
}

func (l *WorkspaceLock) writeInfo() error {
	info := lockInfo{PID: os.Getpid(), Host: hostname(), RunID: uuid.NewString(), AcquiredAt: time.Now()}
	data, err := json.Marshal(info)
	if err != nil {
		return talariaerrors.InternalError("failed to encode lock info", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return talariaerrors.IOTransientError("failed to write lock info", err)
	}
	return nil
}

func (l *WorkspaceLock) readInfo() (lockInfo, error) {
	var info lockInfo
	data, err := os.ReadFile(l.path)
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(data, &info); err != nil {
		return info, err
	}
	return info, nil
}

// isStale reports whether info names a process that either is not
// running on this host, or has held the lock past the grace period.
// A lock whose holder is on a different host is never considered
// stale by pid liveness alone (we cannot check a remote pid); it can
// still be stolen purely on the grace period elapsing.
func isStale(info lockInfo) bool {
	if info.Host == hostname() && !processAlive(info.PID) {
		return true
	}
	return time.Since(info.AcquiredAt) > staleGrace
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds; signal 0 probes liveness
	// without actually sending a signal.
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
