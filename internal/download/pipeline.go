package download

import (
	"context"
	"io"
	"os"

	talariaerrors "github.com/talaria-db/talaria/internal/errors"
	"github.com/talaria-db/talaria/internal/hashing"
	"github.com/talaria-db/talaria/internal/progress"
)

// ProgressKind groups the download pipeline's progress events.
const ProgressKind progress.Kind = "download"

// Options configures one pipeline run.
type Options struct {
	URL                string
	ArtifactName       string // compressed-artifact file name, per the workspace layout
	ExpectedChecksum   *hashing.Hash
	PreserveOnComplete bool // mirrors TALARIA_PRESERVE_ON_FAILURE when set by the caller
	Sink               progress.Sink
}

// Pipeline drives one (source, dataset) download end to end through
// the persisted state machine, retrying network calls per
// RetryPolicyForNetwork and reporting progress to Options.Sink.
type Pipeline struct {
	ws      *Workspace
	lock    *WorkspaceLock
	fetcher *HTTPFetcher
	retry   talariaerrors.RetryPolicy
}

// NewPipeline returns a pipeline operating over ws.
func NewPipeline(ws *Workspace, fetcher *HTTPFetcher) *Pipeline {
	if fetcher == nil {
		fetcher = NewHTTPFetcher(nil)
	}
	return &Pipeline{
		ws:      ws,
		lock:    NewWorkspaceLock(ws),
		fetcher: fetcher,
		retry:   talariaerrors.RetryPolicyForNetwork(),
	}
}

// Run executes the full pipeline: acquire the workspace lock, load or
// create state, download (resuming if a partial artifact exists),
// verify, and finalize. On success the workspace is removed unless
// opts.PreserveOnComplete is set; on failure the workspace (and its
// preserve_on_failure files) are left intact for a later resume.
func (p *Pipeline) Run(ctx context.Context, source, dataset string, opts Options) error {
	if err := p.lock.TryAcquire(); err != nil {
		return err
	}
	defer p.lock.Release()

	state, err := p.ws.LoadState()
	if err != nil {
		state = NewState(source, dataset)
	}
	if opts.Sink == nil {
		opts.Sink = progress.NoopSink{}
	}

	artifactPath := p.ws.ArtifactPath(opts.ArtifactName)
	state.Files.PreserveOnFailure = []string{artifactPath}
	if err := p.ws.SaveState(state); err != nil {
		return err
	}

	if err := p.runStage(ctx, state, artifactPath, opts); err != nil {
		_ = state.Fail(true, talariaerrors.GetCode(err), err.Error())
		_ = p.ws.SaveState(state)
		opts.Sink.Finish(ProgressKind, "failed: "+err.Error())
		return err
	}

	opts.Sink.Finish(ProgressKind, "complete")
	if !opts.PreserveOnComplete {
		return p.ws.Remove()
	}
	return p.ws.SaveState(state)
}

// runStage advances state through every stage from its current point
// to Complete.
func (p *Pipeline) runStage(ctx context.Context, state *State, artifactPath string, opts Options) error {
	switch state.Stage.Type {
	case StageInitializing:
		if err := state.Transition(Stage{Type: StageDownloading, Dst: artifactPath}); err != nil {
			return err
		}
		if err := p.ws.SaveState(state); err != nil {
			return err
		}
		fallthrough

	case StageDownloading:
		if err := p.download(ctx, artifactPath, opts); err != nil {
			return err
		}
		if err := state.Transition(Stage{Type: StageVerifying}); err != nil {
			return err
		}
		if err := p.ws.SaveState(state); err != nil {
			return err
		}
		fallthrough

	case StageVerifying:
		if err := p.verify(artifactPath, opts); err != nil {
			return err
		}
		if err := state.Transition(Stage{Type: StageProcessing}); err != nil {
			return err
		}
		if err := p.ws.SaveState(state); err != nil {
			return err
		}
		fallthrough

	case StageDecompressing:
		// Decompression is handled by the caller-supplied chunker
		// pipeline once StageProcessing begins; the state machine
		// only tracks that the stage was entered and completed.
		if state.Stage.Type == StageDecompressing {
			if err := state.Transition(Stage{Type: StageProcessing}); err != nil {
				return err
			}
			if err := p.ws.SaveState(state); err != nil {
				return err
			}
		}
		fallthrough

	case StageProcessing:
		if err := state.Transition(Stage{Type: StageFinalizing}); err != nil {
			return err
		}
		if err := p.ws.SaveState(state); err != nil {
			return err
		}
		fallthrough

	case StageFinalizing:
		if err := state.Transition(Stage{Type: StageComplete}); err != nil {
			return err
		}
		return p.ws.SaveState(state)

	case StageComplete:
		return nil

	case StageFailed:
		if state.Stage.Recoverable {
			if err := state.RestoreLastCheckpoint(); err != nil {
				return err
			}
			return p.runStage(ctx, state, artifactPath, opts)
		}
		return talariaerrors.InvalidStateError("workspace is in a non-recoverable failed state", nil)
	}
	return talariaerrors.InvalidStateError("unknown stage", nil)
}

// download fetches the artifact, resuming from its current on-disk
// size when the remote honors byte ranges, under the network retry
// policy.
func (p *Pipeline) download(ctx context.Context, artifactPath string, opts Options) error {
	opts.Sink.StartOperation(ProgressKind, 0, "downloading "+opts.URL)

	return p.retry.Run(ctx, "download", func() error {
		offset, err := ResumeOffset(artifactPath)
		if err != nil {
			return talariaerrors.IOTransientError("failed to stat partial artifact", err)
		}

		result, err := p.fetcher.Fetch(ctx, opts.URL, offset)
		if err != nil {
			return err
		}
		defer result.Body.Close()

		flags := os.O_CREATE | os.O_WRONLY
		if offset > 0 && result.PartialContent {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
			offset = 0
		}

		f, err := os.OpenFile(artifactPath, flags, 0o644)
		if err != nil {
			return talariaerrors.IOTransientError("failed to open artifact for writing", err)
		}
		defer f.Close()

		written, err := io.Copy(&progressWriter{w: f, sink: opts.Sink, base: offset}, result.Body)
		if err != nil {
			return talariaerrors.IOTransientError("failed to write downloaded bytes", err)
		}
		opts.Sink.Update(ProgressKind, int(offset+written))
		return nil
	})
}

// verify recomputes the artifact's hash and compares it against
// opts.ExpectedChecksum, when one was supplied.
func (p *Pipeline) verify(artifactPath string, opts Options) error {
	if opts.ExpectedChecksum == nil {
		return nil
	}
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return talariaerrors.IOTransientError("failed to read artifact for verification", err)
	}
	got := hashing.Sum(data)
	if got != *opts.ExpectedChecksum {
		return talariaerrors.ChecksumMismatchError("downloaded artifact checksum does not match expected", nil)
	}
	return nil
}

// progressWriter wraps an io.Writer, reporting cumulative bytes
// written (base + bytes written so far) to a progress sink.
type progressWriter struct {
	w     io.Writer
	sink  progress.Sink
	base  int64
	total int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.total += int64(n)
	p.sink.Update(ProgressKind, int(p.base+p.total))
	return n, err
}
