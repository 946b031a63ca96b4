package download

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talaria-db/talaria/internal/hashing"
)

func TestPipelineRunCompletesAndRemovesWorkspace(t *testing.T) {
	payload := []byte("ACGTACGTACGT")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	base := t.TempDir()
	ws, err := OpenWorkspace(base, "refseq", "viral")
	require.NoError(t, err)

	expected := hashing.Sum(payload)
	p := NewPipeline(ws, NewHTTPFetcher(srv.Client()))

	err = p.Run(t.Context(), "refseq", "viral", Options{
		URL:              srv.URL,
		ArtifactName:     "artifact.raw",
		ExpectedChecksum: &expected,
	})
	require.NoError(t, err)

	_, statErr := os.Stat(ws.Dir())
	assert.True(t, os.IsNotExist(statErr), "workspace should be removed on successful completion")
}

func TestPipelineRunFailsOnChecksumMismatch(t *testing.T) {
	payload := []byte("ACGTACGTACGT")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	base := t.TempDir()
	ws, err := OpenWorkspace(base, "refseq", "viral")
	require.NoError(t, err)

	wrong := hashing.Sum([]byte("not the payload"))
	p := NewPipeline(ws, NewHTTPFetcher(srv.Client()))

	err = p.Run(t.Context(), "refseq", "viral", Options{
		URL:              srv.URL,
		ArtifactName:     "artifact.raw",
		ExpectedChecksum: &wrong,
	})
	require.Error(t, err)

	state, loadErr := ws.LoadState()
	require.NoError(t, loadErr)
	assert.Equal(t, StageFailed, state.Stage.Type)
	assert.FileExists(t, filepath.Join(ws.Dir(), "artifact.raw"), "artifact must be preserved on failure")
}

func TestPipelineResumesPartialArtifactWithRangeRequest(t *testing.T) {
	full := []byte("0123456789ABCDEF")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			w.Write(full)
			return
		}
		start := parseRangeStart(rangeHeader)
		w.Header().Set("Content-Range", "bytes */*")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(full[start:])
	}))
	defer srv.Close()

	base := t.TempDir()
	ws, err := OpenWorkspace(base, "refseq", "viral")
	require.NoError(t, err)

	partial := full[:8]
	require.NoError(t, os.WriteFile(ws.ArtifactPath("artifact.raw"), partial, 0o644))

	s := NewState("refseq", "viral")
	require.NoError(t, s.Transition(Stage{Type: StageDownloading, Dst: ws.ArtifactPath("artifact.raw")}))
	require.NoError(t, ws.SaveState(s))

	p := NewPipeline(ws, NewHTTPFetcher(srv.Client()))
	err = p.Run(t.Context(), "refseq", "viral", Options{
		URL:          srv.URL,
		ArtifactName: "artifact.raw",
	})
	require.NoError(t, err)
}

// parseRangeStart extracts the numeric start offset from a "bytes=N-"
// Range header.
func parseRangeStart(header string) int {
	eq, dash := -1, -1
	for i, c := range header {
		if c == '=' {
			eq = i
		}
		if c == '-' {
			dash = i
		}
	}
	if eq == -1 || dash == -1 || dash <= eq {
		return 0
	}
	n := 0
	for _, c := range header[eq+1 : dash] {
		n = n*10 + int(c-'0')
	}
	return n
}
