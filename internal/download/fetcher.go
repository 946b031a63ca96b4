package download

import (
	"context"
	"fmt"
	"net/http"

	talariaerrors "github.com/talaria-db/talaria/internal/errors"
)

// FetchResult describes one HTTP GET's outcome: whether the server
// honored a byte-range request (206 Partial Content), the body to
// stream, and its content length if known.
type FetchResult struct {
	Body           fetchBody
	PartialContent bool
	ContentLength  int64
}

// fetchBody is the subset of io.ReadCloser the pipeline needs; kept
// as its own name so callers don't need to import io just to wire a
// fetcher.
type fetchBody interface {
	Read(p []byte) (int, error)
	Close() error
}

// HTTPFetcher fetches an artifact over HTTP(S), issuing a Range header
// when resuming from a nonzero offset.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher using client, or http.DefaultClient
// if nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{Client: client}
}

// Fetch performs a GET against url, requesting bytes from resumeFrom
// onward when resumeFrom > 0. The server's response code determines
// PartialContent: a 206 confirms range support, a 200 to a ranged
// request means the server ignored the Range header and the caller
// must restart the artifact from zero.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, resumeFrom int64) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, talariaerrors.IOPermanentError("failed to build download request", err)
	}
	req.Header.Set("User-Agent", "talaria/1.0")
	if resumeFrom > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, talariaerrors.IOTransientError("download request failed", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return &FetchResult{Body: resp.Body, PartialContent: false, ContentLength: resp.ContentLength}, nil
	case http.StatusPartialContent:
		return &FetchResult{Body: resp.Body, PartialContent: true, ContentLength: resp.ContentLength}, nil
	case http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, talariaerrors.RateLimitedError("download rate limited", nil)
	default:
		resp.Body.Close()
		return nil, talariaerrors.IOTransientError(fmt.Sprintf("download failed with status %s", resp.Status), nil)
	}
}
