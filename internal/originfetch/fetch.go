// Package originfetch retrieves manifests and segments from a channel's
// upstream origin, decompressing whatever the origin chose to send over
// the wire (br or gzip) into plain bytes the rest of the pipeline can
// parse or stream straight through.
package originfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/liveadsvc/ssai-edge/internal/httpclient"
)

// Manifest is a fetched, decompressed playlist body plus the response
// headers the caller may need (notably Content-Type, used to tell a
// media playlist apart from a master one isn't needed here since C1
// inspects the body, but callers may still want it for logging).
type Manifest struct {
	Body       string
	StatusCode int
}

// Fetcher retrieves origin manifests and segments over HTTP.
type Fetcher struct {
	Client *http.Client
}

// New returns a Fetcher using the shared streaming-friendly HTTP client.
func New() *Fetcher {
	return &Fetcher{Client: httpclient.ForStreaming()}
}

// FetchManifest GETs url and returns the decompressed playlist text. The
// caller's ctx should already carry the origin deadline; FetchManifest
// does not impose one of its own beyond what ctx provides.
func (f *Fetcher) FetchManifest(ctx context.Context, url string) (*Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("originfetch: build request: %w", err)
	}
	req.Header.Set("Accept-Encoding", "br, gzip")

	client := f.Client
	if client == nil {
		client = httpclient.ForStreaming()
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("originfetch: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(httpclient.DecodeBody(resp))
	if err != nil {
		return nil, fmt.Errorf("originfetch: read body from %s: %w", url, err)
	}
	return &Manifest{Body: string(body), StatusCode: resp.StatusCode}, nil
}

// StreamSegment GETs url and returns the response for the caller to copy
// straight through to the viewer; the caller owns closing resp.Body.
// Segment bodies are opaque media and are never decompressed here — the
// Content-Encoding header, if any, is passed through unchanged.
func (f *Fetcher) StreamSegment(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("originfetch: build request: %w", err)
	}
	client := f.Client
	if client == nil {
		client = httpclient.ForStreaming()
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("originfetch: fetch %s: %w", url, err)
	}
	return resp, nil
}
