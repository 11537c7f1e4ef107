package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/http2"
)

// Default returns an HTTP client with timeouts so that a dead origin or
// decision collaborator never hangs a manifest request or a per-channel
// serializer critical section forever. Used for origin variant fetches and
// decision RPCs (both of which must carry a caller-supplied deadline on top
// of this transport-level timeout; see internal/serializer).
func Default() *http.Client {
	t := &http.Transport{
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 5 * time.Second,
		IdleConnTimeout:       30 * time.Second,
	}
	// Best-effort: origin and decision collaborators that speak h2 get
	// multiplexed connections instead of one-TCP-conn-per-request.
	_ = http2.ConfigureTransport(t)
	return &http.Client{
		Timeout:   60 * time.Second,
		Transport: t,
	}
}

// ForStreaming returns a client with no overall timeout (a segment-passthrough
// response body may be read for as long as the viewer stays tuned) but keeps
// ResponseHeaderTimeout so a stalled origin still fails fast enough for the
// pipeline to fall back.
func ForStreaming() *http.Client {
	t := &http.Transport{
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 5 * time.Second,
		IdleConnTimeout:       90 * time.Second,
	}
	_ = http2.ConfigureTransport(t)
	return &http.Client{Transport: t}
}

// DecodeBody wraps resp.Body to transparently decompress Content-Encoding:
// br or gzip bodies. Many CDNs brotli-compress playlist responses even
// though the Transport only negotiates gzip via Accept-Encoding; callers
// that need the raw manifest text use this instead of reading resp.Body
// directly. The caller must still close resp.Body.
func DecodeBody(resp *http.Response) io.Reader {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		return brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return resp.Body
		}
		return gz
	default:
		return resp.Body
	}
}
