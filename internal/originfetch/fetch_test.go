package originfetch

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetcher_fetchManifestPlain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n#EXT-X-VERSION:6\n"))
	}))
	defer srv.Close()

	f := New()
	m, err := f.FetchManifest(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	if m.Body != "#EXTM3U\n#EXT-X-VERSION:6\n" {
		t.Errorf("body = %q", m.Body)
	}
	if m.StatusCode != 200 {
		t.Errorf("status = %d", m.StatusCode)
	}
}

func TestFetcher_fetchManifestGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte("#EXTM3U\n#EXT-X-VERSION:6\n"))
		gz.Close()
	}))
	defer srv.Close()

	f := New()
	m, err := f.FetchManifest(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchManifest: %v", err)
	}
	if m.Body != "#EXTM3U\n#EXT-X-VERSION:6\n" {
		t.Errorf("body = %q", m.Body)
	}
}

func TestFetcher_streamSegmentPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp2t")
		w.Write([]byte("binary-segment-data"))
	}))
	defer srv.Close()

	f := New()
	resp, err := f.StreamSegment(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("StreamSegment: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("Content-Type") != "video/mp2t" {
		t.Errorf("content-type = %q", resp.Header.Get("Content-Type"))
	}
}
