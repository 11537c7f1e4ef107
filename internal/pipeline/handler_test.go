package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/liveadsvc/ssai-edge/internal/channelstore"
	"github.com/liveadsvc/ssai-edge/internal/kvstore"
	"github.com/liveadsvc/ssai-edge/internal/originfetch"
	"github.com/liveadsvc/ssai-edge/internal/serializer"
)

// fakeChannelStore is an in-memory channelstore.Store for handler tests.
type fakeChannelStore struct {
	byKey map[string]channelstore.Channel
}

func newFakeChannelStore(chans ...channelstore.Channel) *fakeChannelStore {
	f := &fakeChannelStore{byKey: map[string]channelstore.Channel{}}
	for _, c := range chans {
		f.byKey[c.OrgSlug+"/"+c.Slug] = c
	}
	return f
}

func (f *fakeChannelStore) ByOrgSlug(ctx context.Context, orgSlug, slug string) (channelstore.Channel, error) {
	c, ok := f.byKey[orgSlug+"/"+slug]
	if !ok {
		return channelstore.Channel{}, channelstore.ErrNotFound
	}
	return c, nil
}

func (f *fakeChannelStore) ByID(ctx context.Context, id string) (channelstore.Channel, error) {
	for _, c := range f.byKey {
		if c.ID == id {
			return c, nil
		}
	}
	return channelstore.Channel{}, channelstore.ErrNotFound
}

func (f *fakeChannelStore) ListIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.byKey))
	for _, c := range f.byKey {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func devAuthHandler(channels channelstore.Store) *Handler {
	h := New(channels, kvstore.NewMemoryStore(), nil, nil, originfetch.New(), &Authenticator{DevAllowNoAuth: true}, serializer.New())
	return h
}

func TestServeHTTP_badPathReturns404(t *testing.T) {
	h := devAuthHandler(newFakeChannelStore())
	req := httptest.NewRequest(http.MethodGet, "/onlyonesegment", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestServeHTTP_missingAuthReturns403(t *testing.T) {
	h := New(newFakeChannelStore(), kvstore.NewMemoryStore(), nil, nil, originfetch.New(), &Authenticator{}, serializer.New())
	req := httptest.NewRequest(http.MethodGet, "/org1/chan1/2000000.m3u8", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestServeHTTP_unknownChannelReturns404(t *testing.T) {
	h := devAuthHandler(newFakeChannelStore())
	req := httptest.NewRequest(http.MethodGet, "/org1/missing/2000000.m3u8", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestServeHTTP_segmentPassthrough(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/seg100.ts") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "video/mp2t")
		_, _ = w.Write([]byte("binary-segment-data"))
	}))
	defer origin.Close()

	ch := channelstore.Channel{ID: "ch1", OrgSlug: "org1", Slug: "chan1", UpstreamVariantBase: origin.URL}
	h := devAuthHandler(newFakeChannelStore(ch))

	req := httptest.NewRequest(http.MethodGet, "/org1/chan1/seg100.ts", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w.Code, w.Body.String())
	}
	if w.Body.String() != "binary-segment-data" {
		t.Errorf("body = %q", w.Body.String())
	}
	if !strings.Contains(w.Header().Get("Cache-Control"), "immutable") {
		t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
}

func TestServeHTTP_manifestHappyPathAndMicroCacheHit(t *testing.T) {
	var originHits int32
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&originHits, 1)
		_, _ = w.Write([]byte(plainManifest))
	}))
	defer origin.Close()

	ch := channelstore.Channel{ID: "ch1", OrgSlug: "org1", Slug: "chan1", UpstreamVariantBase: origin.URL}
	h := devAuthHandler(newFakeChannelStore(ch))

	req := httptest.NewRequest(http.MethodGet, "/org1/chan1/2000000.m3u8", nil)
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, req)
	if w1.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", w1.Code, w1.Body.String())
	}
	if ct := w1.Header().Get("Content-Type"); ct != "application/vnd.apple.mpegurl" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w1.Body.String(), "seg100.ts") {
		t.Errorf("body = %q", w1.Body.String())
	}

	req2 := httptest.NewRequest(http.MethodGet, "/org1/chan1/2000000.m3u8", nil)
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, req2)
	if w2.Body.String() != w1.Body.String() {
		t.Errorf("expected identical cached body on second request")
	}
	if atomic.LoadInt32(&originHits) != 1 {
		t.Errorf("origin hits = %d, want 1 (second request should be served from micro-cache)", originHits)
	}
}

func TestServeHTTP_originUnreachableFallsBackToSyntheticManifest(t *testing.T) {
	ch := channelstore.Channel{ID: "ch1", OrgSlug: "org1", Slug: "chan1", UpstreamVariantBase: "http://127.0.0.1:1"}
	h := devAuthHandler(newFakeChannelStore(ch))

	req := httptest.NewRequest(http.MethodGet, "/org1/chan1/2000000.m3u8", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (synthetic fallback)", w.Code)
	}
	if !strings.Contains(w.Body.String(), "slate_fallback.ts") {
		t.Errorf("expected synthetic fallback manifest, got %q", w.Body.String())
	}
}

func TestVariantBitrateHint(t *testing.T) {
	cases := []struct {
		variant       string
		wantBps       int
		wantAudioOnly bool
	}{
		{"2000000.m3u8", 2000000, false},
		{"800000.m3u8", 800000, false},
		{"audio_128000.m3u8", 128000, true},
		{"index.m3u8", 0, false},
	}
	for _, c := range cases {
		bps, audioOnly := variantBitrateHint(c.variant)
		if bps != c.wantBps || audioOnly != c.wantAudioOnly {
			t.Errorf("variantBitrateHint(%q) = (%d, %v), want (%d, %v)", c.variant, bps, audioOnly, c.wantBps, c.wantAudioOnly)
		}
	}
}
