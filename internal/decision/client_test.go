package decision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Resolve_success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var wire wireRequest
		_ = json.NewDecoder(r.Body).Decode(&wire)
		if wire.ChannelID != "acme-news" {
			t.Errorf("got channel_id %q", wire.ChannelID)
		}
		_ = json.NewEncoder(w).Encode(wireResponse{
			PodID:       "pod1",
			DurationSec: 30,
			Items: []wireItem{
				{AdID: "ad1", BitrateBps: 800000, PlaylistURL: "https://ads.example/800/pod1.m3u8"},
				{AdID: "ad1", BitrateBps: 2000000, PlaylistURL: "https://ads.example/2000/pod1.m3u8"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	resp, err := c.Resolve(context.Background(), Request{ChannelID: "acme-news", DurationSec: 30}, true, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resp.PodID != "pod1" || len(resp.Items) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClient_Resolve_fallsBackToSlateOn500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	c.HTTPClient = srv.Client()

	slate := &SlateConfig{PodID: "slate1", PlaylistURL: "https://ads.example/slate.m3u8", BitratesBps: []int{800000, 2000000}}
	resp, err := c.Resolve(context.Background(), Request{ChannelID: "acme-news", DurationSec: 30}, true, slate)
	if err != nil {
		t.Fatalf("Resolve should not surface an error, got: %v", err)
	}
	if resp.PodID != "slate1" {
		t.Errorf("PodID = %q, want slate1", resp.PodID)
	}
	for _, item := range resp.Items {
		if item.PlaylistURL != slate.PlaylistURL {
			t.Errorf("item playlist URL = %q, want slate URL", item.PlaylistURL)
		}
	}
}

func TestClient_Resolve_emptyItemsWithNoSlate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0)
	c.HTTPClient = srv.Client()

	resp, err := c.Resolve(context.Background(), Request{ChannelID: "acme-news", DurationSec: 30}, false, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Errorf("expected empty items, got %+v", resp.Items)
	}
}

func TestResponse_VariantFor(t *testing.T) {
	resp := Response{Items: []Item{
		{AdID: "a", BitrateBps: 800000, PlaylistURL: "800"},
		{AdID: "a", BitrateBps: 2000000, PlaylistURL: "2000"},
		{AdID: "a", BitrateBps: 5000000, PlaylistURL: "5000"},
	}}

	got, ok := resp.VariantFor(2500000, false)
	if !ok || got.PlaylistURL != "2000" {
		t.Errorf("VariantFor(2.5M) = %+v, want 2000", got)
	}

	got, ok = resp.VariantFor(500000, false)
	if !ok || got.PlaylistURL != "800" {
		t.Errorf("VariantFor(500k) below lowest should fall back to lowest, got %+v", got)
	}

	got, ok = resp.VariantFor(10000000, false)
	if !ok || got.PlaylistURL != "5000" {
		t.Errorf("VariantFor(10M) = %+v, want 5000 (highest <= target)", got)
	}
}

func TestResponse_VariantFor_audioOnly(t *testing.T) {
	resp := Response{Items: []Item{
		{AdID: "a", BitrateBps: 2000000, PlaylistURL: "video"},
		{AdID: "a", BitrateBps: 0, PlaylistURL: "audio"},
	}}

	got, ok := resp.VariantFor(64000, true)
	if !ok || got.PlaylistURL != "audio" {
		t.Errorf("VariantFor audio-only = %+v, want audio item", got)
	}
}
