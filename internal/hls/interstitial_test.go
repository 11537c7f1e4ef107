package hls

import (
	"strings"
	"testing"
	"time"
)

func TestInjectInterstitial(t *testing.T) {
	manifest := `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:1
#EXTINF:6.000,
seg1.ts
`
	p, err := Parse(manifest)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	start := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	InjectInterstitial(p, InterstitialOpts{
		ID:        "ad_channel1_1753790400",
		StartDate: start,
		Duration:  30 * time.Second,
		AssetURI:  "https://decision.example/pod/ad_channel1_1753790400.m3u8",
	})

	if len(p.Segments[0].DateRanges) != 1 {
		t.Fatalf("expected 1 daterange, got %d", len(p.Segments[0].DateRanges))
	}
	dr := p.Segments[0].DateRanges[0]
	if dr.Get("CLASS") != "com.apple.hls.interstitial" {
		t.Errorf("CLASS = %q", dr.Get("CLASS"))
	}
	if dr.Get("DURATION") != "30.000" {
		t.Errorf("DURATION = %q", dr.Get("DURATION"))
	}

	out := Render(p)
	if !strings.Contains(out, "X-ASSET-URI=\"https://decision.example/pod/ad_channel1_1753790400.m3u8\"") {
		t.Errorf("rendered manifest missing asset uri: %s", out)
	}
}

func TestInjectInterstitial_emptyPlaylistNoop(t *testing.T) {
	p := &Playlist{}
	InjectInterstitial(p, InterstitialOpts{ID: "x"})
	if len(p.Segments) != 0 {
		t.Fatalf("expected no segments to appear")
	}
}
