package hls

import (
	"strings"
	"testing"
	"time"
)

func TestReplaceSegmentsWithAds_cleanBreak(t *testing.T) {
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	manifest := sixSegmentManifest(base)

	ads := []AdSegment{
		{Duration: 6 * time.Second, URI: "ad1.ts"},
		{Duration: 6 * time.Second, URI: "ad2.ts"},
	}

	result, err := ReplaceSegmentsWithAds(manifest, base.Add(6*time.Second), ads, nil, 12*time.Second, nil)
	if err != nil {
		t.Fatalf("ReplaceSegmentsWithAds: %v", err)
	}
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result.BoundarySnap != SnapExact {
		t.Errorf("BoundarySnap = %v, want exact", result.BoundarySnap)
	}
	if result.SegmentsSkipped != 2 {
		t.Errorf("SegmentsSkipped = %d, want 2", result.SegmentsSkipped)
	}
	if result.ActualAdDuration != 12*time.Second {
		t.Errorf("ActualAdDuration = %v, want 12s", result.ActualAdDuration)
	}

	out := result.Manifest
	if strings.Count(out, "#EXT-X-DISCONTINUITY") != 2 {
		t.Errorf("expected exactly 2 discontinuity markers, manifest:\n%s", out)
	}
	if !strings.Contains(out, "ad1.ts") || !strings.Contains(out, "ad2.ts") {
		t.Errorf("manifest missing ad segments:\n%s", out)
	}
	if strings.Contains(out, "seg101.ts") || strings.Contains(out, "seg102.ts") {
		t.Errorf("replaced content segments still present:\n%s", out)
	}
	if !strings.Contains(out, "seg100.ts") || !strings.Contains(out, "seg105.ts") {
		t.Errorf("unrelated content segments were dropped:\n%s", out)
	}

	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse rewritten manifest: %v", err)
	}
	if len(reparsed.Segments) != 6 {
		t.Errorf("got %d segments, want 6 (4 content + 2 ad)", len(reparsed.Segments))
	}
}

func TestReplaceSegmentsWithAds_deterministicAcrossRenditions(t *testing.T) {
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	manifest := sixSegmentManifest(base)
	stable := 2

	ads := []AdSegment{
		{Duration: 6 * time.Second, URI: "ad1.ts"},
		{Duration: 6 * time.Second, URI: "ad2.ts"},
	}

	r1, err := ReplaceSegmentsWithAds(manifest, base.Add(6*time.Second), ads, nil, 12*time.Second, &stable)
	if err != nil {
		t.Fatalf("ReplaceSegmentsWithAds (rendition 1): %v", err)
	}
	r2, err := ReplaceSegmentsWithAds(manifest, base.Add(6*time.Second), ads, nil, 12*time.Second, &stable)
	if err != nil {
		t.Fatalf("ReplaceSegmentsWithAds (rendition 2): %v", err)
	}
	if r1.Manifest != r2.Manifest {
		t.Errorf("non-deterministic rewrite:\nr1: %s\nr2: %s", r1.Manifest, r2.Manifest)
	}
	if r1.SegmentsSkipped != r2.SegmentsSkipped {
		t.Errorf("SegmentsSkipped diverged: %d vs %d", r1.SegmentsSkipped, r2.SegmentsSkipped)
	}
}

func TestReplaceSegmentsWithAds_padsShortAdWithSlate(t *testing.T) {
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	manifest := sixSegmentManifest(base)

	ads := []AdSegment{
		{Duration: 12 * time.Second, URI: "ad1.ts"},
	}
	slate := []AdSegment{
		{Duration: 3 * time.Second, URI: "slate.ts"},
	}

	result, err := ReplaceSegmentsWithAds(manifest, base, ads, slate, 18*time.Second, nil)
	if err != nil {
		t.Fatalf("ReplaceSegmentsWithAds: %v", err)
	}
	if result.BoundarySnap != SnapPadded {
		t.Errorf("BoundarySnap = %v, want padded", result.BoundarySnap)
	}
	d := result.ActualAdDuration - 18*time.Second
	if d < 0 {
		d = -d
	}
	if d > 500*time.Millisecond {
		t.Errorf("ActualAdDuration = %v, want within 0.5s of 18s", result.ActualAdDuration)
	}
	if !strings.Contains(result.Manifest, "slate.ts") {
		t.Errorf("expected slate padding in manifest:\n%s", result.Manifest)
	}
}

func TestReplaceSegmentsWithAds_underrunWithNoSlate(t *testing.T) {
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	manifest := sixSegmentManifest(base)

	ads := []AdSegment{{Duration: 6 * time.Second, URI: "ad1.ts"}}

	result, err := ReplaceSegmentsWithAds(manifest, base, ads, nil, 18*time.Second, nil)
	if err != nil {
		t.Fatalf("ReplaceSegmentsWithAds: %v", err)
	}
	if result.BoundarySnap != SnapUnderrun {
		t.Errorf("BoundarySnap = %v, want underrun", result.BoundarySnap)
	}
}

func TestReplaceSegmentsWithAds_refusesWhenTooFewRemain(t *testing.T) {
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	manifest := sixSegmentManifest(base)
	stable := 5 // only 1 segment would remain

	ads := []AdSegment{{Duration: 30 * time.Second, URI: "ad1.ts"}}

	result, err := ReplaceSegmentsWithAds(manifest, base, ads, nil, 30*time.Second, &stable)
	if err != nil {
		t.Fatalf("ReplaceSegmentsWithAds: %v", err)
	}
	if result.BoundarySnap != SnapFallback {
		t.Errorf("BoundarySnap = %v, want fallback", result.BoundarySnap)
	}
	if result.Manifest != "" {
		t.Errorf("fallback result should carry no manifest, got %q", result.Manifest)
	}
}

func TestReplaceSegmentsWithAds_refusesOnShortTailEvenWithLongAdPod(t *testing.T) {
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	manifest := sixSegmentManifest(base)
	stable := 4 // skips seg100-103, leaving only seg104/seg105 (2 segments) as the resume tail

	ads := []AdSegment{
		{Duration: 8 * time.Second, URI: "ad1.ts"},
		{Duration: 8 * time.Second, URI: "ad2.ts"},
		{Duration: 8 * time.Second, URI: "ad3.ts"},
	}

	result, err := ReplaceSegmentsWithAds(manifest, base, ads, nil, 24*time.Second, &stable)
	if err != nil {
		t.Fatalf("ReplaceSegmentsWithAds: %v", err)
	}
	if result.BoundarySnap != SnapFallback {
		t.Errorf("BoundarySnap = %v, want fallback: a 2-segment resume tail must refuse the break even though the combined prefix+ad+tail count is >= 3", result.BoundarySnap)
	}
}

func TestReplaceSegmentsWithAds_missingStartPDT(t *testing.T) {
	base := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	manifest := sixSegmentManifest(base)

	ads := []AdSegment{{Duration: 6 * time.Second, URI: "ad1.ts"}}
	result, err := ReplaceSegmentsWithAds(manifest, base.Add(999*time.Second), ads, nil, 6*time.Second, nil)
	if err != nil {
		t.Fatalf("ReplaceSegmentsWithAds: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result for unmatched startPDT, got %+v", result)
	}
}
