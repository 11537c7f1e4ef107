package hls

import "testing"

func TestStripOriginSCTE35(t *testing.T) {
	manifest := `#EXTM3U
#EXT-X-VERSION:4
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:100
#EXT-X-DATERANGE:ID="break1",CLASS="com.example.scte35",START-DATE="2026-07-29T00:00:00.000Z",DURATION=30.0,SCTE35-OUT=0xFC302500000000000000FFF01405000000017FEFFE00526C6A000001
#EXT-X-CUE-OUT:30
#EXTINF:6.000,
seg100.ts
#EXT-X-CUE-IN
#EXTINF:6.000,
seg101.ts
`
	p, err := Parse(manifest)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	StripOriginSCTE35(p)

	for i, seg := range p.Segments {
		if seg.CueOut || seg.CueIn {
			t.Errorf("segment %d: cue markers not stripped", i)
		}
		for _, dr := range seg.DateRanges {
			if dr.hasSCTE35Attrs() || dr.classStartsWith("scte35") || dr.classStartsWith("com.example.scte35") {
				t.Errorf("segment %d: scte35 daterange not stripped: %+v", i, dr)
			}
		}
	}
}

func TestStripOriginSCTE35_preservesInterstitial(t *testing.T) {
	manifest := `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:1
#EXT-X-DATERANGE:ID="ad1",CLASS="com.apple.hls.interstitial",START-DATE="2026-07-29T00:00:00.000Z",DURATION=30.0,X-ASSET-URI="https://ads.example/pod.m3u8"
#EXTINF:6.000,
seg1.ts
`
	p, err := Parse(manifest)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	StripOriginSCTE35(p)

	if len(p.Segments[0].DateRanges) != 1 {
		t.Fatalf("interstitial daterange was stripped: %+v", p.Segments[0].DateRanges)
	}
}

func TestStripOriginSCTE35_idempotent(t *testing.T) {
	manifest := `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:1
#EXT-X-DATERANGE:ID="break1",CLASS="scte35-break",START-DATE="2026-07-29T00:00:00.000Z",DURATION=30.0
#EXT-X-CUE-OUT:30
#EXTINF:6.000,
seg1.ts
`
	p, err := Parse(manifest)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	StripOriginSCTE35(p)
	first := Render(p)

	StripOriginSCTE35(p)
	second := Render(p)

	if first != second {
		t.Fatalf("not idempotent:\nfirst:  %q\nsecond: %q", first, second)
	}
}
