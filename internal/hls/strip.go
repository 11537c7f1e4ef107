package hls

import "strings"

// StripOriginSCTE35 removes any origin-inserted SCTE-35 signaling from a
// parsed playlist in place: DATERANGE tags carrying SCTE35-OUT/IN/CMD
// attributes or a CLASS beginning "scte35", plus CUE-OUT/CUE-IN markers.
// DATERANGE tags this codec itself injects (CLASS
// "com.apple.hls.interstitial") are left untouched. Idempotent: running it
// twice on the same playlist yields the same result as running it once.
func StripOriginSCTE35(p *Playlist) {
	for i := range p.Segments {
		seg := &p.Segments[i]
		seg.CueOut = false
		seg.CueOutValue = ""
		seg.CueIn = false

		kept := seg.DateRanges[:0]
		for _, dr := range seg.DateRanges {
			if dr.classStartsWith("com.apple.hls.interstitial") {
				kept = append(kept, dr)
				continue
			}
			if dr.hasSCTE35Attrs() || dr.classStartsWith("scte35") {
				continue
			}
			kept = append(kept, dr)
		}
		seg.DateRanges = kept
	}
}

// stripCommentMarkers removes legacy `##`-prefixed SCTE comment lines (e.g.
// `##SCTE35 ...`) some origins emit outside the standard tag grammar.
// Parse never preserves unknown lines, so this only matters for manifests
// handled as raw text before Parse runs.
func stripCommentMarkers(manifest string) string {
	lines := strings.Split(manifest, "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "##") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
