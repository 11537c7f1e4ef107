package scte35

import (
	"bufio"
	"strings"
)

// ScanPlaylist extracts every decodable SCTE-35 signal from a manifest's
// EXT-X-DATERANGE tags, in document order. Lines that don't carry a
// SCTE35-OUT/-CMD/-IN attribute and aren't even a bare avail boundary
// (no ID) are skipped rather than erroring the whole scan, since Apple's
// own encoders emit plenty of DATERANGE tags (ad markers, program
// metadata) that have nothing to do with SCTE-35.
func ScanPlaylist(manifest string) []*Signal {
	var signals []*Signal
	sc := bufio.NewScanner(strings.NewReader(manifest))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		rest, ok := cutTagPrefix(line, "#EXT-X-DATERANGE:")
		if !ok {
			continue
		}
		attrs := ParseAttributeList(rest)
		if !isSCTE35DateRange(attrs) {
			continue
		}
		sig, err := DecodeAttrForm(attrs)
		if err != nil {
			continue
		}
		signals = append(signals, sig)
	}
	return signals
}

func cutTagPrefix(line, prefix string) (string, bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimPrefix(line, prefix), true
}

func isSCTE35DateRange(attrs map[string]string) bool {
	if _, ok := firstNonEmpty(attrs, "SCTE35-OUT", "SCTE35-CMD", "SCTE35-IN"); ok {
		return true
	}
	class := attrs["CLASS"]
	return strings.HasPrefix(class, "scte35")
}
