package hls

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ExtractBitrates reads BANDWIDTH= attributes from every #EXT-X-STREAM-INF
// tag in a master playlist, returning sorted-ascending, deduplicated kbps
// values. Master playlists are scanned as plain text rather than through
// Parse, since their EXT-X-STREAM-INF/URI pairs are a different grammar
// from a media playlist's EXTINF/URI segments.
func ExtractBitrates(masterManifest string) ([]int, error) {
	seen := map[int]bool{}
	sc := bufio.NewScanner(strings.NewReader(masterManifest))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "#EXT-X-STREAM-INF:") {
			continue
		}
		_, value, _ := strings.Cut(line, ":")
		_, vals, _ := parseAttributeList(value)
		raw, ok := vals["BANDWIDTH"]
		if !ok {
			continue
		}
		bps, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		seen[bps/1000] = true
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("hls: scan master manifest: %w", err)
	}
	out := make([]int, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Ints(out)
	return out, nil
}
