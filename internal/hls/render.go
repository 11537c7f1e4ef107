package hls

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Render serializes a Playlist back to HLS text: UTF-8, \n-terminated
// lines, trailing newline present (spec §6).
func Render(p *Playlist) string {
	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	if p.Version > 0 {
		fmt.Fprintf(&sb, "#EXT-X-VERSION:%d\n", p.Version)
	}
	if p.IndependentSegments {
		sb.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")
	}
	fmt.Fprintf(&sb, "#EXT-X-TARGETDURATION:%d\n", p.TargetDuration)
	fmt.Fprintf(&sb, "#EXT-X-MEDIA-SEQUENCE:%d\n", p.MediaSequence)

	for _, seg := range p.Segments {
		renderSegment(&sb, seg)
	}
	if p.EndList {
		sb.WriteString("#EXT-X-ENDLIST\n")
	}
	return sb.String()
}

func renderSegment(sb *strings.Builder, seg Segment) {
	if seg.Discontinuity {
		sb.WriteString("#EXT-X-DISCONTINUITY\n")
	}
	if seg.HasPDT {
		fmt.Fprintf(sb, "#EXT-X-PROGRAM-DATE-TIME:%s\n", seg.PDT.Format(pdtLayout))
	}
	for _, dr := range seg.DateRanges {
		fmt.Fprintf(sb, "#EXT-X-DATERANGE:%s\n", dr.render())
	}
	if seg.CueOut {
		if seg.CueOutValue != "" {
			fmt.Fprintf(sb, "#EXT-X-CUE-OUT:%s\n", seg.CueOutValue)
		} else {
			sb.WriteString("#EXT-X-CUE-OUT\n")
		}
	}
	if seg.CueIn {
		sb.WriteString("#EXT-X-CUE-IN\n")
	}
	fmt.Fprintf(sb, "#EXTINF:%s,%s\n", formatDuration(seg.Duration), seg.Title)
	sb.WriteString(seg.URI)
	sb.WriteByte('\n')
}

// pdtLayout matches RFC 8216's required ISO-8601 PROGRAM-DATE-TIME format
// with millisecond precision and an explicit UTC offset.
const pdtLayout = "2006-01-02T15:04:05.000Z07:00"

// formatDuration renders a segment duration as EXTINF expects: seconds with
// millisecond precision, trailing zeros kept (e.g. "6.000").
func formatDuration(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
