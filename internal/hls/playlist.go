// Package hls parses and rewrites HLS media playlists for ad insertion:
// extracting PDTs and bitrates, stripping origin SCTE-35 markers, injecting
// interstitial DATERANGE tags, and replacing content segments with ad
// segments across a break.
package hls

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const maxLineSize = 1 << 20 // 1 MiB per line, matching the teacher's M3U scanner bound

// Playlist is a parsed HLS media playlist (RFC 8216 §4.3.3): a handful of
// playlist-wide tags followed by an ordered sequence of segments, each
// carrying whatever tags preceded it in source order.
type Playlist struct {
	Version             int
	TargetDuration      int
	MediaSequence       int
	IndependentSegments bool
	Segments            []Segment
	EndList             bool
}

// DateRange is a single #EXT-X-DATERANGE tag's attribute list, preserving
// source attribute order and per-attribute quoting for faithful re-render.
type DateRange struct {
	Keys   []string
	Vals   map[string]string
	Quoted map[string]bool
}

// Get returns the attribute's value, or "" if absent.
func (d DateRange) Get(key string) string { return d.Vals[key] }

// NewDateRange builds a DateRange from an ordered list of key/value/quoted
// triples, for constructing tags this codec emits itself.
func NewDateRange(entries ...DateRangeAttr) DateRange {
	d := DateRange{Vals: map[string]string{}, Quoted: map[string]bool{}}
	for _, e := range entries {
		d.Keys = append(d.Keys, e.Key)
		d.Vals[e.Key] = e.Value
		d.Quoted[e.Key] = e.Quote
	}
	return d
}

// DateRangeAttr is one attribute of a constructed DateRange.
type DateRangeAttr struct {
	Key   string
	Value string
	Quote bool
}

// Str builds a quoted string DateRangeAttr.
func Str(key, value string) DateRangeAttr { return DateRangeAttr{key, value, true} }

// Raw builds an unquoted DateRangeAttr (numbers, hex payloads).
func Raw(key, value string) DateRangeAttr { return DateRangeAttr{key, value, false} }

// Segment is one media segment and the tags that preceded it in the
// source manifest.
type Segment struct {
	Duration      time.Duration
	Title         string
	URI           string
	PDT           time.Time
	HasPDT        bool
	Discontinuity bool
	DateRanges    []DateRange
	CueOut        bool
	CueOutValue   string
	CueIn         bool

	// IsAd and IsSlate mark segments this codec inserted during a break;
	// never set by Parse. Used by the boundary-snap policy to distinguish
	// trimmable slate padding from ad content.
	IsAd    bool
	IsSlate bool
}

// Parse parses a media playlist from its text form.
func Parse(manifest string) (*Playlist, error) {
	p := &Playlist{}
	sc := bufio.NewScanner(strings.NewReader(manifest))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var cur Segment
	var pendingDuration time.Duration
	var haveDuration bool

	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "#") {
			if !haveDuration {
				return nil, fmt.Errorf("hls: segment URI %q with no preceding EXTINF", trimmed)
			}
			cur.Duration = pendingDuration
			cur.URI = trimmed
			p.Segments = append(p.Segments, cur)
			cur = Segment{}
			haveDuration = false
			continue
		}

		name, value, _ := strings.Cut(trimmed, ":")
		switch name {
		case "#EXTM3U":
			// marker only
		case "#EXT-X-VERSION":
			p.Version, _ = strconv.Atoi(value)
		case "#EXT-X-TARGETDURATION":
			p.TargetDuration, _ = strconv.Atoi(value)
		case "#EXT-X-MEDIA-SEQUENCE":
			p.MediaSequence, _ = strconv.Atoi(value)
		case "#EXT-X-INDEPENDENT-SEGMENTS":
			p.IndependentSegments = true
		case "#EXTINF":
			d, title, err := parseExtinf(value)
			if err != nil {
				return nil, err
			}
			pendingDuration = d
			cur.Title = title
			haveDuration = true
		case "#EXT-X-PROGRAM-DATE-TIME":
			t, err := time.Parse(time.RFC3339Nano, value)
			if err != nil {
				return nil, fmt.Errorf("hls: bad PROGRAM-DATE-TIME %q: %w", value, err)
			}
			cur.PDT = t
			cur.HasPDT = true
		case "#EXT-X-DISCONTINUITY":
			cur.Discontinuity = true
		case "#EXT-X-DATERANGE":
			cur.DateRanges = append(cur.DateRanges, parseDateRangeAttrs(value))
		case "#EXT-X-CUE-OUT":
			cur.CueOut = true
			cur.CueOutValue = value
		case "#EXT-X-CUE-IN":
			cur.CueIn = true
		case "#EXT-X-ENDLIST":
			p.EndList = true
		default:
			// Tags outside the strict set this codec rewrites around
			// (spec §6) are dropped rather than preserved verbatim; none
			// of C1's callers depend on round-tripping unknown tags.
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("hls: scan manifest: %w", err)
	}
	return p, nil
}

func parseExtinf(value string) (time.Duration, string, error) {
	durStr, title, _ := strings.Cut(value, ",")
	seconds, err := strconv.ParseFloat(strings.TrimSpace(durStr), 64)
	if err != nil {
		return 0, "", fmt.Errorf("hls: bad EXTINF duration %q: %w", durStr, err)
	}
	return time.Duration(seconds * float64(time.Second)), title, nil
}
