package hls

import (
	"sort"
	"time"
)

// AdSegment is one segment of an ad pod or slate filler to splice into a
// content playlist. IsSlate marks slate filler; the boundary-snap padding
// step sets it on every slate segment it appends.
type AdSegment struct {
	Duration time.Duration
	URI      string
	IsSlate  bool
}

// BoundarySnap records how ReplaceSegmentsWithAds reconciled a mismatch
// between the planned break duration and the ad pod's actual duration.
type BoundarySnap string

const (
	SnapExact    BoundarySnap = "exact"
	SnapPadded   BoundarySnap = "padded"
	SnapTrimmed  BoundarySnap = "trimmed"
	SnapUnderrun BoundarySnap = "underrun"
	SnapOverrun  BoundarySnap = "overrun"
	SnapFallback BoundarySnap = "fallback"
)

// boundaryTolerance is the maximum allowed drift between planned and actual
// break duration before padding or trimming kicks in.
const boundaryTolerance = 500 * time.Millisecond

// minRemainingSegments is the floor below which a break is refused outright
// rather than emitted as a truncated tail.
const minRemainingSegments = 3

// ReplaceResult is the outcome of splicing ad segments into a content
// playlist in place of a run of skipped content segments.
type ReplaceResult struct {
	Manifest         string
	SegmentsSkipped  int
	DurationSkipped  time.Duration
	ActualAdDuration time.Duration
	BoundarySnap     BoundarySnap
}

// decorationPriority orders leading/trailing tag kinds so that repeated
// calls with the same inputs always render decorations in the same order,
// per C1's determinism invariant: PDT, then DATERANGE, then CUE-OUT/CUE-IN,
// then anything else.
func decorationPriority(kind string) int {
	switch kind {
	case "pdt":
		return 0
	case "daterange":
		return 1
	case "cue":
		return 2
	default:
		return 3
	}
}

type decoration struct {
	kind string
	line string
}

func sortDecorations(d []decoration) {
	sort.SliceStable(d, func(i, j int) bool {
		return decorationPriority(d[i].kind) < decorationPriority(d[j].kind)
	})
}

// ReplaceSegmentsWithAds implements the spec's seven-step splice: locate
// the segment at startPDT, skip stableSkipCount segments (or enough to
// cover plannedDuration when no count is bound yet), emit the ad pod in
// their place with a single leading and trailing DISCONTINUITY, and
// refuse outright if the break would leave fewer than three segments in
// the playlist tail. slateSegments is an optional, repeatable filler pod
// used only to pad an ad pod that falls short of plannedDuration. When the
// pod runs long, only trailing adSegments entries marked IsSlate are
// trimmed; padding and trimming never both happen in one call.
func ReplaceSegmentsWithAds(manifest string, startPDT time.Time, adSegments []AdSegment, slateSegments []AdSegment, plannedDuration time.Duration, stableSkipCount *int) (*ReplaceResult, error) {
	p, err := Parse(manifest)
	if err != nil {
		return nil, err
	}

	matchIdx := -1
	for i, seg := range p.Segments {
		if seg.HasPDT && seg.PDT.Equal(startPDT) {
			matchIdx = i
			break
		}
	}
	if matchIdx == -1 {
		return nil, nil
	}

	skipCount := resolveSkipCount(p, matchIdx, plannedDuration, stableSkipCount)
	if matchIdx+skipCount > len(p.Segments) {
		skipCount = len(p.Segments) - matchIdx
	}

	var leading, trailing []decoration
	var durationSkipped time.Duration
	for i := matchIdx; i < matchIdx+skipCount; i++ {
		seg := p.Segments[i]
		durationSkipped += seg.Duration
		if seg.HasPDT {
			leading = append(leading, decoration{"pdt", "#EXT-X-PROGRAM-DATE-TIME:" + seg.PDT.Format(pdtLayout)})
		}
		for _, dr := range seg.DateRanges {
			leading = append(leading, decoration{"daterange", "#EXT-X-DATERANGE:" + dr.render()})
		}
		if seg.CueOut {
			if seg.CueOutValue != "" {
				leading = append(leading, decoration{"cue", "#EXT-X-CUE-OUT:" + seg.CueOutValue})
			} else {
				leading = append(leading, decoration{"cue", "#EXT-X-CUE-OUT"})
			}
		}
		if seg.CueIn {
			trailing = append(trailing, decoration{"cue", "#EXT-X-CUE-IN"})
		}
	}
	sortDecorations(leading)
	sortDecorations(trailing)

	adSegments, snap := snapToBoundary(adSegments, slateSegments, plannedDuration)

	var actual time.Duration
	for _, ad := range adSegments {
		actual += ad.Duration
	}

	remaining := make([]Segment, len(p.Segments)-(matchIdx+skipCount))
	copy(remaining, p.Segments[matchIdx+skipCount:])
	if len(remaining) > 0 {
		remaining[0].Discontinuity = true
	}

	newSegments := make([]Segment, 0, matchIdx+len(adSegments)+len(remaining))
	newSegments = append(newSegments, p.Segments[:matchIdx]...)
	for i, ad := range adSegments {
		seg := Segment{Duration: ad.Duration, URI: ad.URI, IsAd: !ad.IsSlate, IsSlate: ad.IsSlate}
		if i == 0 {
			seg.Discontinuity = true
			applyDecorations(&seg, leading)
		}
		newSegments = append(newSegments, seg)
	}
	if len(remaining) > 0 {
		applyDecorations(&remaining[0], trailing)
	}
	newSegments = append(newSegments, remaining...)

	// Never emit a break that leaves too short a resume-content tail, even
	// if the splice itself was otherwise well-formed.
	if len(remaining) < minRemainingSegments {
		return &ReplaceResult{BoundarySnap: SnapFallback}, nil
	}

	p.Segments = newSegments

	return &ReplaceResult{
		Manifest:         Render(p),
		SegmentsSkipped:  skipCount,
		DurationSkipped:  durationSkipped,
		ActualAdDuration: actual,
		BoundarySnap:     snap,
	}, nil
}

func resolveSkipCount(p *Playlist, matchIdx int, plannedDuration time.Duration, stableSkipCount *int) int {
	if stableSkipCount != nil {
		return *stableSkipCount
	}
	var sum time.Duration
	count := 0
	for i := matchIdx; i < len(p.Segments) && sum < plannedDuration; i++ {
		sum += p.Segments[i].Duration
		count++
	}
	return count
}

// applyDecorations attaches pre-rendered decoration lines to a segment.
// Only PDT and DATERANGE decorations carry structured fields the Segment
// type understands; CUE-OUT/CUE-IN are recognized by their raw text.
func applyDecorations(seg *Segment, decs []decoration) {
	for _, d := range decs {
		switch d.kind {
		case "pdt":
			value := d.line[len("#EXT-X-PROGRAM-DATE-TIME:"):]
			if t, err := time.Parse(pdtLayout, value); err == nil {
				seg.PDT = t
				seg.HasPDT = true
			}
		case "daterange":
			value := d.line[len("#EXT-X-DATERANGE:"):]
			seg.DateRanges = append(seg.DateRanges, parseDateRangeAttrs(value))
		case "cue":
			switch {
			case d.line == "#EXT-X-CUE-IN":
				seg.CueIn = true
			case d.line == "#EXT-X-CUE-OUT":
				seg.CueOut = true
			default:
				seg.CueOut = true
				seg.CueOutValue = d.line[len("#EXT-X-CUE-OUT:"):]
			}
		}
	}
}

// snapToBoundary reconciles the ad pod's total duration against the break's
// planned duration: pads with repeated slate segments if short, trims
// slate-only trailing segments if long, and otherwise leaves the pod as-is.
func snapToBoundary(adSegments, slateSegments []AdSegment, plannedDuration time.Duration) ([]AdSegment, BoundarySnap) {
	var total time.Duration
	for _, ad := range adSegments {
		total += ad.Duration
	}
	diff := plannedDuration - total

	if diff > boundaryTolerance {
		if len(slateSegments) == 0 {
			return adSegments, SnapUnderrun
		}
		out := append([]AdSegment(nil), adSegments...)
		remaining := diff
		i := 0
		for remaining > 0 {
			s := slateSegments[i%len(slateSegments)]
			s.IsSlate = true
			out = append(out, s)
			remaining -= s.Duration
			i++
			if i > 10000 {
				break // pathological slate-duration-zero guard
			}
		}
		return out, SnapPadded
	}

	if -diff > boundaryTolerance {
		out := append([]AdSegment(nil), adSegments...)
		overage := -diff
		trimmed := false
		for overage > boundaryTolerance && len(out) > 0 && out[len(out)-1].IsSlate {
			overage -= out[len(out)-1].Duration
			out = out[:len(out)-1]
			trimmed = true
		}
		if overage > boundaryTolerance {
			return out, SnapOverrun
		}
		if trimmed {
			return out, SnapTrimmed
		}
		return out, SnapOverrun
	}

	return adSegments, SnapExact
}
