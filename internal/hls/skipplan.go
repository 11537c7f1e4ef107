package hls

import "time"

// SkipPlan is the outcome of matching a break's start PDT against a
// manifest: how many content segments it covers and where playback resumes.
type SkipPlan struct {
	SegmentsSkipped   int
	DurationSkipped   time.Duration
	StableSkipCount   int
	ResumePDT         time.Time
	HasResumePDT      bool
	RemainingSegments int
}

// CalculateSkipPlan finds the segment whose PDT equals startPDT and counts
// forward from there: while stableSkipCount is nil, it accumulates EXTINF
// durations until their sum is at least scte35Duration; once a break's skip
// count has been bound, stableSkipCount pins the exact count instead,
// ignoring duration entirely so every rendition agrees. Returns nil if
// startPDT isn't present in the manifest (spec's S6 late-joiner case).
func CalculateSkipPlan(manifest string, startPDT time.Time, scte35Duration time.Duration, stableSkipCount *int) (*SkipPlan, error) {
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

	var skipped int
	var duration time.Duration
	if stableSkipCount != nil {
		skipped = *stableSkipCount
		if skipped > len(p.Segments)-matchIdx {
			skipped = len(p.Segments) - matchIdx
		}
		for i := matchIdx; i < matchIdx+skipped; i++ {
			duration += p.Segments[i].Duration
		}
	} else {
		for i := matchIdx; i < len(p.Segments) && duration < scte35Duration; i++ {
			duration += p.Segments[i].Duration
			skipped++
		}
	}

	plan := &SkipPlan{
		SegmentsSkipped:   skipped,
		DurationSkipped:   duration,
		StableSkipCount:   skipped,
		RemainingSegments: len(p.Segments) - (matchIdx + skipped),
	}
	if resumeIdx := matchIdx + skipped; resumeIdx < len(p.Segments) {
		if seg := p.Segments[resumeIdx]; seg.HasPDT {
			plan.ResumePDT = seg.PDT
			plan.HasResumePDT = true
		}
	}
	return plan, nil
}
