// Package adbreak implements the per-channel ad-break state machine: the
// authoritative record of whether a break is active, where it started,
// how many content segments it replaces, and the cached ad decision
// backing it. The package is pure state-transition logic; the single-
// writer guarantee per channel is the caller's responsibility (see
// internal/serializer).
package adbreak

import (
	"strconv"
	"time"

	"github.com/liveadsvc/ssai-edge/internal/decision"
)

// Source identifies what triggered a break.
type Source string

const (
	SourceSCTE35 Source = "scte35"
	SourceManual Source = "manual"
	SourceTime   Source = "time"
)

// manifestWindow bounds how long a SCTE-35-sourced break is trusted to
// still be present in the live manifest window before it's considered
// rolled out from under us.
const manifestWindow = 90 * time.Second

// decisionTTL is how long a cached decision is reused before a refresh is
// attempted.
const decisionTTL = 30 * time.Second

// dedupWindow bounds how close two OUT signals' start times must be to be
// folded into the same break rather than spawning a second one.
const dedupWindow = 60 * time.Second

// SharedManifestPlan binds the same decorations and skip count across
// every rendition of a break, computed once by C1 on the first successful
// rewrite and reused verbatim afterward.
type SharedManifestPlan struct {
	StartPDT            time.Time
	LeadingDecorations  []string
	TrailingDecorations []string
	StableSkipCount     int
	UpdatedAt           time.Time
}

// State is the authoritative per-channel ad-break record. At most one is
// active per channel at a time.
type State struct {
	ChannelID string

	Active bool
	Source Source

	PodID  string
	PodURL string

	StartedAt time.Time
	EndsAt    time.Time

	DurationSec float64

	SCTE35StartPDT time.Time
	HasSCTE35PDT   bool

	ContentSegmentsToSkip int
	SkippedDuration       float64

	ProcessedEventIDs map[string]struct{}

	Decision             *decision.Response
	DecisionCalculatedAt time.Time

	Plan *SharedManifestPlan

	Version int
}

// NoBreak returns the zero (inactive) state for a channel.
func NoBreak(channelID string) *State {
	return &State{
		ChannelID:         channelID,
		ProcessedEventIDs: map[string]struct{}{},
	}
}

// IsActive reports whether the break is still live at the given instant,
// the wall-clock half of the expiry rule.
func (s *State) IsActive(now time.Time) bool {
	return s.Active && now.Before(s.EndsAt)
}

// ExpiredByManifestWindow reports whether a SCTE-35-sourced break has
// rolled out of the live manifest window even though it hasn't reached
// its wall-clock end yet.
func (s *State) ExpiredByManifestWindow(now time.Time) bool {
	if s.Source != SourceSCTE35 || !s.Active {
		return false
	}
	return now.Sub(s.StartedAt) > manifestWindow
}

// DecisionStale reports whether the cached decision needs a refresh.
func (s *State) DecisionStale(now time.Time) bool {
	if s.Decision == nil {
		return true
	}
	return now.Sub(s.DecisionCalculatedAt) > decisionTTL
}

// quantizeDuration rounds a duration to millisecond precision, matching
// the stored durationSec's invariant: computed once, never re-derived.
func quantizeDuration(d float64) float64 {
	return float64(int64(d*1000+0.5)) / 1000
}

// podID derives the stable, never-rotating break identifier. It depends
// only on channel ID and start time, never on the raw SCTE-35 event ID,
// which can change across a single break's processed-event set.
func podID(channelID string, startedAt time.Time) string {
	sec := startedAt.UnixMilli() / 1000
	return "ad_" + channelID + "_" + strconv.FormatInt(sec, 10)
}

// PodID exposes the same stable derivation for callers outside this
// package that need to pre-populate a break identifier before a State
// exists for it, notably internal/monitor's KV-only fast path.
func PodID(channelID string, startedAt time.Time) string {
	return podID(channelID, startedAt)
}
