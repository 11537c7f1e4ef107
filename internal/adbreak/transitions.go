package adbreak

import (
	"fmt"
	"time"

	"github.com/liveadsvc/ssai-edge/internal/channelstore"
	"github.com/liveadsvc/ssai-edge/internal/decision"
	"github.com/liveadsvc/ssai-edge/internal/scte35"
)

// AcceptsTier reports whether ch will honor a signal carrying the given
// SCTE-35 tier: auto-insert must be on, and tier 0 on the channel matches
// any signal tier.
func AcceptsTier(ch channelstore.Channel, sig *scte35.Signal) bool {
	return ch.SCTE35AutoInsert && ch.MatchesTier(int(sig.Tier))
}

// HandleSCTE35Out evaluates an accepted OUT signal against the current
// state. If the event ID has already been processed, or an active
// SCTE-35-sourced break exists whose start time is within dedupWindow of
// this signal's start, the signal is folded into the existing break rather
// than starting a new one; any other state is replaced by a new break. Returns the (possibly unchanged) state and whether a new break was
// started.
func HandleSCTE35Out(s *State, sig *scte35.Signal, ch channelstore.Channel, now time.Time) (*State, bool) {
	eventID := sig.EventID
	if _, seen := s.ProcessedEventIDs[eventID]; seen {
		return s, false
	}

	signalStart := sig.ReceivedAt

	if s.Active && s.Source == SourceSCTE35 {
		delta := signalStart.Sub(s.StartedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta < dedupWindow {
			s.ProcessedEventIDs[eventID] = struct{}{}
			s.Version++
			return s, false
		}
	}

	duration := 0.0
	if sig.Duration != nil {
		duration = sig.Duration.Seconds()
	}
	duration = quantizeDuration(duration)

	startedAt := signalStart
	endsAt := startedAt.Add(time.Duration(duration * float64(time.Second)))

	next := &State{
		ChannelID:             s.ChannelID,
		Active:                true,
		Source:                SourceSCTE35,
		StartedAt:             startedAt,
		EndsAt:                endsAt,
		DurationSec:           duration,
		SCTE35StartPDT:        signalStart,
		HasSCTE35PDT:          true,
		ContentSegmentsToSkip: 0,
		ProcessedEventIDs:     map[string]struct{}{eventID: {}},
		Version:               s.Version + 1,
	}
	next.PodID = podID(ch.ID, startedAt)
	return next, true
}

// HandleSCTE35In terminates the active SCTE-35-sourced break if sig's
// event ID matches one already absorbed into it.
func HandleSCTE35In(s *State, sig *scte35.Signal) *State {
	if !s.Active || s.Source != SourceSCTE35 {
		return s
	}
	if _, ok := s.ProcessedEventIDs[sig.EventID]; !ok {
		return s
	}
	next := NoBreak(s.ChannelID)
	next.Version = s.Version + 1
	return next
}

// HandleCueStart begins a manual break of the given duration, operator-
// triggered out of band from SCTE-35.
func HandleCueStart(s *State, ch channelstore.Channel, duration time.Duration, now time.Time) *State {
	d := quantizeDuration(duration.Seconds())
	next := &State{
		ChannelID:             s.ChannelID,
		Active:                true,
		Source:                SourceManual,
		StartedAt:             now,
		EndsAt:                now.Add(time.Duration(d * float64(time.Second))),
		DurationSec:           d,
		ProcessedEventIDs:     map[string]struct{}{},
		Version:               s.Version + 1,
	}
	next.PodID = podID(ch.ID, now)
	return next
}

// HandleCueStop clears an active break regardless of its source.
func HandleCueStop(s *State) *State {
	if !s.Active {
		return s
	}
	next := NoBreak(s.ChannelID)
	next.Version = s.Version + 1
	return next
}

// HandleScheduleTick starts a time-sourced break on a 5-minute wall-clock
// boundary when the channel has time-based insertion enabled and no break
// is already active.
func HandleScheduleTick(s *State, ch channelstore.Channel, duration time.Duration, now time.Time) *State {
	if s.Active || !ch.TimeBasedAutoInsert {
		return s
	}
	if now.Minute()%5 != 0 {
		return s
	}
	d := quantizeDuration(duration.Seconds())
	next := &State{
		ChannelID:         s.ChannelID,
		Active:            true,
		Source:            SourceTime,
		StartedAt:         now,
		EndsAt:            now.Add(time.Duration(d * float64(time.Second))),
		DurationSec:       d,
		ProcessedEventIDs: map[string]struct{}{},
		Version:           s.Version + 1,
	}
	next.PodID = podID(ch.ID, now)
	return next
}

// Expire clears the break if it has reached its wall-clock end or, for a
// SCTE-35-sourced break, rolled out of the live manifest window.
func Expire(s *State, now time.Time) *State {
	if !s.Active {
		return s
	}
	if now.Before(s.EndsAt) && !s.ExpiredByManifestWindow(now) {
		return s
	}
	next := NoBreak(s.ChannelID)
	next.Version = s.Version + 1
	return next
}

// BindSkipCount writes contentSegmentsToSkip exactly once per break: the
// first call wins, every later call with a different count is reported as
// an anomaly but never overwrites the bound value.
func BindSkipCount(s *State, count int, skippedDuration float64) (anomaly error) {
	if s.ContentSegmentsToSkip != 0 {
		if s.ContentSegmentsToSkip != count {
			return fmt.Errorf("adbreak: skip-count recompute mismatch for pod %s: bound=%d recomputed=%d",
				s.PodID, s.ContentSegmentsToSkip, count)
		}
		return nil
	}
	s.ContentSegmentsToSkip = count
	s.SkippedDuration = skippedDuration
	s.Version++
	return nil
}

// BindPlan stores the shared manifest plan the first rewrite computed, so
// every subsequent rendition reuses identical decorations.
func BindPlan(s *State, plan *SharedManifestPlan) {
	if s.Plan != nil {
		return
	}
	s.Plan = plan
	s.Version++
}

// SetDecision stores a freshly fetched decision and its fetch timestamp.
func SetDecision(s *State, resp *decision.Response, now time.Time) {
	s.Decision = resp
	s.DecisionCalculatedAt = now
	s.Version++
}

// ShouldInsert implements the per-request precedence rule: an active
// manual break wins, then an active tier-matched auto-insert SCTE-35
// break, then a schedule tick. Returns false if nothing currently
// qualifies the request for ad insertion.
func ShouldInsert(s *State, ch channelstore.Channel) bool {
	if !s.Active {
		return false
	}
	switch s.Source {
	case SourceManual:
		return true
	case SourceSCTE35:
		return ch.SCTE35AutoInsert
	case SourceTime:
		return ch.TimeBasedAutoInsert
	default:
		return false
	}
}
