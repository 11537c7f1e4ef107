package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/liveadsvc/ssai-edge/internal/adbreak"
	"github.com/liveadsvc/ssai-edge/internal/beacon"
	"github.com/liveadsvc/ssai-edge/internal/channelstore"
	"github.com/liveadsvc/ssai-edge/internal/decision"
	"github.com/liveadsvc/ssai-edge/internal/hls"
	"github.com/liveadsvc/ssai-edge/internal/scte35"
)

// buildManifest is C4's contract realized in code: parse SCTE-35 out of
// the freshly fetched origin body, evaluate C3's transitions against it,
// and if a break is currently active for the requesting channel, rewrite
// the playlist per C1's SSAI/SGAI rules. It runs inside the serializer's
// critical section (see internal/serializer), so state mutation here
// never races another request for the same channel.
func (h *Handler) buildManifest(ctx context.Context, ch channelstore.Channel, state *adbreak.State, mode channelstore.Mode, targetBps int, audioOnly bool, originBody string) (string, error) {
	now := time.Now()

	if ch.SCTE35AutoInsert {
		for _, sig := range scte35.ScanPlaylist(originBody) {
			if !scte35.Validate(sig, now).Accepted() {
				continue
			}
			if !adbreak.AcceptsTier(ch, sig) {
				continue
			}
			switch sig.Type {
			case scte35.SignalOut:
				next, started := adbreak.HandleSCTE35Out(state, sig, ch, now)
				*state = *next
				if started {
					h.Beacon.Publish(beacon.Event{Type: "ad_start", ChannelID: ch.ID, PodID: state.PodID, At: now})
					h.observeBreakStart(ch.ID, string(state.Source))
				}
			case scte35.SignalIn:
				next := adbreak.HandleSCTE35In(state, sig)
				if next.Active != state.Active {
					h.Beacon.Publish(beacon.Event{Type: "ad_end", ChannelID: ch.ID, PodID: state.PodID, At: now})
					h.observeBreakEnd(ch.ID, "scte35_in")
				}
				*state = *next
			}
		}
	}
	wasActive := state.Active
	*state = *adbreak.Expire(state, now)
	if wasActive && !state.Active {
		h.Beacon.Publish(beacon.Event{Type: "ad_end", ChannelID: ch.ID, PodID: state.PodID, At: now})
		h.observeBreakEnd(ch.ID, "expired")
	}

	if !adbreak.ShouldInsert(state, ch) {
		return stripAndRender(originBody)
	}

	if state.DecisionStale(now) {
		req := decision.Request{
			ChannelID:   ch.ID,
			DurationSec: state.DurationSec,
		}
		if state.HasSCTE35PDT {
			req.SCTE35StartPDT = state.SCTE35StartPDT.Format(time.RFC3339)
		}
		breakOpen := state.DecisionCalculatedAt.IsZero()
		resp, _ := h.Decision.Resolve(ctx, req, breakOpen, h.slateConfig(ch))
		adbreak.SetDecision(state, resp, now)
	}

	startPDT := state.StartedAt
	if state.HasSCTE35PDT {
		startPDT = state.SCTE35StartPDT
	}

	if mode == channelstore.ModeSGAI {
		return h.renderSGAI(originBody, ch, state, startPDT)
	}
	return h.renderSSAI(ctx, originBody, ch, state, startPDT, targetBps, audioOnly)
}

func stripAndRender(originBody string) (string, error) {
	p, err := hls.Parse(originBody)
	if err != nil {
		return "", fmt.Errorf("pipeline: parse origin manifest: %w", err)
	}
	hls.StripOriginSCTE35(p)
	return hls.Render(p), nil
}

func (h *Handler) renderSGAI(originBody string, ch channelstore.Channel, state *adbreak.State, startPDT time.Time) (string, error) {
	p, err := hls.Parse(originBody)
	if err != nil {
		return "", fmt.Errorf("pipeline: parse origin manifest: %w", err)
	}
	hls.StripOriginSCTE35(p)

	assetURI := ch.AdPodBase
	if state.Decision != nil {
		if item, ok := state.Decision.VariantFor(0, false); ok && item.PlaylistURL != "" {
			assetURI = item.PlaylistURL
		}
	}

	hls.InjectInterstitial(p, hls.InterstitialOpts{
		ID:        state.PodID,
		StartDate: startPDT,
		Duration:  time.Duration(state.DurationSec * float64(time.Second)),
		AssetURI:  assetURI,
	})
	return hls.Render(p), nil
}

func (h *Handler) renderSSAI(ctx context.Context, originBody string, ch channelstore.Channel, state *adbreak.State, startPDT time.Time, targetBps int, audioOnly bool) (string, error) {
	var stableSkipCount *int
	if state.Plan != nil {
		sc := state.Plan.StableSkipCount
		stableSkipCount = &sc
	}

	adSegments, err := h.adSegmentsFor(ctx, state, targetBps, audioOnly)
	if err != nil {
		log.Printf("pipeline: ad pod fetch failed for channel %s pod %s: %v", ch.ID, state.PodID, err)
		return stripAndRender(originBody)
	}

	slateSegments, err := h.slateSegmentsFor(ctx, ch)
	if err != nil {
		log.Printf("pipeline: slate fetch failed for channel %s: %v", ch.ID, err)
	}

	plannedDuration := time.Duration(state.DurationSec * float64(time.Second))
	result, err := hls.ReplaceSegmentsWithAds(originBody, startPDT, adSegments, slateSegments, plannedDuration, stableSkipCount)
	if err != nil {
		return "", fmt.Errorf("pipeline: replace segments: %w", err)
	}
	if result == nil || result.BoundarySnap == hls.SnapFallback {
		h.observeBoundarySnap(ch.ID, string(hls.SnapFallback))
		return stripAndRender(originBody)
	}
	h.observeBoundarySnap(ch.ID, string(result.BoundarySnap))

	if anomaly := adbreak.BindSkipCount(state, result.SegmentsSkipped, result.DurationSkipped.Seconds()); anomaly != nil {
		log.Printf("pipeline: %v", anomaly)
	}
	if state.Plan == nil {
		adbreak.BindPlan(state, &adbreak.SharedManifestPlan{
			StartPDT:        startPDT,
			StableSkipCount: result.SegmentsSkipped,
			UpdatedAt:       time.Now(),
		})
	}
	return result.Manifest, nil
}

// adSegmentsFor fetches the ad pod playlist the current decision points at
// for targetBps/audioOnly and converts its segments into splice-ready
// AdSegments. A missing decision or no matching variant both mean "no ad
// inventory": the caller falls back to a stripped-origin response rather
// than erroring.
func (h *Handler) adSegmentsFor(ctx context.Context, state *adbreak.State, targetBps int, audioOnly bool) ([]hls.AdSegment, error) {
	if state.Decision == nil {
		return nil, fmt.Errorf("no decision available for pod %s", state.PodID)
	}
	item, ok := state.Decision.VariantFor(targetBps, audioOnly)
	if !ok || item.PlaylistURL == "" {
		return nil, fmt.Errorf("no matching ad variant for pod %s at %d bps", state.PodID, targetBps)
	}
	return h.fetchAdSegments(ctx, item.PlaylistURL, false)
}

func (h *Handler) slateSegmentsFor(ctx context.Context, ch channelstore.Channel) ([]hls.AdSegment, error) {
	if ch.SlateRef == "" {
		return nil, nil
	}
	return h.fetchAdSegments(ctx, ch.SlateRef, true)
}

func (h *Handler) fetchAdSegments(ctx context.Context, playlistURL string, isSlate bool) ([]hls.AdSegment, error) {
	m, err := h.Fetcher.FetchManifest(ctx, playlistURL)
	if err != nil {
		return nil, err
	}
	p, err := hls.Parse(m.Body)
	if err != nil {
		return nil, fmt.Errorf("pipeline: parse ad pod manifest %s: %w", playlistURL, err)
	}
	segments := make([]hls.AdSegment, 0, len(p.Segments))
	for _, seg := range p.Segments {
		segments = append(segments, hls.AdSegment{Duration: seg.Duration, URI: seg.URI, IsSlate: isSlate})
	}
	return segments, nil
}

func (h *Handler) slateConfig(ch channelstore.Channel) *decision.SlateConfig {
	if ch.SlateRef == "" {
		return nil
	}
	return &decision.SlateConfig{PodID: "slate_" + ch.ID, PlaylistURL: ch.SlateRef}
}

func (h *Handler) observeBreakStart(channelID, source string) {
	if h.Metrics != nil {
		h.Metrics.AdBreaksStarted.WithLabelValues(channelID, source).Inc()
	}
}

func (h *Handler) observeBreakEnd(channelID, reason string) {
	if h.Metrics != nil {
		h.Metrics.AdBreaksEnded.WithLabelValues(channelID, reason).Inc()
	}
}

func (h *Handler) observeBoundarySnap(channelID, outcome string) {
	if h.Metrics != nil {
		h.Metrics.BoundarySnaps.WithLabelValues(channelID, outcome).Inc()
	}
}
