package pipeline

import (
	"context"
	"time"

	"github.com/liveadsvc/ssai-edge/internal/adbreak"
	"github.com/liveadsvc/ssai-edge/internal/beacon"
	"github.com/liveadsvc/ssai-edge/internal/channelstore"
	"github.com/liveadsvc/ssai-edge/internal/kvstore"
)

// ApplyCueStart implements C8's start operation: a manual break, serialized
// through the same per-channel critical section buildManifest uses, so a
// concurrent manifest request never observes a half-applied cue. podID and
// podURL, when non-empty, override the derived pod identifier/URL per the
// operator's explicit request.
func (h *Handler) ApplyCueStart(ctx context.Context, ch channelstore.Channel, duration time.Duration, podID, podURL string) (*adbreak.State, error) {
	var result *adbreak.State
	err := h.Serializer.Do(ctx, ch.ID, func(ctx context.Context) error {
		now := time.Now()
		state := h.states.get(ch.ID)
		next := adbreak.HandleCueStart(state, ch, duration, now)
		if podID != "" {
			next.PodID = podID
		}
		if podURL != "" {
			next.PodURL = podURL
		}
		*state = *next
		h.persistProjection(ctx, ch, state)
		h.Beacon.Publish(beacon.Event{Type: "ad_start", ChannelID: ch.ID, PodID: state.PodID, At: now})
		h.observeBreakStart(ch.ID, string(adbreak.SourceManual))
		result = state
		return nil
	})
	return result, err
}

// ApplyCueStop implements C8's stop operation: clears whatever break is
// currently active for ch, regardless of source.
func (h *Handler) ApplyCueStop(ctx context.Context, ch channelstore.Channel) (*adbreak.State, error) {
	var result *adbreak.State
	err := h.Serializer.Do(ctx, ch.ID, func(ctx context.Context) error {
		now := time.Now()
		state := h.states.get(ch.ID)
		wasActive := state.Active
		podID := state.PodID
		next := adbreak.HandleCueStop(state)
		*state = *next
		if h.KV != nil {
			_ = h.KV.Delete(ctx, kvstore.ActiveKey(ch.ID))
		}
		if wasActive {
			h.Beacon.Publish(beacon.Event{Type: "ad_end", ChannelID: ch.ID, PodID: podID, At: now})
			h.observeBreakEnd(ch.ID, "cue_stop")
		}
		result = state
		return nil
	})
	return result, err
}

// ResolveCueChannel looks up the channel a cue request names, accepting
// either an explicit org slug or the bare channel slug (the legacy
// ?channel= convention splitChannelParam already implements for C6).
func (h *Handler) ResolveCueChannel(ctx context.Context, org, channel string) (channelstore.Channel, error) {
	orgSlug, slug := org, channel
	if orgSlug == "" {
		orgSlug, slug = splitChannelParam(channel)
	}
	return h.Channels.ByOrgSlug(ctx, orgSlug, slug)
}
