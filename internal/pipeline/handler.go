// Package pipeline implements C6, the manifest request pipeline: the
// per-request entry point that turns an incoming viewer request into
// either a segment passthrough, a micro-cache replay, a KV fast-path
// rewrite, or a full serializer-routed rewrite.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/liveadsvc/ssai-edge/internal/adbreak"
	"github.com/liveadsvc/ssai-edge/internal/beacon"
	"github.com/liveadsvc/ssai-edge/internal/channelstore"
	"github.com/liveadsvc/ssai-edge/internal/decision"
	"github.com/liveadsvc/ssai-edge/internal/hls"
	"github.com/liveadsvc/ssai-edge/internal/kvstore"
	"github.com/liveadsvc/ssai-edge/internal/originfetch"
	"github.com/liveadsvc/ssai-edge/internal/serializer"
	"github.com/liveadsvc/ssai-edge/internal/telemetry"
)

// requestDeadline bounds the entire request per spec.md §5: on deadline
// the handler falls back to the origin with SCTE stripped rather than
// holding the connection open indefinitely.
const requestDeadline = 10 * time.Second

// Handler serves the manifest/segment HTTP surface. Construct with New.
type Handler struct {
	Channels   channelstore.Store
	KV         kvstore.Store
	Decision   *decision.Client
	Beacon     *beacon.Publisher
	Fetcher    *originfetch.Fetcher
	Auth       *Authenticator
	Serializer *serializer.Serializer
	// OnMasterBitrates, if set, is called asynchronously (its own goroutine,
	// detached from the request context) whenever a master playlist fetch
	// reveals a channel's bitrate ladder. Persisting it is out of this
	// package's scope; cmd/ssai-edge only logs the ladder.
	OnMasterBitrates func(ctx context.Context, channelID string, bitratesBps []int)
	// Metrics, if set, receives request and fast-path counters. Nil is a
	// valid zero value; every call site on this field is nil-checked.
	Metrics *telemetry.Metrics

	microCache *microCache
	segmentLRU *channelLRU
	states     *stateRegistry
}

// New builds a Handler with its internal caches initialized.
func New(channels channelstore.Store, kv kvstore.Store, dec *decision.Client, pub *beacon.Publisher, fetcher *originfetch.Fetcher, auth *Authenticator, ser *serializer.Serializer) *Handler {
	return &Handler{
		Channels:   channels,
		KV:         kv,
		Decision:   dec,
		Beacon:     pub,
		Fetcher:    fetcher,
		Auth:       auth,
		Serializer: ser,
		microCache: newMicroCache(),
		segmentLRU: newChannelLRU(segmentLRUCapacity, segmentLRUTTL),
		states:     newStateRegistry(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	route := "manifest"
	outcome := "ok"
	defer func() {
		if h.Metrics != nil {
			h.Metrics.ObserveRequest(route, outcome, time.Since(start))
		}
	}()

	ctx, reqID := withReqID(r.Context())
	ctx, cancel := context.WithTimeout(ctx, requestDeadline)
	defer cancel()
	r = r.WithContext(ctx)

	req, err := parseRequest(r)
	if err != nil {
		outcome = "bad_request"
		http.Error(w, "channel or variant not specified", http.StatusNotFound)
		return
	}

	viewerBucket, err := h.Auth.Authenticate(r)
	if err != nil {
		outcome = "forbidden"
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	ch, err := h.Channels.ByOrgSlug(ctx, req.OrgSlug, req.Slug)
	if err != nil {
		outcome = "not_found"
		http.Error(w, "channel not found", http.StatusNotFound)
		return
	}

	if isSegmentRequest(req.Variant) {
		route = "segment"
		h.serveSegment(w, r, ch, req)
		return
	}

	h.serveManifest(w, r, ch, req, viewerBucket, reqID)
}

func (h *Handler) serveSegment(w http.ResponseWriter, r *http.Request, ch channelstore.Channel, req manifestRequest) {
	lruKey := ch.ID
	if cached, ok := h.segmentLRU.get(lruKey); ok {
		ch = cached
	} else {
		h.segmentLRU.put(lruKey, ch)
	}

	segmentURL := strings.TrimRight(ch.UpstreamVariantBase, "/") + "/" + req.Variant
	resp, err := h.Fetcher.StreamSegment(r.Context(), segmentURL)
	if err != nil {
		http.Error(w, "origin unreachable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vals := range resp.Header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	maxAge := ch.SegmentCacheMaxAge
	if maxAge <= 0 {
		maxAge = 60
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", maxAge))
	w.WriteHeader(resp.StatusCode)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
		}
		if readErr != nil {
			return
		}
	}
}

func (h *Handler) serveManifest(w http.ResponseWriter, r *http.Request, ch channelstore.Channel, req manifestRequest, viewerBucket, reqID string) {
	ctx := r.Context()
	mode := selectMode(r, ch)
	targetBps, audioOnly := variantBitrateHint(req.Variant)

	cacheKey := microCacheKey(ch.ID, req.Variant, time.Now(), viewerBucket)
	if body, headers, ok := h.microCache.get(cacheKey); ok {
		writeManifest(w, body, headers)
		return
	}

	body, err := h.resolveManifest(ctx, ch, req, mode, targetBps, audioOnly)
	if err != nil {
		log.Printf("pipeline: manifest resolution failed for %s/%s%s: %v", req.OrgSlug, req.Slug, reqIDField(ctx), err)
		body = syntheticFallbackManifest()
	}

	headers := manifestHeaders(ch)
	h.microCache.put(cacheKey, body, headers)
	writeManifest(w, body, headers)
}

// resolveManifest implements spec.md §4.6 steps 3-7 for the manifest
// (non-segment) case: fetch origin, try the KV fast path, and only
// otherwise route through the per-channel serializer.
func (h *Handler) resolveManifest(ctx context.Context, ch channelstore.Channel, req manifestRequest, mode channelstore.Mode, targetBps int, audioOnly bool) (string, error) {
	originURL := strings.TrimRight(ch.UpstreamVariantBase, "/") + "/" + req.Variant
	origin, err := h.Fetcher.FetchManifest(ctx, originURL)
	if err != nil {
		return "", fmt.Errorf("fetch origin: %w", err)
	}

	h.detectMasterBitrates(ctx, ch, origin.Body)

	if proj, ok := h.fastPathProjection(ctx, ch); ok {
		return h.renderFromProjection(ctx, ch, proj, mode, targetBps, audioOnly, origin.Body)
	}

	return h.Serializer.Serve(ctx, ch.ID, func(ctx context.Context) (string, error) {
		state := h.states.get(ch.ID)
		manifest, err := h.buildManifest(ctx, ch, state, mode, targetBps, audioOnly, origin.Body)
		if err != nil {
			return "", err
		}
		h.persistProjection(ctx, ch, state)
		return manifest, nil
	})
}

// fastPathProjection looks up the KV-resident ad-break projection for ch.
// A miss or any error means "fall through to the serializer", per spec.md
// §4.7's advisory-KV rule.
func (h *Handler) fastPathProjection(ctx context.Context, ch channelstore.Channel) (kvstore.Projection, bool) {
	if h.KV == nil {
		h.observeFastPath("disabled")
		return kvstore.Projection{}, false
	}
	data, err := h.KV.Get(ctx, kvstore.ActiveKey(ch.ID))
	if err != nil {
		h.observeFastPath("miss")
		return kvstore.Projection{}, false
	}
	proj, err := kvstore.UnmarshalProjection(data)
	if err != nil {
		h.observeFastPath("corrupt")
		return kvstore.Projection{}, false
	}
	if time.Now().After(proj.EndTime) {
		h.observeFastPath("expired")
		return kvstore.Projection{}, false
	}
	h.observeFastPath("hit")
	return proj, true
}

func (h *Handler) observeFastPath(outcome string) {
	if h.Metrics != nil {
		h.Metrics.KVFastPathHits.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) persistProjection(ctx context.Context, ch channelstore.Channel, state *adbreak.State) {
	if h.KV == nil || !state.Active {
		return
	}
	proj := kvstore.Projection{
		ChannelID:   ch.ID,
		Source:      string(state.Source),
		StartTime:   state.StartedAt,
		EndTime:     state.EndsAt,
		DurationSec: state.DurationSec,
		PodID:       state.PodID,
		ContentSkip: state.ContentSegmentsToSkip,
	}
	if state.Decision != nil {
		proj.DecisionPodID = state.Decision.PodID
	}
	if state.HasSCTE35PDT {
		proj.SCTE35StartPDT = state.SCTE35StartPDT.Format(time.RFC3339)
	}
	data, err := proj.Marshal()
	if err != nil {
		return
	}
	_ = h.KV.Put(ctx, kvstore.ActiveKey(ch.ID), data, proj.TTL())
}

// renderFromProjection applies C1 directly from a KV-resident projection
// without touching the serializer, per spec.md §4.6 step 6. It rebuilds
// just enough of a pseudo-state to drive the same SSAI/SGAI rendering
// path buildManifest uses for the serializer case.
func (h *Handler) renderFromProjection(ctx context.Context, ch channelstore.Channel, proj kvstore.Projection, mode channelstore.Mode, targetBps int, audioOnly bool, originBody string) (string, error) {
	state := adbreak.NoBreak(ch.ID)
	state.Active = true
	state.Source = adbreak.Source(proj.Source)
	state.PodID = proj.PodID
	state.StartedAt = proj.StartTime
	state.EndsAt = proj.EndTime
	state.DurationSec = proj.DurationSec
	state.ContentSegmentsToSkip = proj.ContentSkip
	if proj.SCTE35StartPDT != "" {
		if t, err := time.Parse(time.RFC3339, proj.SCTE35StartPDT); err == nil {
			state.SCTE35StartPDT = t
			state.HasSCTE35PDT = true
		}
	}
	if h.Decision != nil {
		resp, _ := h.Decision.Resolve(ctx, decision.Request{ChannelID: ch.ID, DurationSec: proj.DurationSec}, false, h.slateConfig(ch))
		adbreak.SetDecision(state, resp, time.Now())
	}

	startPDT := state.StartedAt
	if state.HasSCTE35PDT {
		startPDT = state.SCTE35StartPDT
	}
	skip := state.ContentSegmentsToSkip
	state.Plan = &adbreak.SharedManifestPlan{StartPDT: startPDT, StableSkipCount: skip}

	if mode == channelstore.ModeSGAI {
		return h.renderSGAI(originBody, ch, state, startPDT)
	}
	return h.renderSSAI(ctx, originBody, ch, state, startPDT, targetBps, audioOnly)
}

// detectMasterBitrates implements spec.md §4.6 step 4: if body is a
// master playlist, persist the detected bitrate ladder asynchronously
// when the channel is in auto mode, never blocking the response.
func (h *Handler) detectMasterBitrates(ctx context.Context, ch channelstore.Channel, body string) {
	if ch.Mode != channelstore.ModeAuto && ch.Mode != "" {
		return
	}
	if !strings.Contains(body, "#EXT-X-STREAM-INF") {
		return
	}
	bitrates, err := hls.ExtractBitrates(body)
	if err != nil || len(bitrates) == 0 {
		return
	}
	if h.OnMasterBitrates == nil {
		return
	}
	go h.OnMasterBitrates(context.WithoutCancel(ctx), ch.ID, bitrates)
}

func manifestHeaders(ch channelstore.Channel) map[string]string {
	maxAge := ch.ManifestCacheMaxAge
	if maxAge <= 0 {
		maxAge = 4
	}
	return map[string]string{
		"Content-Type":                 "application/vnd.apple.mpegurl",
		"Cache-Control":                fmt.Sprintf("private, max-age=%d", maxAge),
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, OPTIONS",
	}
}

func writeManifest(w http.ResponseWriter, body string, headers map[string]string) {
	for k, v := range headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// syntheticFallbackManifest is the minimal valid 10-second live HLS
// manifest spec.md §4.4 requires when origin fetch fails outright: a 200
// OK with a single slate-length segment, never a hard error back to the
// player.
func syntheticFallbackManifest() string {
	return "#EXTM3U\n" +
		"#EXT-X-VERSION:6\n" +
		"#EXT-X-TARGETDURATION:10\n" +
		"#EXT-X-MEDIA-SEQUENCE:0\n" +
		"#EXTINF:10.0,\n" +
		"slate_fallback.ts\n"
}

// variantBitrateHint extracts a viewer bitrate hint and audio-only flag
// from the requested variant's path segment: renditions are named by
// their bitrate in bps (e.g. "2000000.m3u8", "audio_128000.m3u8"), the
// convention this edge's upstream origins use for bitrate-ladder variant
// identifiers.
func variantBitrateHint(variant string) (bps int, audioOnly bool) {
	name := strings.TrimSuffix(variant, ".m3u8")
	audioOnly = strings.Contains(strings.ToLower(name), "audio")
	var digits strings.Builder
	for _, r := range name {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		} else if digits.Len() > 0 {
			break
		}
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, audioOnly
	}
	return n, audioOnly
}

// RegisterMetaRoutes registers the caller-supplied health and metrics
// handlers at /health and /metrics on mux, alongside h itself at "/", per
// spec.md §6's SPEC_FULL expansion.
func (h *Handler) RegisterMetaRoutes(mux *http.ServeMux, health http.Handler, metrics http.Handler) {
	mux.Handle("/health", health)
	mux.Handle("/metrics", metrics)
	mux.Handle("/", h)
}
