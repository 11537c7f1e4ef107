package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/liveadsvc/ssai-edge/internal/httpclient"
	"github.com/liveadsvc/ssai-edge/internal/telemetry"
)

// Request is what C3 asks the decision collaborator to resolve an ad pod
// for. It carries no viewer-specific parameters: the response spans every
// bitrate, and the renderer (C1, via VariantFor) picks per-rendition.
type Request struct {
	ChannelID      string
	DurationSec    float64
	SCTE35EventID  string
	SCTE35Tier     uint16
	SCTE35StartPDT string
}

// onDemandTimeout and breakOpenTimeout are the two request deadlines spec
// §4.5 distinguishes: a quick budget for refreshing an already-open
// break's decision, a longer one when the decision gates break creation
// itself.
const (
	onDemandTimeout  = 2 * time.Second
	breakOpenTimeout = 5 * time.Second
)

// wireRequest/wireResponse are the JSON shapes exchanged with the decision
// collaborator; Request/Response are this package's normalized forms.
type wireRequest struct {
	ChannelID      string  `json:"channel_id"`
	DurationSec    float64 `json:"duration_sec"`
	SCTE35EventID  string  `json:"scte35_event_id,omitempty"`
	SCTE35Tier     uint16  `json:"scte35_tier,omitempty"`
	SCTE35StartPDT string  `json:"scte35_start_pdt,omitempty"`
}

type wireItem struct {
	AdID        string `json:"ad_id"`
	BitrateBps  int    `json:"bitrate_bps"`
	PlaylistURL string `json:"playlist_url"`
}

type wireTracking struct {
	Impression []string `json:"impression"`
	Quartiles  []string `json:"quartiles"`
	Clicks     []string `json:"clicks"`
	Errors     []string `json:"errors"`
}

type wireResponse struct {
	PodID       string       `json:"pod_id"`
	DurationSec float64      `json:"duration_sec"`
	Items       []wireItem   `json:"items"`
	Tracking    wireTracking `json:"tracking"`
}

// SlateConfig describes a channel's configured fallback pod, used when
// the decision collaborator can't be reached or returns no inventory.
type SlateConfig struct {
	PodID       string
	PlaylistURL string
	BitratesBps []int
}

// Client calls the external decision collaborator over HTTP, with the
// pack's aggressive retry policy for transient provider errors and a
// process-wide QPS limiter to stay under the collaborator's rate limit.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	// Metrics, if set, receives a counter per resolve outcome. Nil is valid.
	Metrics *telemetry.Metrics
}

// NewClient builds a Client with a sensible default QPS limiter. qps <= 0
// disables rate limiting.
func NewClient(endpoint string, qps float64) *Client {
	var limiter *rate.Limiter
	if qps > 0 {
		limiter = rate.NewLimiter(rate.Limit(qps), int(qps)+1)
	}
	return &Client{
		Endpoint:   endpoint,
		HTTPClient: httpclient.Default(),
		Limiter:    limiter,
	}
}

// Resolve requests a decision for req. breakOpen selects the longer
// deadline used when a decision gates break creation rather than a
// routine TTL refresh. On any transport failure or non-2xx response it
// falls back to slate (if configured) or an empty-items decision.
func (c *Client) Resolve(ctx context.Context, req Request, breakOpen bool, slate *SlateConfig) (*Response, error) {
	timeout := onDemandTimeout
	if breakOpen {
		timeout = breakOpenTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			c.observe("rate_limited")
			return fallback(req, slate), nil
		}
	}

	resp, err := c.call(ctx, req)
	if err != nil {
		c.observe("fallback")
		return fallback(req, slate), nil
	}
	c.observe("ok")
	return resp, nil
}

func (c *Client) observe(result string) {
	if c.Metrics != nil {
		c.Metrics.DecisionRequests.WithLabelValues(result).Inc()
	}
}

func (c *Client) call(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(wireRequest{
		ChannelID:      req.ChannelID,
		DurationSec:    req.DurationSec,
		SCTE35EventID:  req.SCTE35EventID,
		SCTE35Tier:     req.SCTE35Tier,
		SCTE35StartPDT: req.SCTE35StartPDT,
	})
	if err != nil {
		return nil, fmt.Errorf("decision: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decision: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httpclient.DoWithRetry(ctx, c.HTTPClient, httpReq, httpclient.DecisionRetryPolicy)
	if err != nil {
		return nil, fmt.Errorf("decision: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("decision: non-2xx response: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decision: read response: %w", err)
	}

	var wire wireResponse
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decision: decode response: %w", err)
	}

	return toResponse(wire), nil
}

func toResponse(w wireResponse) *Response {
	items := make([]Item, 0, len(w.Items))
	for _, wi := range w.Items {
		items = append(items, Item{AdID: wi.AdID, BitrateBps: wi.BitrateBps, PlaylistURL: wi.PlaylistURL})
	}
	return &Response{
		PodID:       w.PodID,
		DurationSec: w.DurationSec,
		Items:       items,
		Tracking: Tracking{
			Impression: w.Tracking.Impression,
			Quartiles:  w.Tracking.Quartiles,
			Clicks:     w.Tracking.Clicks,
			Errors:     w.Tracking.Errors,
		},
	}
}

// fallback builds a decision pointing entirely at the channel's slate, or
// an empty-items decision (the caller must then suppress the ad) if none
// is configured.
func fallback(req Request, slate *SlateConfig) *Response {
	if slate == nil || strings.TrimSpace(slate.PlaylistURL) == "" {
		return &Response{PodID: "", DurationSec: req.DurationSec, Items: nil}
	}
	items := make([]Item, 0, len(slate.BitratesBps))
	for _, bps := range slate.BitratesBps {
		items = append(items, Item{AdID: slate.PodID, BitrateBps: bps, PlaylistURL: slate.PlaylistURL})
	}
	if len(items) == 0 {
		items = []Item{{AdID: slate.PodID, BitrateBps: 0, PlaylistURL: slate.PlaylistURL}}
	}
	return &Response{
		PodID:       slate.PodID,
		DurationSec: req.DurationSec,
		Items:       items,
	}
}
