// Package beacon publishes ad-event telemetry (ad_start, ad_complete,
// impression/quartile/click forwards) to an external analytics sink. The
// sink itself, and what it does with events, is out of scope; this
// package only guarantees delivery is best-effort and never blocks the
// manifest response it's attached to.
package beacon

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/liveadsvc/ssai-edge/internal/httpclient"
)

// publishTimeout bounds the fire-and-forget goroutine's own request, kept
// well under any caller's expectation of a blocking call.
const publishTimeout = 3 * time.Second

// Event is one beacon payload.
type Event struct {
	Type      string    `json:"type"` // ad_start, ad_complete, impression, quartile, click, error
	ChannelID string    `json:"channel_id"`
	PodID     string    `json:"pod_id"`
	At        time.Time `json:"at"`
	URL       string    `json:"url,omitempty"` // for forwarded tracking URLs
}

// Publisher sends Events to an external beacon endpoint. A zero-value
// Endpoint makes every Publish call a no-op, matching an unconfigured
// deployment rather than erroring.
type Publisher struct {
	Endpoint   string
	HTTPClient *http.Client
}

// New returns a Publisher posting to endpoint. An empty endpoint disables
// publishing entirely.
func New(endpoint string) *Publisher {
	return &Publisher{Endpoint: endpoint, HTTPClient: httpclient.Default()}
}

// Publish fires ev at the beacon endpoint in its own goroutine and
// returns immediately, matching the teacher's fire-and-forget OnResult
// callback pattern: the caller's request path is never slowed down by a
// slow or unreachable analytics sink.
func (p *Publisher) Publish(ev Event) {
	if p == nil || p.Endpoint == "" {
		return
	}
	go p.send(ev)
}

func (p *Publisher) send(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("beacon: marshal event %s: %v", ev.Type, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		log.Printf("beacon: build request for %s: %v", ev.Type, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.HTTPClient
	if client == nil {
		client = httpclient.Default()
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Printf("beacon: publish %s for channel %s failed: %v", ev.Type, ev.ChannelID, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("beacon: publish %s for channel %s: non-2xx status %d", ev.Type, ev.ChannelID, resp.StatusCode)
	}
}
