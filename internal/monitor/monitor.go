// Package monitor implements C9, the per-channel periodic poller that
// reads a channel's live variant, detects SCTE-35 outs that the manifest
// pipeline hasn't seen yet, and pre-populates the KV fast path ahead of
// the next viewer request. Grounded on the teacher's sdtprobe worker: a
// Config-driven periodic job with consecutive-failure self-throttling and
// a fire-and-forget OnResult callback, adapted from "probe a stream for
// playability" to "poll a variant for SCTE-35 and prime the KV cache".
package monitor

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/liveadsvc/ssai-edge/internal/adbreak"
	"github.com/liveadsvc/ssai-edge/internal/channelstore"
	"github.com/liveadsvc/ssai-edge/internal/decision"
	"github.com/liveadsvc/ssai-edge/internal/kvstore"
	"github.com/liveadsvc/ssai-edge/internal/originfetch"
	"github.com/liveadsvc/ssai-edge/internal/scte35"
	"github.com/liveadsvc/ssai-edge/internal/telemetry"
)

// monitorVariant is the deterministic mid-tier rendition spec.md §4.9
// asks the monitor to read, rather than the top or bottom of the
// ladder — it exists only to observe SCTE-35, never to serve a viewer.
const monitorVariant = "mid.m3u8"

// maxConsecutiveFailures is the self-throttle threshold: after this many
// consecutive poll failures for one channel, the monitor marks it
// inactive and stops rescheduling until an operator calls Rearm.
const maxConsecutiveFailures = 10

// Config controls the monitor's polling cadence and concurrency.
type Config struct {
	// ConcurrentProbes bounds the number of channel polls in flight at
	// once, process-wide. Default 4.
	ConcurrentProbes int
	// PollInterval is how often each watched channel is polled. Default 5s.
	PollInterval time.Duration
	// StartDelay is how long Watch waits before the first poll. Default 0.
	StartDelay time.Duration
	// OnResult, if set, is called synchronously from the poll goroutine
	// whenever a fresh SCTE-35 OUT is accepted and written to KV.
	OnResult func(channelID string, sig *scte35.Signal)
}

func (c *Config) setDefaults() {
	if c.ConcurrentProbes <= 0 {
		c.ConcurrentProbes = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
}

// channelWatch tracks one channel's consecutive-failure count and
// throttle state. Guarded by its own mutex since Rearm may be called
// from an admin HTTP handler concurrently with the poll loop.
type channelWatch struct {
	mu                sync.Mutex
	consecutiveErrors int
	throttled         bool
}

func (w *channelWatch) isThrottled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.throttled
}

// recordFailure increments the failure count and throttles at the
// threshold, returning whether this call just crossed it.
func (w *channelWatch) recordFailure() (justThrottled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.consecutiveErrors++
	if !w.throttled && w.consecutiveErrors >= maxConsecutiveFailures {
		w.throttled = true
		return true
	}
	return false
}

func (w *channelWatch) recordSuccess() {
	w.mu.Lock()
	w.consecutiveErrors = 0
	w.mu.Unlock()
}

func (w *channelWatch) rearm() {
	w.mu.Lock()
	w.consecutiveErrors = 0
	w.throttled = false
	w.mu.Unlock()
}

// Monitor runs one watch loop per channel registered with Watch.
type Monitor struct {
	cfg      Config
	Channels channelstore.Store
	Fetcher  *originfetch.Fetcher
	Decision *decision.Client
	KV       kvstore.Store
	// Metrics, if set, receives per-poll outcome counters. Nil is valid.
	Metrics *telemetry.Metrics

	sem chan struct{}

	mu       sync.Mutex
	watchers map[string]*channelWatch
}

// New builds a Monitor with cfg's zero fields defaulted.
func New(cfg Config, channels channelstore.Store, fetcher *originfetch.Fetcher, dec *decision.Client, kv kvstore.Store) *Monitor {
	cfg.setDefaults()
	return &Monitor{
		cfg:      cfg,
		Channels: channels,
		Fetcher:  fetcher,
		Decision: dec,
		KV:       kv,
		sem:      make(chan struct{}, cfg.ConcurrentProbes),
		watchers: make(map[string]*channelWatch),
	}
}

func (m *Monitor) watcherFor(channelID string) *channelWatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.watchers[channelID]
	if !ok {
		w = &channelWatch{}
		m.watchers[channelID] = w
	}
	return w
}

// Watch starts polling channelID on its own goroutine until ctx is
// canceled. Each call starts another polling goroutine, sharing the
// channel's existing failure state — callers own lifecycle via ctx.
func (m *Monitor) Watch(ctx context.Context, channelID string) {
	w := m.watcherFor(channelID)
	go m.loop(ctx, channelID, w)
}

// Rearm clears a throttled channel's failure count so the next poll tick
// resumes scheduling it, per spec.md §4.9's "admin must re-arm" rule.
func (m *Monitor) Rearm(channelID string) {
	m.watcherFor(channelID).rearm()
}

func (m *Monitor) loop(ctx context.Context, channelID string, w *channelWatch) {
	if m.cfg.StartDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(m.cfg.StartDelay):
		}
	}

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.isThrottled() {
				continue
			}
			m.tick(ctx, channelID, w)
		}
	}
}

func (m *Monitor) tick(ctx context.Context, channelID string, w *channelWatch) {
	m.sem <- struct{}{}
	defer func() { <-m.sem }()

	ch, err := m.Channels.ByID(ctx, channelID)
	if err != nil {
		m.fail(channelID, w, err)
		return
	}
	if err := m.runCycle(ctx, ch); err != nil {
		m.fail(channelID, w, err)
		return
	}
	w.recordSuccess()
	if m.Metrics != nil {
		m.Metrics.MonitorPolls.WithLabelValues(channelID, "ok").Inc()
	}
}

func (m *Monitor) fail(channelID string, w *channelWatch, err error) {
	log.Printf("monitor: channel %s poll failed: %v", channelID, err)
	if m.Metrics != nil {
		m.Metrics.MonitorPolls.WithLabelValues(channelID, "error").Inc()
	}
	if w.recordFailure() {
		log.Printf("monitor: channel %s throttled after %d consecutive failures, awaiting Rearm", channelID, maxConsecutiveFailures)
	}
}

// runCycle fetches ch's mid-tier variant, scans it for SCTE-35 outs, and
// opens a KV projection for any accepted signal not already represented
// under the channel's active key.
func (m *Monitor) runCycle(ctx context.Context, ch channelstore.Channel) error {
	if !ch.SCTE35AutoInsert {
		return nil
	}

	url := strings.TrimRight(ch.UpstreamVariantBase, "/") + "/" + monitorVariant
	man, err := m.Fetcher.FetchManifest(ctx, url)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, sig := range scte35.ScanPlaylist(man.Body) {
		if sig.Type != scte35.SignalOut {
			continue
		}
		if !scte35.Validate(sig, now).Accepted() {
			continue
		}
		if !adbreak.AcceptsTier(ch, sig) {
			continue
		}
		if m.hasActiveProjection(ctx, ch.ID) {
			continue
		}
		m.openProjection(ctx, ch, sig, now)
		if m.cfg.OnResult != nil {
			m.cfg.OnResult(ch.ID, sig)
		}
	}
	return nil
}

func (m *Monitor) hasActiveProjection(ctx context.Context, channelID string) bool {
	if m.KV == nil {
		return false
	}
	data, err := m.KV.Get(ctx, kvstore.ActiveKey(channelID))
	if err != nil {
		return false
	}
	proj, err := kvstore.UnmarshalProjection(data)
	if err != nil {
		return false
	}
	return time.Now().Before(proj.EndTime)
}

func (m *Monitor) openProjection(ctx context.Context, ch channelstore.Channel, sig *scte35.Signal, now time.Time) {
	duration := 0.0
	if sig.Duration != nil {
		duration = sig.Duration.Seconds()
	}
	startedAt := sig.ReceivedAt
	if startedAt.IsZero() {
		startedAt = now
	}

	proj := kvstore.Projection{
		ChannelID:      ch.ID,
		EventID:        sig.EventID,
		Source:         "scte35",
		StartTime:      startedAt,
		EndTime:        startedAt.Add(time.Duration(duration * float64(time.Second))),
		DurationSec:    duration,
		PodID:          adbreak.PodID(ch.ID, startedAt),
		SCTE35StartPDT: startedAt.Format(time.RFC3339),
	}

	if m.Decision != nil {
		resp, _ := m.Decision.Resolve(ctx, decision.Request{
			ChannelID:      ch.ID,
			DurationSec:    duration,
			SCTE35EventID:  sig.EventID,
			SCTE35Tier:     sig.Tier,
			SCTE35StartPDT: proj.SCTE35StartPDT,
		}, true, nil)
		if resp != nil {
			proj.DecisionPodID = resp.PodID
		}
	}

	if m.KV == nil {
		return
	}
	data, err := proj.Marshal()
	if err != nil {
		return
	}
	_ = m.KV.Put(ctx, kvstore.ActiveKey(ch.ID), data, proj.TTL())
}
