// Package telemetry holds the process-wide Prometheus registry and the
// metric collectors the rest of the edge increments: request counts and
// latency by outcome, ad-break lifecycle events, decision-collaborator
// call results, and monitor-loop poll health. GET /metrics exposes the
// registry in the standard exposition format.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector this edge reports. Zero value is not
// usable; construct with New.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	AdBreaksStarted  *prometheus.CounterVec
	AdBreaksEnded    *prometheus.CounterVec
	BoundarySnaps    *prometheus.CounterVec
	DecisionRequests *prometheus.CounterVec
	MonitorPolls     *prometheus.CounterVec
	KVFastPathHits   *prometheus.CounterVec
}

// New registers every collector on a fresh registry and returns the
// bundle. Call Handler to expose it over HTTP.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ssai_edge_requests_total",
			Help: "Manifest and segment requests served, by route and outcome.",
		}, []string{"route", "outcome"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ssai_edge_request_duration_seconds",
			Help:    "Request handling latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		AdBreaksStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ssai_edge_ad_breaks_started_total",
			Help: "Ad breaks opened, by channel and trigger source.",
		}, []string{"channel_id", "source"}),

		AdBreaksEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ssai_edge_ad_breaks_ended_total",
			Help: "Ad breaks closed, by channel and reason.",
		}, []string{"channel_id", "reason"}),

		BoundarySnaps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ssai_edge_boundary_snap_outcomes_total",
			Help: "Ad-pod boundary snap outcomes, by channel and outcome kind.",
		}, []string{"channel_id", "outcome"}),

		DecisionRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ssai_edge_decision_requests_total",
			Help: "Decision collaborator calls, by result.",
		}, []string{"result"}),

		MonitorPolls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ssai_edge_monitor_polls_total",
			Help: "Monitor loop poll cycles, by channel and result.",
		}, []string{"channel_id", "result"}),

		KVFastPathHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ssai_edge_kv_fast_path_total",
			Help: "C6 fast-path KV projection lookups, by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler exposes the registry for scraping, for use with
// pipeline.Handler.RegisterMetaRoutes.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one request's outcome and latency.
func (m *Metrics) ObserveRequest(route, outcome string, d time.Duration) {
	m.RequestsTotal.WithLabelValues(route, outcome).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(d.Seconds())
}
