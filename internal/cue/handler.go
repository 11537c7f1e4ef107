// Package cue implements C8, the operator control-plane endpoint that
// starts or stops an ad break out-of-band from SCTE-35: POST /cue.
package cue

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/liveadsvc/ssai-edge/internal/adbreak"
	"github.com/liveadsvc/ssai-edge/internal/pipeline"
)

// Handler serves POST /cue. It delegates channel lookup and state
// mutation to the same pipeline.Handler the manifest path uses, so a cue
// write and a concurrent manifest request for the same channel are
// serialized through the one per-channel critical section.
type Handler struct {
	Pipeline *pipeline.Handler
	Auth     *pipeline.Authenticator
}

type request struct {
	Channel     string  `json:"channel"`
	Org         string  `json:"org,omitempty"`
	Type        string  `json:"type"`
	DurationSec float64 `json:"duration,omitempty"`
	PodID       string  `json:"pod_id,omitempty"`
	PodURL      string  `json:"pod_url,omitempty"`
}

type stateView struct {
	Active      bool    `json:"active"`
	Source      string  `json:"source,omitempty"`
	PodID       string  `json:"pod_id,omitempty"`
	PodURL      string  `json:"pod_url,omitempty"`
	StartedAt   string  `json:"started_at,omitempty"`
	EndsAt      string  `json:"ends_at,omitempty"`
	DurationSec float64 `json:"duration_sec"`
	Version     int     `json:"version"`
}

func viewState(s *adbreak.State) stateView {
	v := stateView{
		Active:      s.Active,
		Source:      string(s.Source),
		PodID:       s.PodID,
		PodURL:      s.PodURL,
		DurationSec: s.DurationSec,
		Version:     s.Version,
	}
	if !s.StartedAt.IsZero() {
		v.StartedAt = s.StartedAt.Format(time.RFC3339)
	}
	if !s.EndsAt.IsZero() {
		v.EndsAt = s.EndsAt.Format(time.RFC3339)
	}
	return v
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, err := h.Auth.Authenticate(r); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	ch, err := h.Pipeline.ResolveCueChannel(r.Context(), req.Org, req.Channel)
	if err != nil {
		http.Error(w, "channel not found", http.StatusNotFound)
		return
	}

	switch req.Type {
	case "start":
		if req.DurationSec <= 0 || (req.PodID == "" && req.PodURL == "") {
			http.Error(w, "start requires duration > 0 and pod_id or pod_url", http.StatusBadRequest)
			return
		}
		duration := time.Duration(req.DurationSec * float64(time.Second))
		state, err := h.Pipeline.ApplyCueStart(r.Context(), ch, duration, req.PodID, req.PodURL)
		if err != nil {
			http.Error(w, "failed to apply cue", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]interface{}{"ok": true, "state": viewState(state)})

	case "stop":
		if _, err := h.Pipeline.ApplyCueStop(r.Context(), ch); err != nil {
			http.Error(w, "failed to apply cue", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]interface{}{"ok": true, "cleared": true})

	default:
		http.Error(w, "type must be \"start\" or \"stop\"", http.StatusBadRequest)
	}
}

func writeJSON(w http.ResponseWriter, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}
