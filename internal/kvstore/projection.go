package kvstore

import (
	"encoding/json"
	"time"
)

// Projection is the JSON-serialized slice of AdBreakState that C6's fast
// path needs to rewrite a manifest without contacting the per-channel
// serializer: just enough to reconstruct a SkipPlan and pick a decision
// variant, not the full authoritative state.
type Projection struct {
	ChannelID      string    `json:"channel_id"`
	EventID        string    `json:"event_id"`
	Source         string    `json:"source"` // scte35, manual, time
	StartTime      time.Time `json:"start_time"`
	DurationSec    float64   `json:"duration_sec"`
	EndTime        time.Time `json:"end_time"`
	PodID          string    `json:"pod_id"`
	ContentSkip    int       `json:"content_segments_to_skip"`
	DecisionPodID  string    `json:"decision_pod_id"`
	SCTE35StartPDT string    `json:"scte35_start_pdt,omitempty"`
}

// TTL is the KV expiry spec §4.7 assigns each projection: duration plus a
// 60s safety margin so a slow reader never observes a break vanish from
// the fast path before the serializer itself would expire it.
func (p Projection) TTL() time.Duration {
	return time.Duration(p.DurationSec*float64(time.Second)) + 60*time.Second
}

func (p Projection) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

func UnmarshalProjection(data []byte) (Projection, error) {
	var p Projection
	err := json.Unmarshal(data, &p)
	return p, err
}
