// Package decision models the external ad-decision collaborator's
// response shape and implements the client that calls it. The decision
// service itself — targeting, inventory, pacing — is out of scope; this
// package only shapes the request/response and the retry/caching policy
// around it.
package decision

// Item is one bitrate rendition of an ad pod.
type Item struct {
	AdID        string
	BitrateBps  int
	PlaylistURL string
}

// Tracking carries the beacon URLs a decision's ad pod is tagged with.
type Tracking struct {
	Impression []string
	Quartiles  []string
	Clicks     []string
	Errors     []string
}

// Response is a complete ad-pod decision: every bitrate variant, never
// parameterized by the requesting viewer's own bitrate.
type Response struct {
	PodID       string
	DurationSec float64
	Items       []Item
	Tracking    Tracking
}

// VariantFor picks the item whose bitrate is closest to without exceeding
// targetBps, falling back to the lowest available bitrate if every item
// exceeds the target. audioOnly filters out video renditions, used when
// the requesting viewer variant is itself an audio-only rendition.
func (r Response) VariantFor(targetBps int, audioOnly bool) (Item, bool) {
	var best Item
	haveBest := false
	var lowest Item
	haveLowest := false

	for _, item := range r.Items {
		if audioOnly != (item.BitrateBps == 0) {
			// BitrateBps == 0 marks an audio-only rendition in this model;
			// skip items that don't match the requested kind.
			continue
		}
		if !haveLowest || item.BitrateBps < lowest.BitrateBps {
			lowest = item
			haveLowest = true
		}
		if item.BitrateBps <= targetBps && (!haveBest || item.BitrateBps > best.BitrateBps) {
			best = item
			haveBest = true
		}
	}
	if haveBest {
		return best, true
	}
	if haveLowest {
		return lowest, true
	}
	return Item{}, false
}
