// Package channelstore holds the read-only channel configuration entity
// this edge core consumes: identity, upstream/ad-pod origins, tier, and
// insertion mode. The admin CRUD surface that writes these rows is out of
// scope here; this package only reads.
package channelstore

// Mode selects how a channel's ad breaks are delivered to players.
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeSSAI Mode = "ssai"
	ModeSGAI Mode = "sgai"
)

// Channel is the configuration entity identified by (OrgSlug, Slug).
type Channel struct {
	ID                  string
	OrgSlug             string
	Slug                string
	UpstreamVariantBase string
	AdPodBase           string
	SignHost            string
	Tier                int // 0 matches any signal tier
	SCTE35AutoInsert    bool
	TimeBasedAutoInsert bool
	Mode                Mode
	SegmentCacheMaxAge  int // seconds
	ManifestCacheMaxAge int // seconds
	SlateRef            string
}

// MatchesTier reports whether a signal carrying the given tier should be
// honored on this channel: tier 0 on the channel matches anything.
func (c Channel) MatchesTier(signalTier int) bool {
	if c.Tier == 0 {
		return true
	}
	return c.Tier == signalTier
}
