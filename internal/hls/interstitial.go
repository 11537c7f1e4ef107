package hls

import "time"

// InterstitialOpts describes the DATERANGE an ad break is announced with.
type InterstitialOpts struct {
	ID         string
	StartDate  time.Time
	Duration   time.Duration
	AssetURI   string
	SCTE35Out  string // optional, hex payload without 0x prefix
	ResumeOnly bool   // adds X-RESUME-OFFSET="0", used for resume-point markers rather than full breaks
}

// InjectInterstitial inserts a single com.apple.hls.interstitial DATERANGE
// tag ahead of the first segment, per spec §4.1's server-guided insertion
// mode: the player fetches opts.AssetURI as its own sub-playlist rather than
// the edge splicing ad segments into this one.
func InjectInterstitial(p *Playlist, opts InterstitialOpts) {
	if len(p.Segments) == 0 {
		return
	}
	entries := []DateRangeAttr{
		Str("ID", opts.ID),
		Str("CLASS", "com.apple.hls.interstitial"),
		Str("START-DATE", opts.StartDate.Format(pdtLayout)),
		Raw("DURATION", formatDuration(opts.Duration)),
		Str("X-ASSET-URI", opts.AssetURI),
	}
	if opts.SCTE35Out != "" {
		entries = append(entries, Raw("SCTE35-OUT", "0x"+opts.SCTE35Out))
	}
	if opts.ResumeOnly {
		entries = append(entries, Str("X-RESUME-OFFSET", "0"))
	}
	dr := NewDateRange(entries...)
	p.Segments[0].DateRanges = append([]DateRange{dr}, p.Segments[0].DateRanges...)
}
