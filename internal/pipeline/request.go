package pipeline

import (
	"errors"
	"net/http"
	"strings"

	"github.com/liveadsvc/ssai-edge/internal/channelstore"
)

// manifestRequest is the parsed identity of an incoming request: which
// channel and which variant. The rendering mode is chosen separately by
// selectMode.
type manifestRequest struct {
	OrgSlug string
	Slug    string
	Variant string
}

var errBadRequestPath = errors.New("pipeline: request names neither a path-based nor legacy channel")

// parseRequest implements spec.md §4.6 step 1: path-based routing
// preferred, legacy query-string accepted, reject without either.
func parseRequest(r *http.Request) (manifestRequest, error) {
	if org, slug, variant, ok := parsePathRoute(r.URL.Path); ok {
		return manifestRequest{OrgSlug: org, Slug: slug, Variant: variant}, nil
	}

	q := r.URL.Query()
	channel := q.Get("channel")
	variant := q.Get("variant")
	if channel != "" && variant != "" {
		org, slug := splitChannelParam(channel)
		return manifestRequest{OrgSlug: org, Slug: slug, Variant: variant}, nil
	}

	return manifestRequest{}, errBadRequestPath
}

// parsePathRoute matches /{org}/{channel}/{variant}. Any other shape
// (too few or too many segments) is not a path-based route and falls
// through to the legacy query-string form.
func parsePathRoute(path string) (org, slug, variant string, ok bool) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "", "", "", false
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) != 3 {
		return "", "", "", false
	}
	if parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// splitChannelParam accepts the legacy ?channel= form, which may carry
// either a bare slug (no org, "" is matched against the default org by
// the caller's channelstore) or an "org/slug" compound value.
func splitChannelParam(channel string) (org, slug string) {
	if i := strings.Index(channel, "/"); i >= 0 {
		return channel[:i], channel[i+1:]
	}
	return "", channel
}

// isSegmentRequest reports whether variant names a media segment rather
// than a playlist, per spec.md §4.6 step 3.
func isSegmentRequest(variant string) bool {
	return !strings.HasSuffix(variant, ".m3u8")
}

// selectMode implements spec.md §4.6's mode-selection priority: query
// param wins, then channel config (if not auto), then UA feature-detect.
func selectMode(r *http.Request, ch channelstore.Channel) channelstore.Mode {
	if m := channelstore.Mode(r.URL.Query().Get("mode")); m == channelstore.ModeSSAI || m == channelstore.ModeSGAI {
		return m
	}
	if ch.Mode != "" && ch.Mode != channelstore.ModeAuto {
		return ch.Mode
	}
	if looksLikeAppleNativePlayer(r.UserAgent()) {
		return channelstore.ModeSGAI
	}
	return channelstore.ModeSSAI
}

func looksLikeAppleNativePlayer(ua string) bool {
	lower := strings.ToLower(ua)
	return strings.Contains(lower, "tvos") || strings.Contains(lower, "appletv") ||
		strings.Contains(lower, "avplayer") || strings.Contains(lower, "cfnetwork")
}
