package channelstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no channel matches the requested key.
var ErrNotFound = errors.New("channelstore: channel not found")

// Store is the read-only channel configuration accessor the manifest
// pipeline consults on every request. Implementations may cache
// aggressively; config changes are expected to show up within a few
// seconds, not instantly.
type Store interface {
	// ByOrgSlug looks up a channel by its (org, channel) path segments,
	// the primary key the pipeline's URL router resolves against.
	ByOrgSlug(ctx context.Context, orgSlug, slug string) (Channel, error)
	// ByID looks up a channel by its stable ID, used by components that
	// already hold a channel ID (the monitor loop, the cue handler).
	ByID(ctx context.Context, id string) (Channel, error)
	// ListIDs returns every known channel ID, used at startup to register
	// each channel with the monitor loop.
	ListIDs(ctx context.Context) ([]string, error)
}
