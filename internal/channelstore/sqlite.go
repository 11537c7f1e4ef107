package channelstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/liveadsvc/ssai-edge/internal/safeurl"
)

// refreshTTL bounds how stale a cached channel row may be before the
// next read re-queries the database: config edits made through the
// admin surface this package doesn't own show up within one TTL window.
const refreshTTL = 10 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS channels (
	id                     TEXT PRIMARY KEY,
	org_slug               TEXT NOT NULL,
	slug                   TEXT NOT NULL,
	upstream_variant_base  TEXT NOT NULL,
	ad_pod_base            TEXT NOT NULL,
	sign_host              TEXT NOT NULL DEFAULT '',
	tier                   INTEGER NOT NULL DEFAULT 0,
	scte35_auto_insert     INTEGER NOT NULL DEFAULT 0,
	time_based_auto_insert INTEGER NOT NULL DEFAULT 0,
	mode                   TEXT NOT NULL DEFAULT 'auto',
	segment_cache_max_age  INTEGER NOT NULL DEFAULT 6,
	manifest_cache_max_age INTEGER NOT NULL DEFAULT 1,
	slate_ref              TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_channels_org_slug ON channels(org_slug, slug);
`

// SQLiteStore is the Store implementation the edge service ships with:
// channel rows in SQLite (modernc.org/sqlite, matching the teacher's
// pure-Go driver choice in internal/plex), fronted by a short-TTL cache
// so the manifest hot path never waits on a disk read per request.
type SQLiteStore struct {
	db *sql.DB

	mu    sync.RWMutex
	byKey map[string]cacheEntry // "org/slug" -> entry
	byID  map[string]cacheEntry
}

type cacheEntry struct {
	channel  Channel
	cachedAt time.Time
}

// OpenSQLiteStore opens (creating if absent) the SQLite database at path
// and ensures the channels table exists.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("channelstore: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("channelstore: create schema: %w", err)
	}
	return &SQLiteStore{
		db:    db,
		byKey: make(map[string]cacheEntry),
		byID:  make(map[string]cacheEntry),
	}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func orgKey(orgSlug, slug string) string {
	return orgSlug + "/" + slug
}

func (s *SQLiteStore) ByOrgSlug(ctx context.Context, orgSlug, slug string) (Channel, error) {
	key := orgKey(orgSlug, slug)

	s.mu.RLock()
	entry, ok := s.byKey[key]
	s.mu.RUnlock()
	if ok && time.Since(entry.cachedAt) < refreshTTL {
		return entry.channel, nil
	}

	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE org_slug = ? AND slug = ?`, orgSlug, slug)
	ch, err := scanChannel(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Channel{}, ErrNotFound
		}
		return Channel{}, fmt.Errorf("channelstore: query by org/slug: %w", err)
	}

	s.store(key, ch)
	return ch, nil
}

func (s *SQLiteStore) ByID(ctx context.Context, id string) (Channel, error) {
	s.mu.RLock()
	entry, ok := s.byID[id]
	s.mu.RUnlock()
	if ok && time.Since(entry.cachedAt) < refreshTTL {
		return entry.channel, nil
	}

	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	ch, err := scanChannel(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Channel{}, ErrNotFound
		}
		return Channel{}, fmt.Errorf("channelstore: query by id: %w", err)
	}

	s.store(orgKey(ch.OrgSlug, ch.Slug), ch)
	return ch, nil
}

// ListIDs returns every channel ID in the store, used at startup to
// register each channel with the monitor loop.
func (s *SQLiteStore) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM channels`)
	if err != nil {
		return nil, fmt.Errorf("channelstore: list ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("channelstore: scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) store(key string, ch Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := cacheEntry{channel: ch, cachedAt: time.Now()}
	s.byKey[key] = entry
	s.byID[ch.ID] = entry
}

const selectColumns = `SELECT id, org_slug, slug, upstream_variant_base, ad_pod_base, sign_host,
	tier, scte35_auto_insert, time_based_auto_insert, mode,
	segment_cache_max_age, manifest_cache_max_age, slate_ref
FROM channels`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChannel(row rowScanner) (Channel, error) {
	var ch Channel
	var scte35Auto, timeAuto int
	var mode string
	err := row.Scan(
		&ch.ID, &ch.OrgSlug, &ch.Slug, &ch.UpstreamVariantBase, &ch.AdPodBase, &ch.SignHost,
		&ch.Tier, &scte35Auto, &timeAuto, &mode,
		&ch.SegmentCacheMaxAge, &ch.ManifestCacheMaxAge, &ch.SlateRef,
	)
	if err != nil {
		return Channel{}, err
	}
	ch.SCTE35AutoInsert = scte35Auto != 0
	ch.TimeBasedAutoInsert = timeAuto != 0
	ch.Mode = Mode(mode)
	return ch, nil
}

// UpsertChannel writes or replaces a channel row. Used by the admin
// surface and by tests; the manifest pipeline never calls this. Operator-
// supplied origin and ad-pod base URLs are validated at this boundary so
// a file:// or other non-http(s) scheme never reaches the fetch path.
func (s *SQLiteStore) UpsertChannel(ctx context.Context, ch Channel) error {
	if !safeurl.IsHTTPOrHTTPS(ch.UpstreamVariantBase) {
		return fmt.Errorf("channelstore: upstream_variant_base must be http(s): %q", ch.UpstreamVariantBase)
	}
	if !safeurl.IsHTTPOrHTTPS(ch.AdPodBase) {
		return fmt.Errorf("channelstore: ad_pod_base must be http(s): %q", ch.AdPodBase)
	}
	if ch.SignHost != "" && !safeurl.IsHTTPOrHTTPS(ch.SignHost) {
		return fmt.Errorf("channelstore: sign_host must be http(s): %q", ch.SignHost)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO channels (id, org_slug, slug, upstream_variant_base, ad_pod_base, sign_host,
			tier, scte35_auto_insert, time_based_auto_insert, mode,
			segment_cache_max_age, manifest_cache_max_age, slate_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			org_slug=excluded.org_slug, slug=excluded.slug,
			upstream_variant_base=excluded.upstream_variant_base, ad_pod_base=excluded.ad_pod_base,
			sign_host=excluded.sign_host, tier=excluded.tier,
			scte35_auto_insert=excluded.scte35_auto_insert, time_based_auto_insert=excluded.time_based_auto_insert,
			mode=excluded.mode, segment_cache_max_age=excluded.segment_cache_max_age,
			manifest_cache_max_age=excluded.manifest_cache_max_age, slate_ref=excluded.slate_ref
	`,
		ch.ID, ch.OrgSlug, ch.Slug, ch.UpstreamVariantBase, ch.AdPodBase, ch.SignHost,
		ch.Tier, boolToInt(ch.SCTE35AutoInsert), boolToInt(ch.TimeBasedAutoInsert), string(ch.Mode),
		ch.SegmentCacheMaxAge, ch.ManifestCacheMaxAge, ch.SlateRef,
	)
	if err != nil {
		return fmt.Errorf("channelstore: upsert channel %s: %w", ch.ID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
