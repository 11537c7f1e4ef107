package channelstore

import (
	"context"
	"testing"
)

func testChannel() Channel {
	return Channel{
		ID:                  "ch1",
		OrgSlug:             "acme",
		Slug:                "news24",
		UpstreamVariantBase: "https://origin.example.com/acme/news24/",
		AdPodBase:           "https://ads.example.com/pods/",
		Tier:                1,
		SCTE35AutoInsert:    true,
		Mode:                ModeAuto,
		SegmentCacheMaxAge:  6,
		ManifestCacheMaxAge: 1,
	}
}

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_upsertAndByOrgSlug(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ch := testChannel()
	if err := s.UpsertChannel(ctx, ch); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}

	got, err := s.ByOrgSlug(ctx, "acme", "news24")
	if err != nil {
		t.Fatalf("ByOrgSlug: %v", err)
	}
	if got != ch {
		t.Errorf("got %+v, want %+v", got, ch)
	}
}

func TestSQLiteStore_byID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ch := testChannel()
	if err := s.UpsertChannel(ctx, ch); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}

	got, err := s.ByID(ctx, "ch1")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if got != ch {
		t.Errorf("got %+v, want %+v", got, ch)
	}
}

func TestSQLiteStore_notFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.ByOrgSlug(ctx, "nobody", "nothing"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.ByID(ctx, "absent"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_upsertReplacesExisting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ch := testChannel()
	if err := s.UpsertChannel(ctx, ch); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}
	ch.Tier = 2
	ch.Mode = ModeSSAI
	if err := s.UpsertChannel(ctx, ch); err != nil {
		t.Fatalf("UpsertChannel (update): %v", err)
	}

	got, err := s.ByOrgSlug(ctx, "acme", "news24")
	if err != nil {
		t.Fatalf("ByOrgSlug: %v", err)
	}
	if got.Tier != 2 || got.Mode != ModeSSAI {
		t.Errorf("update did not take effect: %+v", got)
	}
}

func TestSQLiteStore_cacheServesStaleWithinTTL(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ch := testChannel()
	if err := s.UpsertChannel(ctx, ch); err != nil {
		t.Fatalf("UpsertChannel: %v", err)
	}
	if _, err := s.ByOrgSlug(ctx, "acme", "news24"); err != nil {
		t.Fatalf("first ByOrgSlug: %v", err)
	}

	ch.Tier = 9
	if err := s.UpsertChannel(ctx, ch); err != nil {
		t.Fatalf("UpsertChannel (update): %v", err)
	}

	got, err := s.ByOrgSlug(ctx, "acme", "news24")
	if err != nil {
		t.Fatalf("second ByOrgSlug: %v", err)
	}
	if got.Tier == 9 {
		t.Errorf("expected cached entry within TTL, got fresh read reflecting update")
	}
}

func TestSQLiteStore_upsertRejectsNonHTTPUpstreamBase(t *testing.T) {
	s := openTestStore(t)
	ch := testChannel()
	ch.UpstreamVariantBase = "file:///etc/passwd"
	if err := s.UpsertChannel(context.Background(), ch); err == nil {
		t.Fatal("expected UpsertChannel to reject a non-http(s) upstream_variant_base")
	}
}

func TestSQLiteStore_upsertRejectsNonHTTPAdPodBase(t *testing.T) {
	s := openTestStore(t)
	ch := testChannel()
	ch.AdPodBase = "ftp://ads.example.com/pods/"
	if err := s.UpsertChannel(context.Background(), ch); err == nil {
		t.Fatal("expected UpsertChannel to reject a non-http(s) ad_pod_base")
	}
}

func TestSQLiteStore_upsertRejectsNonHTTPSignHost(t *testing.T) {
	s := openTestStore(t)
	ch := testChannel()
	ch.SignHost = "javascript:alert(1)"
	if err := s.UpsertChannel(context.Background(), ch); err == nil {
		t.Fatal("expected UpsertChannel to reject a non-http(s) sign_host")
	}
}
