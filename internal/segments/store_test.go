package segments

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"media-insights-go/internal/config"
	"media-insights-go/internal/types"
)

func openTestSQLite(t *testing.T) Store {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "segments.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleSegments() []types.Segment {
	return []types.Segment{
		{StartSeconds: 0, EndSeconds: 4.2, Text: "Welcome to the quarterly webinar"},
		{StartSeconds: 4.2, EndSeconds: 9.8, Text: "We cut onboarding time by 40%"},
		{StartSeconds: 9.8, EndSeconds: 15, Text: "Questions about PRICING come next"},
	}
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	asset := "asset-" + time.Now().Format("150405.000000000")

	if err := store.ReplaceSegments(ctx, asset, sampleSegments()); err != nil {
		t.Fatalf("ReplaceSegments: %v", err)
	}
	got, err := store.ListSegments(ctx, asset)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(ListSegments) = %d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].StartSeconds < got[i-1].StartSeconds {
			t.Fatalf("segments not ordered by start: %+v", got)
		}
	}
	if got[0].AssetID != asset {
		t.Fatalf("AssetID = %q, want %q", got[0].AssetID, asset)
	}

	hits, err := store.Search(ctx, asset, "pricing", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].StartSeconds != 9.8 {
		t.Fatalf("Search(pricing) = %+v, want the 9.8s segment", hits)
	}

	// Replacement discards the previous set entirely.
	next := []types.Segment{{StartSeconds: 1, EndSeconds: 2, Text: "only one now"}}
	if err := store.ReplaceSegments(ctx, asset, next); err != nil {
		t.Fatalf("ReplaceSegments again: %v", err)
	}
	got, err = store.ListSegments(ctx, asset)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(got) != 1 || got[0].Text != "only one now" {
		t.Fatalf("after replace = %+v, want single new segment", got)
	}

	// Empty replacement clears the asset.
	if err := store.ReplaceSegments(ctx, asset, nil); err != nil {
		t.Fatalf("ReplaceSegments(nil): %v", err)
	}
	got, _ = store.ListSegments(ctx, asset)
	if len(got) != 0 {
		t.Fatalf("after clear = %+v, want none", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, openTestSQLite(t))
}

func TestSQLiteStoreIsolatesAssets(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	if err := store.ReplaceSegments(ctx, "a", sampleSegments()); err != nil {
		t.Fatal(err)
	}
	if err := store.ReplaceSegments(ctx, "b", sampleSegments()[:1]); err != nil {
		t.Fatal(err)
	}
	a, _ := store.ListSegments(ctx, "a")
	b, _ := store.ListSegments(ctx, "b")
	if len(a) != 3 || len(b) != 1 {
		t.Fatalf("len(a)=%d len(b)=%d, want 3 and 1", len(a), len(b))
	}
}

func TestSQLiteStoreConcurrentReplaceNeverMixes(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	setA := []types.Segment{{StartSeconds: 0, EndSeconds: 1, Text: "A"}, {StartSeconds: 1, EndSeconds: 2, Text: "A"}}
	setB := []types.Segment{{StartSeconds: 0, EndSeconds: 1, Text: "B"}, {StartSeconds: 1, EndSeconds: 2, Text: "B"}, {StartSeconds: 2, EndSeconds: 3, Text: "B"}}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _ = store.ReplaceSegments(ctx, "shared", setA) }()
		go func() { defer wg.Done(); _ = store.ReplaceSegments(ctx, "shared", setB) }()
	}
	wg.Wait()

	got, err := store.ListSegments(ctx, "shared")
	if err != nil {
		t.Fatal(err)
	}
	switch len(got) {
	case 2, 3:
	default:
		t.Fatalf("len = %d, want a complete set of 2 or 3", len(got))
	}
	for _, s := range got {
		if s.Text != got[0].Text {
			t.Fatalf("mixed segment sets: %+v", got)
		}
	}
}

func TestSQLiteSearchEscapesWildcards(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()
	segs := []types.Segment{
		{StartSeconds: 0, Text: "growth of 40% year over year"},
		{StartSeconds: 1, Text: "growth of 400 customers"},
	}
	if err := store.ReplaceSegments(ctx, "x", segs); err != nil {
		t.Fatal(err)
	}
	hits, err := store.Search(ctx, "x", "40%", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].StartSeconds != 0 {
		t.Fatalf("Search(40%%) = %+v, want only the literal match", hits)
	}
}

func TestSQLiteSearchFoldsNonASCII(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()
	segs := []types.Segment{
		{StartSeconds: 0, Text: "Équipe ÜBER Straße"},
		{StartSeconds: 1, Text: "plain ascii"},
	}
	if err := store.ReplaceSegments(ctx, "x", segs); err != nil {
		t.Fatal(err)
	}
	for _, q := range []string{"équipe", "über", "Équipe", "straße"} {
		hits, err := store.Search(ctx, "x", q, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(hits) != 1 || hits[0].StartSeconds != 0 {
			t.Fatalf("Search(%q) = %+v, want the accented segment", q, hits)
		}
		if got := filterSegments(segs, q, 0); len(got) != len(hits) {
			t.Fatalf("filterSegments(%q) = %d hits, sqlite = %d", q, len(got), len(hits))
		}
	}
}

func TestSearchLimit(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()
	if err := store.ReplaceSegments(ctx, "x", sampleSegments()); err != nil {
		t.Fatal(err)
	}
	hits, err := store.Search(ctx, "x", "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("len = %d, want 2", len(hits))
	}
}

func TestRequiresAssetID(t *testing.T) {
	store := openTestSQLite(t)
	if err := store.ReplaceSegments(context.Background(), " ", sampleSegments()); err == nil {
		t.Fatal("expected error for blank asset id")
	}
}

func TestFilterSegments(t *testing.T) {
	segs := sampleSegments()
	if got := filterSegments(segs, "WEBINAR", 0); len(got) != 1 {
		t.Fatalf("filterSegments(WEBINAR) = %+v", got)
	}
	if got := filterSegments(segs, "", 2); len(got) != 2 {
		t.Fatalf("filterSegments limit = %d, want 2", len(got))
	}
}

func TestOpenDispatch(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.Config{SegmentBackend: "none"})
	if err != nil {
		t.Fatalf("Open(none): %v", err)
	}
	if _, ok := s.(Discard); !ok {
		t.Fatalf("Open(none) = %T, want Discard", s)
	}

	if _, err := Open(ctx, config.Config{SegmentBackend: "cassandra"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}

	s, err = Open(ctx, config.Config{SegmentBackend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "nested", "seg.db")})
	if err != nil {
		t.Fatalf("Open(sqlite): %v", err)
	}
	_ = s.Close()
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	store, err := OpenPostgres(context.Background(), PostgresConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	store, err := OpenMongo(context.Background(), MongoConfig{URI: uri, Database: "media_insights_test", Collection: "segments"})
	if err != nil {
		t.Fatalf("OpenMongo: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}
