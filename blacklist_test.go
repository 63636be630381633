package leadimage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/docutag/leadimage/models"
)

// fakeDB implements the DB interface in memory.
type fakeDB struct {
	links    map[string][]string
	linksErr error

	cacheEntries []string
	cacheAt      time.Time
	getErr       error

	putKey     string
	putEntries []string
	putTTL     time.Duration
	putCalls   int
	putErr     error
}

func (f *fakeDB) FileLinksByTitle(title string) ([]string, error) {
	if f.linksErr != nil {
		return nil, f.linksErr
	}
	return f.links[title], nil
}

func (f *fakeDB) GetBlacklistCache(key string) ([]string, time.Time, error) {
	if f.getErr != nil {
		return nil, time.Time{}, f.getErr
	}
	return f.cacheEntries, f.cacheAt, nil
}

func (f *fakeDB) PutBlacklistCache(key string, entries []string, expiry time.Duration) error {
	f.putCalls++
	f.putKey = key
	f.putEntries = entries
	f.putTTL = expiry
	return f.putErr
}

func TestBlacklistRemoteSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := `
Blacklisted images, one per line:
* [[:Banned image.jpg]] too promotional
* [[:another_one.PNG|some label]]
* [[:Not an image.txt]] wrong extension
Trailing text without references.
`
		w.Write([]byte(body))
	}))
	defer server.Close()

	config := DefaultConfig()
	config.BlacklistSources = []models.BlacklistSource{
		{Kind: models.BlacklistSourceRemote, URL: server.URL},
	}
	s := New(config, nil)

	set, err := s.Blacklist(context.Background())
	if err != nil {
		t.Fatalf("Blacklist failed: %v", err)
	}

	if len(set) != 2 {
		t.Errorf("Blacklist has %d entries, want 2: %v", len(set), set)
	}
	if _, ok := set["Banned_image.jpg"]; !ok {
		t.Error("Expected Banned_image.jpg in blacklist")
	}
	if _, ok := set["Another_one.PNG"]; !ok {
		t.Error("Expected Another_one.PNG in blacklist (extension match is case-insensitive)")
	}
	if _, ok := set["Not_an_image.txt"]; ok {
		t.Error("Unexpected non-image entry in blacklist")
	}
}

func TestBlacklistRemoteFailure(t *testing.T) {
	tests := []struct {
		name string
		url  func(t *testing.T) string
	}{
		{
			name: "server error status",
			url: func(t *testing.T) string {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusInternalServerError)
				}))
				t.Cleanup(server.Close)
				return server.URL
			},
		},
		{
			name: "unreachable host",
			url: func(t *testing.T) string {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
				server.Close()
				return server.URL
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.BlacklistSources = []models.BlacklistSource{
				{Kind: models.BlacklistSourceRemote, URL: tt.url(t)},
			}
			s := New(config, nil)

			set, err := s.Blacklist(context.Background())
			if err != nil {
				t.Fatalf("Fetch failure must not error the blacklist: %v", err)
			}
			if len(set) != 0 {
				t.Errorf("Blacklist has %d entries, want 0", len(set))
			}
		})
	}
}

func TestBlacklistUnknownSourceKind(t *testing.T) {
	config := DefaultConfig()
	config.BlacklistSources = []models.BlacklistSource{
		{Kind: "mystery"},
	}
	s := New(config, nil)

	_, err := s.Blacklist(context.Background())
	if err == nil {
		t.Fatal("Expected error for unrecognized source kind, got nil")
	}
	t.Logf("Got expected error: %v", err)

	// A configuration error is not memoized away; it repeats.
	_, err = s.Blacklist(context.Background())
	if err == nil {
		t.Fatal("Expected the configuration error to repeat on the next call")
	}
}

func TestBlacklistMemoized(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("[[:Once.jpg]]"))
	}))
	defer server.Close()

	config := DefaultConfig()
	config.BlacklistSources = []models.BlacklistSource{
		{Kind: models.BlacklistSourceRemote, URL: server.URL},
	}
	s := New(config, nil)

	for i := 0; i < 3; i++ {
		set, err := s.Blacklist(context.Background())
		if err != nil {
			t.Fatalf("Blacklist call %d failed: %v", i, err)
		}
		if _, ok := set["Once.jpg"]; !ok {
			t.Fatalf("Blacklist call %d missing entry", i)
		}
	}

	if hits != 1 {
		t.Errorf("Remote source fetched %d times, want 1 (memoized)", hits)
	}
}

func TestBlacklistInternalSource(t *testing.T) {
	db := &fakeDB{
		links: map[string][]string{
			"Blacklisted images": {"File:bad one.jpg", "worse.png"},
		},
	}

	config := DefaultConfig()
	config.BlacklistSources = []models.BlacklistSource{
		{Kind: models.BlacklistSourceInternal, PageTitle: "Blacklisted images"},
	}
	s := New(config, db)

	set, err := s.Blacklist(context.Background())
	if err != nil {
		t.Fatalf("Blacklist failed: %v", err)
	}

	if _, ok := set["Bad_one.jpg"]; !ok {
		t.Error("Expected Bad_one.jpg in blacklist")
	}
	if _, ok := set["Worse.png"]; !ok {
		t.Error("Expected Worse.png in blacklist")
	}
}

func TestBlacklistInternalSourceWithoutDB(t *testing.T) {
	config := DefaultConfig()
	config.BlacklistSources = []models.BlacklistSource{
		{Kind: models.BlacklistSourceInternal, PageTitle: "Blacklisted images"},
	}
	s := New(config, nil)

	set, err := s.Blacklist(context.Background())
	if err != nil {
		t.Fatalf("Blacklist failed: %v", err)
	}
	if len(set) != 0 {
		t.Errorf("Blacklist has %d entries, want 0 without a database", len(set))
	}
}

func TestBlacklistInternalSourceQueryError(t *testing.T) {
	db := &fakeDB{linksErr: errors.New("connection refused")}

	config := DefaultConfig()
	config.BlacklistSources = []models.BlacklistSource{
		{Kind: models.BlacklistSourceInternal, PageTitle: "Blacklisted images"},
	}
	s := New(config, db)

	set, err := s.Blacklist(context.Background())
	if err != nil {
		t.Fatalf("Query failure must not error the blacklist: %v", err)
	}
	if len(set) != 0 {
		t.Errorf("Blacklist has %d entries, want 0", len(set))
	}
}

func TestBlacklistDurableCacheHit(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("[[:Fresh.jpg]]"))
	}))
	defer server.Close()

	db := &fakeDB{
		cacheEntries: []string{"Cached.jpg"},
		cacheAt:      time.Now().Add(-time.Minute),
	}

	config := DefaultConfig()
	config.BlacklistSources = []models.BlacklistSource{
		{Kind: models.BlacklistSourceRemote, URL: server.URL},
	}
	s := New(config, db)

	set, err := s.Blacklist(context.Background())
	if err != nil {
		t.Fatalf("Blacklist failed: %v", err)
	}

	if _, ok := set["Cached.jpg"]; !ok {
		t.Error("Expected the cached entry to be used")
	}
	if hits != 0 {
		t.Errorf("Remote source fetched %d times, want 0 on a cache hit", hits)
	}
	if db.putCalls != 0 {
		t.Errorf("Cache written %d times on a hit, want 0", db.putCalls)
	}
}

func TestBlacklistCacheMissBuildsAndWritesBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[[:Built.jpg]]"))
	}))
	defer server.Close()

	db := &fakeDB{} // zero cacheAt signals a miss

	config := DefaultConfig()
	config.BlacklistTTL = 20 * time.Minute
	config.BlacklistSources = []models.BlacklistSource{
		{Kind: models.BlacklistSourceRemote, URL: server.URL},
	}
	s := New(config, db)

	set, err := s.Blacklist(context.Background())
	if err != nil {
		t.Fatalf("Blacklist failed: %v", err)
	}

	if _, ok := set["Built.jpg"]; !ok {
		t.Error("Expected the freshly built entry")
	}
	if db.putCalls != 1 {
		t.Fatalf("Cache written %d times, want 1", db.putCalls)
	}
	if db.putKey != blacklistCacheKey {
		t.Errorf("Cache key = %q, want %q", db.putKey, blacklistCacheKey)
	}
	if db.putTTL != 20*time.Minute {
		t.Errorf("Cache TTL = %v, want 20m", db.putTTL)
	}
	if len(db.putEntries) != 1 || db.putEntries[0] != "Built.jpg" {
		t.Errorf("Cached entries = %v, want [Built.jpg]", db.putEntries)
	}
}

func TestBlacklistCacheWriteFailureNonFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[[:Survivor.jpg]]"))
	}))
	defer server.Close()

	db := &fakeDB{putErr: errors.New("disk full")}

	config := DefaultConfig()
	config.BlacklistSources = []models.BlacklistSource{
		{Kind: models.BlacklistSourceRemote, URL: server.URL},
	}
	s := New(config, db)

	set, err := s.Blacklist(context.Background())
	if err != nil {
		t.Fatalf("Cache write failure must not error the blacklist: %v", err)
	}
	if _, ok := set["Survivor.jpg"]; !ok {
		t.Error("Expected the built entry despite the failed cache write")
	}
}

func TestBlacklistMergesSourcesInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[[:Dup.jpg]] [[:Remote only.png]]"))
	}))
	defer server.Close()

	db := &fakeDB{
		links: map[string][]string{
			"Blacklist": {"Internal first.jpg", "Dup.jpg"},
		},
	}

	config := DefaultConfig()
	config.BlacklistSources = []models.BlacklistSource{
		{Kind: models.BlacklistSourceInternal, PageTitle: "Blacklist"},
		{Kind: models.BlacklistSourceRemote, URL: server.URL},
	}
	s := New(config, db)

	if _, err := s.Blacklist(context.Background()); err != nil {
		t.Fatalf("Blacklist failed: %v", err)
	}

	// The durable cache write preserves merge order and deduplication.
	want := []string{"Internal_first.jpg", "Dup.jpg", "Remote_only.png"}
	if len(db.putEntries) != len(want) {
		t.Fatalf("Cached %d entries, want %d: %v", len(db.putEntries), len(want), db.putEntries)
	}
	for i, entry := range want {
		if db.putEntries[i] != entry {
			t.Errorf("Entry %d = %q, want %q", i, db.putEntries[i], entry)
		}
	}
}

func TestSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[[:Zebra.jpg]] [[:Apple.jpg]] [[:Mango.png]]"))
	}))
	defer server.Close()

	config := DefaultConfig()
	config.BlacklistSources = []models.BlacklistSource{
		{Kind: models.BlacklistSourceRemote, URL: server.URL},
	}
	s := New(config, nil)

	snap, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if snap.Count != 3 || len(snap.Entries) != 3 {
		t.Fatalf("Count = %d with %d entries, want 3", snap.Count, len(snap.Entries))
	}
	want := []string{"Apple.jpg", "Mango.png", "Zebra.jpg"}
	for i, entry := range want {
		if snap.Entries[i] != entry {
			t.Errorf("Entry %d = %q, want %q (sorted)", i, snap.Entries[i], entry)
		}
	}
	if snap.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}
}

func TestFinalizeChoosesAndReports(t *testing.T) {
	s := New(DefaultConfig(), nil)

	st := s.NewRender(7, 0)
	s.Record(st, Placement{FileKey: "Lead.jpg", DeclaredWidth: intPtr(400), FullWidth: 1200, FullHeight: 800})
	s.Record(st, Placement{FileKey: "Side.jpg", DeclaredWidth: intPtr(100), FullWidth: 200, FullHeight: 200})

	key, score, ok, err := s.Finalize(context.Background(), st)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected a selection, got none")
	}
	if key != "Lead.jpg" {
		t.Errorf("Selected %q, want Lead.jpg", key)
	}
	if score <= 0 {
		t.Errorf("Score = %d, want > 0", score)
	}
	t.Logf("Selected %q with score %d", key, score)
}

func TestFinalizeIneligibleRender(t *testing.T) {
	// Ineligible renders finish without consulting the blacklist, so a
	// broken source configuration does not surface here.
	config := DefaultConfig()
	config.BlacklistSources = []models.BlacklistSource{{Kind: "mystery"}}
	s := New(config, nil)

	st := s.NewRender(7, 3)
	s.Record(st, Placement{FileKey: "Ignored.jpg", FullWidth: 800, FullHeight: 600})

	key, score, ok, err := s.Finalize(context.Background(), st)
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if ok || key != "" || score != 0 {
		t.Errorf("Got (%q, %d, %v), want no selection", key, score, ok)
	}
}

func TestFinalizeBlacklistErrorSurfaces(t *testing.T) {
	config := DefaultConfig()
	config.BlacklistSources = []models.BlacklistSource{{Kind: "mystery"}}
	s := New(config, nil)

	st := s.NewRender(7, 0)
	s.Record(st, Placement{FileKey: "Candidate.jpg", DeclaredWidth: intPtr(400), FullWidth: 1200, FullHeight: 800})

	_, _, _, err := s.Finalize(context.Background(), st)
	if err == nil {
		t.Fatal("Expected a configuration error from Finalize")
	}
	t.Logf("Got expected error: %v", err)
}
