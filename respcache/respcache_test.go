package respcache

import (
	"context"
	"testing"
	"time"

	searchfn "github.com/searchfn/searchfn-go"
)

func openTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	cache, err := Open(t.TempDir(), opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		if err := cache.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return cache
}

func TestCache_PutGetRoundTrip(t *testing.T) {
	cache := openTestCache(t, Options{})

	params := searchfn.QueryParams{ProjectID: "proj-1", NaturalLanguageQuery: "solar"}
	stored := searchfn.QueryResponse{
		MatchingResults: 2,
		Results: []searchfn.QueryResult{
			{DocumentID: "doc-1", Title: "Solar"},
			{DocumentID: "doc-2", Title: "Panels"},
		},
	}
	if err := cache.Put("search", params, &stored); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var loaded searchfn.QueryResponse
	hit, err := cache.Get("search", params, &loaded)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatal("Expected a cache hit")
	}
	if loaded.MatchingResults != 2 || len(loaded.Results) != 2 || loaded.Results[0].DocumentID != "doc-1" {
		t.Errorf("Unexpected cached response: %+v", loaded)
	}
}

func TestCache_MissOnDifferentParams(t *testing.T) {
	cache := openTestCache(t, Options{})

	if err := cache.Put("search", searchfn.QueryParams{NaturalLanguageQuery: "solar"}, &searchfn.QueryResponse{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var loaded searchfn.QueryResponse
	hit, err := cache.Get("search", searchfn.QueryParams{NaturalLanguageQuery: "wind"}, &loaded)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Error("Different parameters must not hit")
	}

	// Same parameters under a different operation miss too
	hit, err = cache.Get("documents", searchfn.QueryParams{NaturalLanguageQuery: "solar"}, &loaded)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Error("Different operation must not hit")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	cache := openTestCache(t, Options{TTL: 30 * time.Millisecond})

	params := searchfn.QueryParams{NaturalLanguageQuery: "solar"}
	if err := cache.Put("search", params, &searchfn.QueryResponse{MatchingResults: 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var loaded searchfn.QueryResponse
	hit, err := cache.Get("search", params, &loaded)
	if err != nil || !hit {
		t.Fatalf("Expected fresh hit, got hit=%v err=%v", hit, err)
	}

	time.Sleep(60 * time.Millisecond)

	hit, err = cache.Get("search", params, &loaded)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Error("Expired entry must miss")
	}
}

func TestCache_PurgeDropsExpiredOnly(t *testing.T) {
	cache := openTestCache(t, Options{TTL: 30 * time.Millisecond})

	if err := cache.Put("search", searchfn.QueryParams{NaturalLanguageQuery: "old"}, &searchfn.QueryResponse{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	if err := cache.Put("search", searchfn.QueryParams{NaturalLanguageQuery: "new"}, &searchfn.QueryResponse{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	removed, err := cache.Purge()
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 expired entry purged, got %d", removed)
	}

	var loaded searchfn.QueryResponse
	hit, err := cache.Get("search", searchfn.QueryParams{NaturalLanguageQuery: "new"}, &loaded)
	if err != nil || !hit {
		t.Errorf("Fresh entry must survive purge, got hit=%v err=%v", hit, err)
	}
}

func TestCache_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	cache, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	params := searchfn.QueryParams{NaturalLanguageQuery: "solar"}
	if err := cache.Put("search", params, &searchfn.QueryResponse{MatchingResults: 7}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	var loaded searchfn.QueryResponse
	hit, err := reopened.Get("search", params, &loaded)
	if err != nil || !hit {
		t.Fatalf("Expected hit after reopen, got hit=%v err=%v", hit, err)
	}
	if loaded.MatchingResults != 7 {
		t.Errorf("Expected persisted response, got %+v", loaded)
	}
}

func TestCache_UseAfterClose(t *testing.T) {
	cache, err := Open(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := cache.Put("search", searchfn.QueryParams{}, &searchfn.QueryResponse{}); err == nil {
		t.Error("Expected Put on closed cache to fail")
	}
}

func TestExtension_CachesAcceptedSettlements(t *testing.T) {
	cache := openTestCache(t, Options{})

	scope := searchfn.NewScope(searchfn.WithExtension(NewExtension(cache)))
	defer scope.Dispose()

	coord := searchfn.NewCoordinator(scope, "search", func(ctx context.Context, params searchfn.QueryParams) (*searchfn.QueryResponse, error) {
		return &searchfn.QueryResponse{MatchingResults: 5}, nil
	})
	coord.SetParameters(func(p searchfn.QueryParams) searchfn.QueryParams {
		p.NaturalLanguageQuery = "solar"
		return p
	})

	req := coord.Fetch(context.Background())
	if _, err := req.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if req.Outcome() != searchfn.OutcomeAccepted {
		t.Fatalf("Expected accepted settlement, got %v", req.Outcome())
	}

	var loaded searchfn.QueryResponse
	hit, err := cache.Get("search", searchfn.QueryParams{NaturalLanguageQuery: "solar"}, &loaded)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit || loaded.MatchingResults != 5 {
		t.Errorf("Expected cached settlement, got hit=%v resp=%+v", hit, loaded)
	}
}

func TestExtension_FiltersCoordinators(t *testing.T) {
	cache := openTestCache(t, Options{})

	scope := searchfn.NewScope(searchfn.WithExtension(NewExtension(cache, "search")))
	defer scope.Dispose()

	fields := searchfn.NewCoordinator(scope, "fields", func(ctx context.Context, params searchfn.ListFieldsParams) (*searchfn.FieldList, error) {
		return &searchfn.FieldList{}, nil
	})

	req := fields.Fetch(context.Background())
	if _, err := req.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	var loaded searchfn.FieldList
	hit, err := cache.Get("fields", searchfn.ListFieldsParams{}, &loaded)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if hit {
		t.Error("Unlisted coordinator must not be cached")
	}
}

func TestWarm_SeedsCoordinatorFromCache(t *testing.T) {
	cache := openTestCache(t, Options{})

	params := searchfn.QueryParams{ProjectID: "proj-1", NaturalLanguageQuery: "solar"}
	if err := cache.Put("search", params, &searchfn.QueryResponse{MatchingResults: 9}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	scope := searchfn.NewScope()
	defer scope.Dispose()

	coord := searchfn.NewCoordinator(scope, "search", func(ctx context.Context, p searchfn.QueryParams) (*searchfn.QueryResponse, error) {
		return &searchfn.QueryResponse{}, nil
	})
	coord.SetParameters(func(searchfn.QueryParams) searchfn.QueryParams { return params })

	seeded, err := Warm(cache, coord)
	if err != nil {
		t.Fatalf("Warm failed: %v", err)
	}
	if !seeded {
		t.Fatal("Expected a warm hit")
	}

	data := coord.Store().Data()
	if data == nil || data.MatchingResults != 9 {
		t.Errorf("Expected seeded store, got %+v", data)
	}
	if coord.Store().IsLoading() || coord.Store().IsError() {
		t.Error("Warm must not disturb the flags")
	}
}

func TestWarm_MissLeavesStoreAlone(t *testing.T) {
	cache := openTestCache(t, Options{})

	scope := searchfn.NewScope()
	defer scope.Dispose()

	coord := searchfn.NewCoordinator(scope, "search", func(ctx context.Context, p searchfn.QueryParams) (*searchfn.QueryResponse, error) {
		return &searchfn.QueryResponse{}, nil
	})

	seeded, err := Warm(cache, coord)
	if err != nil {
		t.Fatalf("Warm failed: %v", err)
	}
	if seeded {
		t.Error("Expected a miss on an empty cache")
	}
	if coord.Store().Data() != nil {
		t.Error("Miss must not seed the store")
	}
}
