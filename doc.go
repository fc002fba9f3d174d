// Package searchfn coordinates the fetch state of a search UI: issuing
// calls against a search service, de-duplicating overlapping requests and
// settling results into per-operation stores.
//
// # Overview
//
// Searchfn organizes code around three core concepts:
//
//  1. Stores: Per-operation state cells holding {data, isLoading, isError, parameters}
//  2. Coordinators: Issuers of fetches that settle results into their store
//  3. Scopes: Lifecycle managers that own coordinators, extensions and teardown
//
// The rule that holds everything together is last-issued-wins: every fetch
// mints a monotonically increasing token, and a settlement is applied only
// if its token is still the latest for that coordinator and the scope is
// still live. Everything else is dropped silently, without touching the
// store and without surfacing an error.
//
// # Basic Usage
//
// Build a session over a search client and drive it:
//
//	scope := searchfn.NewScope()
//	defer scope.Dispose()
//
//	client := searchfn.NewHTTPClient("https://api.example.com",
//	    searchfn.WithAuthorization(func(req *http.Request) {
//	        req.SetBasicAuth("apikey", apiKey)
//	    }),
//	)
//
//	session, err := searchfn.NewSession(scope, client, searchfn.SessionConfig{
//	    ProjectID: "my-project",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	req := session.PerformSearch(ctx, "solar panels")
//	<-req.Done()
//
//	if data := session.Search.Store().Data(); data != nil {
//	    fmt.Printf("%d results\n", data.MatchingResults)
//	}
//
// # Stores
//
// Each coordinator owns a store; reads return copies and watchers observe
// applied changes synchronously:
//
//	store := session.Search.Store()
//
//	snap := store.Snapshot()          // full copy of the current state
//	data := store.Data()              // latest accepted response, or nil
//	loading := store.IsLoading()
//
//	cleanup := store.Subscribe(func(snap searchfn.Snapshot[searchfn.QueryParams, searchfn.QueryResponse]) {
//	    render(snap)
//	})
//	defer cleanup()
//
// # Coordinators
//
// Coordinators expose the three mutations a search surface needs. Fetch
// flips the store into its loading state before returning and settles
// asynchronously; SetParameters and SetResponse are synchronous:
//
//	// merge new parameters over the current ones; no fetch is issued
//	session.Search.SetParameters(func(p searchfn.QueryParams) searchfn.QueryParams {
//	    p.Count = 20
//	    return p
//	})
//
//	// inject a server-rendered response without fetching
//	session.Search.SetResponse(prefetched)
//
//	// issue a call; the handle settles exactly once
//	req := session.Search.Fetch(ctx)
//	outcome, _ := req.Wait(ctx)
//
// A fetch that loses the race settles as OutcomeSuperseded and leaves the
// store exactly as the winner wrote it. Failures settle as OutcomeFailed
// and flip IsError; they are never returned from Fetch and never panic.
//
// # Sessions
//
// Session bundles the coordinators of one search surface: search results,
// document lookups, aggregations, completions, collections, component
// settings and fields. Clients are probed for the operations they
// implement; a client without GetAutocompletion simply yields a session
// without an Autocomplete coordinator:
//
//	caps := session.Capabilities()
//	if session.AutocompletionEnabled() {
//	    session.FetchAutocompletions(ctx, "sol")
//	}
//
// # Scopes and Teardown
//
// Disposing a scope cancels the base context shared by in-flight calls and
// permanently silences every store. Settlements arriving after disposal are
// dropped: no store mutation, no callbacks, no diagnostics. Cleanups run in
// reverse registration order:
//
//	scope.OnCleanup(func() error {
//	    return cache.Close()
//	})
//	scope.Dispose()
//
// # Extensions
//
// Extensions hook the fetch lifecycle for cross-cutting concerns. Wrap
// intercepts the external call; OnSettle and OnDiscard observe how requests
// ended:
//
//	type timing struct {
//	    searchfn.BaseExtension
//	}
//
//	func (e *timing) Wrap(ctx context.Context, next func() (any, error), op *searchfn.Operation) (any, error) {
//	    start := time.Now()
//	    result, err := next()
//	    log.Printf("%s took %v", op.Coordinator.Name(), time.Since(start))
//	    return result, err
//	}
//
//	scope := searchfn.NewScope(
//	    searchfn.WithExtension(&timing{BaseExtension: searchfn.NewBaseExtension("timing")}),
//	)
//
// # Request History
//
// Scopes record issued requests in a bounded history for debugging:
//
//	failed := scope.History().Filter(func(req *searchfn.Request) bool {
//	    return req.Outcome() == searchfn.OutcomeFailed
//	})
//
// # Thread Safety
//
// All operations are thread-safe:
//   - Stores can be read and subscribed from multiple goroutines
//   - Coordinators serialize mutation per store; mint order is apply order
//   - Dispose may race in-flight settlements; they either apply before it
//     returns or are dropped
package searchfn
