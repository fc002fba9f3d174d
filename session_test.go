package searchfn

import (
	"context"
	"sync"
	"testing"
)

type queryOnlyClient struct {
	mu      sync.Mutex
	queries []QueryParams
	resp    *QueryResponse
}

var _ Querier = (*queryOnlyClient)(nil)

func (c *queryOnlyClient) Query(ctx context.Context, params QueryParams) (*QueryResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, params)
	if c.resp != nil {
		return c.resp, nil
	}
	return &QueryResponse{}, nil
}

func (c *queryOnlyClient) lastQuery() QueryParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queries) == 0 {
		return QueryParams{}
	}
	return c.queries[len(c.queries)-1]
}

type fullClient struct {
	queryOnlyClient

	fmu         sync.Mutex
	completions []AutocompletionParams
	collections int
	settings    int
	fields      int
}

var _ SearchClient = (*fullClient)(nil)

func (c *fullClient) GetAutocompletion(ctx context.Context, params AutocompletionParams) (*Completions, error) {
	c.fmu.Lock()
	defer c.fmu.Unlock()
	c.completions = append(c.completions, params)
	return &Completions{Completions: []string{params.Prefix + "ar"}}, nil
}

func (c *fullClient) ListCollections(ctx context.Context, params ListCollectionsParams) (*CollectionList, error) {
	c.fmu.Lock()
	c.collections++
	c.fmu.Unlock()
	return &CollectionList{Collections: []Collection{{CollectionID: "col-1", Name: "Articles"}}}, nil
}

func (c *fullClient) GetComponentSettings(ctx context.Context, params ComponentSettingsParams) (*ComponentSettings, error) {
	c.fmu.Lock()
	c.settings++
	c.fmu.Unlock()
	return &ComponentSettings{ResultsPerPage: 10}, nil
}

func (c *fullClient) ListFields(ctx context.Context, params ListFieldsParams) (*FieldList, error) {
	c.fmu.Lock()
	c.fields++
	c.fmu.Unlock()
	return &FieldList{Fields: []Field{{Field: "title", Type: "string"}}}, nil
}

func TestNewSession_RequiresQuerier(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	_, err := NewSession(scope, struct{}{}, SessionConfig{ProjectID: "p"})
	if err == nil {
		t.Fatal("Expected error for a client without Query")
	}
}

func TestNewSession_ProbesCapabilities(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	session, err := NewSession(scope, &queryOnlyClient{}, SessionConfig{ProjectID: "p"})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	caps := session.Capabilities()
	if !caps.Query {
		t.Error("Expected query capability")
	}
	if caps.Autocompletion || caps.Collections || caps.ComponentSettings || caps.Fields {
		t.Errorf("Expected no extra capabilities, got %+v", caps)
	}
	if session.Autocomplete != nil || session.Collections != nil || session.Settings != nil || session.Fields != nil {
		t.Error("Expected nil coordinators for unsupported operations")
	}
	if session.Search == nil || session.Documents == nil || session.Aggregations == nil {
		t.Error("Expected query-backed coordinators present")
	}
}

func TestNewSession_SeedsStores(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	seeded := &QueryResponse{MatchingResults: 99}
	session, err := NewSession(scope, &fullClient{}, SessionConfig{
		ProjectID:       "proj-1",
		QueryParameters: &QueryParams{Count: 12},
		SearchResults:   seeded,
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	params := session.Search.Store().Parameters()
	if params.ProjectID != "proj-1" {
		t.Errorf("Expected project stamped onto search parameters, got %q", params.ProjectID)
	}
	if params.Count != 12 {
		t.Errorf("Expected overridden count 12, got %d", params.Count)
	}

	if data := session.Search.Store().Data(); data == nil || data.MatchingResults != 99 {
		t.Errorf("Expected seeded search results, got %+v", data)
	}
	if session.Search.Store().IsLoading() {
		t.Error("Seeding must not flip the loading flag")
	}

	if got := session.Documents.Store().Parameters().ProjectID; got != "proj-1" {
		t.Errorf("Expected project on documents store, got %q", got)
	}
	if got := session.Autocomplete.Store().Parameters().ProjectID; got != "proj-1" {
		t.Errorf("Expected project on autocompletion store, got %q", got)
	}
}

func TestSession_PerformSearchSetsQueryAndResetsOffset(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	client := &queryOnlyClient{resp: &QueryResponse{MatchingResults: 3}}
	session, err := NewSession(scope, client, SessionConfig{ProjectID: "p"})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	session.Search.SetParameters(func(p QueryParams) QueryParams {
		p.Offset = 30
		return p
	})

	req := session.PerformSearch(context.Background(), "solar power")
	waitSettled(t, req)

	params := client.lastQuery()
	if params.NaturalLanguageQuery != "solar power" {
		t.Errorf("Expected natural language query, got %q", params.NaturalLanguageQuery)
	}
	if params.Offset != 0 {
		t.Errorf("Expected offset reset for a new search, got %d", params.Offset)
	}
	if params.ProjectID != "p" {
		t.Errorf("Expected project on the call, got %q", params.ProjectID)
	}

	if data := session.Search.Store().Data(); data == nil || data.MatchingResults != 3 {
		t.Errorf("Expected settled results, got %+v", data)
	}

	stored := session.Search.Store().Parameters()
	if stored.NaturalLanguageQuery != "solar power" {
		t.Errorf("PerformSearch must persist the query, got %q", stored.NaturalLanguageQuery)
	}
}

func TestSession_FetchPagePersistsOffset(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	client := &queryOnlyClient{}
	session, err := NewSession(scope, client, SessionConfig{ProjectID: "p"})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	req := session.FetchPage(context.Background(), 20)
	waitSettled(t, req)

	if got := client.lastQuery().Offset; got != 20 {
		t.Errorf("Expected offset 20 on the call, got %d", got)
	}
	if got := session.Search.Store().Parameters().Offset; got != 20 {
		t.Errorf("Expected offset persisted, got %d", got)
	}
}

func TestSession_FetchDocumentsMergesFilterWithoutPersisting(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	client := &queryOnlyClient{}
	session, err := NewSession(scope, client, SessionConfig{ProjectID: "p"})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	var settledDocs *QueryResponse
	var mu sync.Mutex
	req := session.FetchDocuments(context.Background(), []string{"doc-a", "doc-b"}, func(resp *QueryResponse) {
		mu.Lock()
		settledDocs = resp
		mu.Unlock()
	})
	waitSettled(t, req)

	params := client.lastQuery()
	if params.Filter != "document_id::doc-a|document_id::doc-b" {
		t.Errorf("Unexpected document filter %q", params.Filter)
	}
	if params.Count != 2 {
		t.Errorf("Expected count matching the ID list, got %d", params.Count)
	}
	if params.ProjectID != "p" {
		t.Errorf("Expected project preserved under the override, got %q", params.ProjectID)
	}

	if got := session.Documents.Store().Parameters().Filter; got != "" {
		t.Errorf("Document filter must not persist, got %q", got)
	}
	if session.Search.Store().IsLoading() {
		t.Error("FetchDocuments must not touch the search store")
	}

	mu.Lock()
	defer mu.Unlock()
	if settledDocs == nil {
		t.Error("Expected onSettled callback for the accepted lookup")
	}
}

func TestSession_FetchAggregationsAsksForNoRows(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	client := &queryOnlyClient{}
	session, err := NewSession(scope, client, SessionConfig{
		ProjectID:       "p",
		QueryParameters: &QueryParams{Count: 25},
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	req := session.FetchAggregations(context.Background(), "term(category)")
	waitSettled(t, req)

	params := client.lastQuery()
	if params.Aggregation != "term(category)" {
		t.Errorf("Expected aggregation expression, got %q", params.Aggregation)
	}
	if params.Count != 0 {
		t.Errorf("Aggregation fetches must not ask for rows, got count %d", params.Count)
	}

	if got := session.Aggregations.Store().Parameters().Aggregation; got != "term(category)" {
		t.Errorf("Expected aggregation persisted for refetch, got %q", got)
	}
}

func TestSession_FetchAutocompletionsUnsupportedIsDiscarded(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	session, err := NewSession(scope, &queryOnlyClient{}, SessionConfig{ProjectID: "p"})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	if session.AutocompletionEnabled() {
		t.Error("Expected autocompletion unsupported for a query-only client")
	}

	req := session.FetchAutocompletions(context.Background(), "sol")
	if outcome := waitSettled(t, req); outcome != OutcomeDiscarded {
		t.Errorf("Expected discarded request, got %v", outcome)
	}
}

func TestSession_AutocompletionDisabledBySettings(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	off := false
	client := &fullClient{}
	session, err := NewSession(scope, client, SessionConfig{
		ProjectID:         "p",
		ComponentSettings: &ComponentSettings{Autocomplete: &off},
	})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	if session.AutocompletionEnabled() {
		t.Error("Expected settings to disable autocompletion")
	}

	req := session.FetchAutocompletions(context.Background(), "sol")
	if outcome := waitSettled(t, req); outcome != OutcomeDiscarded {
		t.Errorf("Expected discarded request, got %v", outcome)
	}

	client.fmu.Lock()
	calls := len(client.completions)
	client.fmu.Unlock()
	if calls != 0 {
		t.Errorf("Expected no completion calls while disabled, got %d", calls)
	}
}

func TestSession_FetchAutocompletionsStoresPrefix(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	client := &fullClient{}
	session, err := NewSession(scope, client, SessionConfig{ProjectID: "p"})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	req := session.FetchAutocompletions(context.Background(), "sol")
	waitSettled(t, req)

	client.fmu.Lock()
	if len(client.completions) != 1 || client.completions[0].Prefix != "sol" {
		t.Errorf("Expected completion call with prefix, got %+v", client.completions)
	}
	client.fmu.Unlock()

	data := session.Autocomplete.Store().Data()
	if data == nil || len(data.Completions) != 1 || data.Completions[0] != "solar" {
		t.Errorf("Expected settled completions, got %+v", data)
	}
}

func TestSession_PrimeFetchesSupportedLookups(t *testing.T) {
	scope := NewScope()
	defer scope.Dispose()

	client := &fullClient{}
	session, err := NewSession(scope, client, SessionConfig{ProjectID: "p"})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	reqs := session.Prime(context.Background())
	if len(reqs) != 3 {
		t.Fatalf("Expected settings, collections and fields fetches, got %d", len(reqs))
	}
	if err := WaitAll(context.Background(), reqs...); err != nil {
		t.Fatalf("WaitAll failed: %v", err)
	}

	if data := session.Settings.Store().Data(); data == nil || data.ResultsPerPage != 10 {
		t.Errorf("Expected settings loaded, got %+v", data)
	}
	if data := session.Collections.Store().Data(); data == nil || len(data.Collections) != 1 {
		t.Errorf("Expected collections loaded, got %+v", data)
	}
	if data := session.Fields.Store().Data(); data == nil || len(data.Fields) != 1 {
		t.Errorf("Expected fields loaded, got %+v", data)
	}

	queryOnly, err := NewSession(scope, &queryOnlyClient{}, SessionConfig{ProjectID: "p"})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if reqs := queryOnly.Prime(context.Background()); len(reqs) != 0 {
		t.Errorf("Expected no prime fetches for a query-only client, got %d", len(reqs))
	}
}
