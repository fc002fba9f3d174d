package searchfn

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// SessionConfig seeds a session's stores before the first fetch
type SessionConfig struct {
	ProjectID string

	// QueryParameters overrides the initial search parameters; the
	// project ID is applied on top
	QueryParameters *QueryParams

	// Pre-obtained results, injected through SetResponse so the UI can
	// render before fetching
	SearchResults     *QueryResponse
	Completions       *Completions
	Collections       *CollectionList
	ComponentSettings *ComponentSettings
	Fields            *FieldList
}

// Session bundles the coordinators of one search surface over a single
// client and project. Coordinators for operations the client does not
// implement stay nil; the convenience methods treat those as unsupported
// instead of failing.
type Session struct {
	scope     *Scope
	caps      Capabilities
	projectID string

	Search       *Coordinator[QueryParams, QueryResponse]
	Documents    *Coordinator[QueryParams, QueryResponse]
	Aggregations *Coordinator[QueryParams, QueryResponse]
	Autocomplete *Coordinator[AutocompletionParams, Completions]
	Collections  *Coordinator[ListCollectionsParams, CollectionList]
	Settings     *Coordinator[ComponentSettingsParams, ComponentSettings]
	Fields       *Coordinator[ListFieldsParams, FieldList]
}

// NewSession probes the client for the operations it implements and builds
// a coordinator for each one found. The client must at least implement
// Querier.
func NewSession(scope *Scope, client any, cfg SessionConfig) (*Session, error) {
	caps := ProbeCapabilities(client)
	if !caps.Query {
		return nil, errors.New("search client does not implement Querier")
	}

	s := &Session{
		scope:     scope,
		caps:      caps,
		projectID: cfg.ProjectID,
	}

	querier := client.(Querier)
	s.Search = NewCoordinator(scope, "search", querier.Query)
	s.Documents = NewCoordinator(scope, "documents", querier.Query)
	s.Aggregations = NewCoordinator(scope, "aggregations", querier.Query)

	seedQuery := func(p QueryParams) QueryParams {
		if cfg.QueryParameters != nil {
			p = *cfg.QueryParameters
		}
		p.ProjectID = cfg.ProjectID
		return p
	}
	s.Search.SetParameters(seedQuery)
	s.Documents.SetParameters(seedQuery)
	s.Aggregations.SetParameters(seedQuery)
	if cfg.SearchResults != nil {
		s.Search.SetResponse(cfg.SearchResults)
	}

	if ac, ok := client.(Autocompleter); ok {
		s.Autocomplete = NewCoordinator(scope, "autocompletion", ac.GetAutocompletion)
		s.Autocomplete.SetParameters(func(p AutocompletionParams) AutocompletionParams {
			p.ProjectID = cfg.ProjectID
			return p
		})
		if cfg.Completions != nil {
			s.Autocomplete.SetResponse(cfg.Completions)
		}
	}

	if cl, ok := client.(CollectionLister); ok {
		s.Collections = NewCoordinator(scope, "collections", cl.ListCollections)
		s.Collections.SetParameters(func(p ListCollectionsParams) ListCollectionsParams {
			p.ProjectID = cfg.ProjectID
			return p
		})
		if cfg.Collections != nil {
			s.Collections.SetResponse(cfg.Collections)
		}
	}

	if sf, ok := client.(SettingsFetcher); ok {
		s.Settings = NewCoordinator(scope, "component_settings", sf.GetComponentSettings)
		s.Settings.SetParameters(func(p ComponentSettingsParams) ComponentSettingsParams {
			p.ProjectID = cfg.ProjectID
			return p
		})
		if cfg.ComponentSettings != nil {
			s.Settings.SetResponse(cfg.ComponentSettings)
		}
	}

	if fl, ok := client.(FieldLister); ok {
		s.Fields = NewCoordinator(scope, "fields", fl.ListFields)
		s.Fields.SetParameters(func(p ListFieldsParams) ListFieldsParams {
			p.ProjectID = cfg.ProjectID
			return p
		})
		if cfg.Fields != nil {
			s.Fields.SetResponse(cfg.Fields)
		}
	}

	return s, nil
}

// Scope returns the owning scope
func (s *Session) Scope() *Scope {
	return s.scope
}

// ProjectID returns the project this session is bound to
func (s *Session) ProjectID() string {
	return s.projectID
}

// Capabilities returns what the probed client supports
func (s *Session) Capabilities() Capabilities {
	return s.caps
}

// PerformSearch stores query as the natural language query, resets the
// offset and issues a search
func (s *Session) PerformSearch(ctx context.Context, query string) *Request {
	s.Search.SetParameters(func(p QueryParams) QueryParams {
		p.NaturalLanguageQuery = query
		p.Offset = 0
		return p
	})
	return s.Search.Fetch(ctx)
}

// FetchPage stores the offset and re-issues the current search
func (s *Session) FetchPage(ctx context.Context, offset int64) *Request {
	s.Search.SetParameters(func(p QueryParams) QueryParams {
		p.Offset = offset
		return p
	})
	return s.Search.Fetch(ctx)
}

// AutocompletionEnabled reports whether completions can be fetched: the
// client must implement Autocompleter and the component settings, when
// loaded, must not turn autocomplete off
func (s *Session) AutocompletionEnabled() bool {
	if !s.caps.Autocompletion {
		return false
	}
	if s.Settings != nil {
		if settings := s.Settings.Store().Data(); settings != nil && settings.Autocomplete != nil {
			return *settings.Autocomplete
		}
	}
	return true
}

// FetchAutocompletions stores the prefix and fetches completions for it.
// When autocompletion is unsupported or disabled the returned request is
// already settled as discarded.
func (s *Session) FetchAutocompletions(ctx context.Context, prefix string) *Request {
	if !s.AutocompletionEnabled() {
		return s.discarded("autocompletion")
	}
	s.Autocomplete.SetParameters(func(p AutocompletionParams) AutocompletionParams {
		p.Prefix = prefix
		return p
	})
	return s.Autocomplete.Fetch(ctx)
}

// FetchDocuments looks up documents by ID through the documents store,
// leaving the main search results alone. The IDs become a filter merged
// into the current parameters for this call only. onSettled may be nil.
func (s *Session) FetchDocuments(ctx context.Context, documentIDs []string, onSettled func(*QueryResponse)) *Request {
	filter := documentIDFilter(documentIDs)
	return s.Documents.FetchWith(ctx, func(p QueryParams) QueryParams {
		p.Filter = filter
		p.Count = int64(len(documentIDs))
		p.Offset = 0
		return p
	}, onSettled)
}

// FetchAggregations stores the aggregation expression and fetches facet
// counts into the aggregations store. The result rows are not needed, so
// the call asks for none.
func (s *Session) FetchAggregations(ctx context.Context, aggregation string) *Request {
	s.Aggregations.SetParameters(func(p QueryParams) QueryParams {
		p.Aggregation = aggregation
		p.Count = 0
		return p
	})
	return s.Aggregations.Fetch(ctx)
}

// FetchCollections lists the project's collections. Unsupported clients
// get an already-discarded request.
func (s *Session) FetchCollections(ctx context.Context) *Request {
	if s.Collections == nil {
		return s.discarded("collections")
	}
	return s.Collections.Fetch(ctx)
}

// FetchComponentSettings loads the display settings. Unsupported clients
// get an already-discarded request.
func (s *Session) FetchComponentSettings(ctx context.Context) *Request {
	if s.Settings == nil {
		return s.discarded("component_settings")
	}
	return s.Settings.Fetch(ctx)
}

// FetchFields lists the project's indexed fields. Unsupported clients get
// an already-discarded request.
func (s *Session) FetchFields(ctx context.Context) *Request {
	if s.Fields == nil {
		return s.discarded("fields")
	}
	return s.Fields.Fetch(ctx)
}

// Prime issues the initial lookups a fresh search surface needs: component
// settings, collections and fields, for whichever of those the client
// supports. The requests run concurrently; wait on them with WaitAll if
// needed.
func (s *Session) Prime(ctx context.Context) []*Request {
	reqs := make([]*Request, 0, 3)
	if s.Settings != nil {
		reqs = append(reqs, s.Settings.Fetch(ctx))
	}
	if s.Collections != nil {
		reqs = append(reqs, s.Collections.Fetch(ctx))
	}
	if s.Fields != nil {
		reqs = append(reqs, s.Fields.Fetch(ctx))
	}
	return reqs
}

func (s *Session) discarded(coordinator string) *Request {
	req := newRequest(s.scope.generateRequestID(), coordinator, 0)
	req.settle(OutcomeDiscarded, nil, 0)
	return req
}

// documentIDFilter builds a filter expression matching any of the given
// document IDs
func documentIDFilter(documentIDs []string) string {
	parts := make([]string, 0, len(documentIDs))
	for _, id := range documentIDs {
		parts = append(parts, fmt.Sprintf("document_id::%s", id))
	}
	return strings.Join(parts, "|")
}
