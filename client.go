package searchfn

import (
	"context"
	"encoding/json"
)

// Querier runs search queries against a project
type Querier interface {
	Query(ctx context.Context, params QueryParams) (*QueryResponse, error)
}

// Autocompleter completes query prefixes
type Autocompleter interface {
	GetAutocompletion(ctx context.Context, params AutocompletionParams) (*Completions, error)
}

// CollectionLister lists the collections of a project
type CollectionLister interface {
	ListCollections(ctx context.Context, params ListCollectionsParams) (*CollectionList, error)
}

// SettingsFetcher fetches the display settings used to render results
type SettingsFetcher interface {
	GetComponentSettings(ctx context.Context, params ComponentSettingsParams) (*ComponentSettings, error)
}

// FieldLister lists the indexed fields of a project
type FieldLister interface {
	ListFields(ctx context.Context, params ListFieldsParams) (*FieldList, error)
}

// SearchClient is the full operation set. Clients may implement any subset
// of the narrow interfaces instead; sessions probe for what is there and
// leave the rest out.
type SearchClient interface {
	Querier
	Autocompleter
	CollectionLister
	SettingsFetcher
	FieldLister
}

// Capabilities reports which operations a client value supports
type Capabilities struct {
	Query             bool
	Autocompletion    bool
	Collections       bool
	ComponentSettings bool
	Fields            bool
}

// ProbeCapabilities inspects a client value for the operations it
// implements
func ProbeCapabilities(client any) Capabilities {
	var caps Capabilities
	_, caps.Query = client.(Querier)
	_, caps.Autocompletion = client.(Autocompleter)
	_, caps.Collections = client.(CollectionLister)
	_, caps.ComponentSettings = client.(SettingsFetcher)
	_, caps.Fields = client.(FieldLister)
	return caps
}

// QueryParams are the parameters of a search query
type QueryParams struct {
	ProjectID            string   `json:"project_id,omitempty"`
	NaturalLanguageQuery string   `json:"natural_language_query,omitempty"`
	Query                string   `json:"query,omitempty"`
	Filter               string   `json:"filter,omitempty"`
	Aggregation          string   `json:"aggregation,omitempty"`
	Count                int64    `json:"count,omitempty"`
	Offset               int64    `json:"offset,omitempty"`
	Return               []string `json:"return,omitempty"`
	Highlight            bool     `json:"highlight,omitempty"`
	SpellingSuggestions  bool     `json:"spelling_suggestions,omitempty"`
}

// QueryResponse is the result of a search query
type QueryResponse struct {
	MatchingResults int64             `json:"matching_results"`
	Results         []QueryResult     `json:"results,omitempty"`
	Aggregations    []json.RawMessage `json:"aggregations,omitempty"`
	SuggestedQuery  string            `json:"suggested_query,omitempty"`
}

// QueryResult is a single document hit
type QueryResult struct {
	DocumentID   string         `json:"document_id"`
	CollectionID string         `json:"collection_id,omitempty"`
	Title        string         `json:"title,omitempty"`
	Text         string         `json:"text,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// AutocompletionParams are the parameters of a completion lookup
type AutocompletionParams struct {
	ProjectID     string   `json:"project_id,omitempty"`
	Prefix        string   `json:"prefix,omitempty"`
	CollectionIDs []string `json:"collection_ids,omitempty"`
	Field         string   `json:"field,omitempty"`
	Count         int64    `json:"count,omitempty"`
}

// Completions is the result of a completion lookup
type Completions struct {
	Completions []string `json:"completions"`
}

// ListCollectionsParams are the parameters of a collection listing
type ListCollectionsParams struct {
	ProjectID string `json:"project_id,omitempty"`
}

// CollectionList is the result of a collection listing
type CollectionList struct {
	Collections []Collection `json:"collections"`
}

// Collection describes one collection of a project
type Collection struct {
	CollectionID string `json:"collection_id"`
	Name         string `json:"name,omitempty"`
}

// ComponentSettingsParams are the parameters of a settings lookup
type ComponentSettingsParams struct {
	ProjectID string `json:"project_id,omitempty"`
}

// ComponentSettings carries the server-side display configuration.
// Autocomplete is a pointer so that an absent field keeps the default
// instead of reading as disabled.
type ComponentSettings struct {
	ResultsPerPage   int64       `json:"results_per_page,omitempty"`
	Autocomplete     *bool       `json:"autocomplete,omitempty"`
	StructuredSearch bool        `json:"structured_search,omitempty"`
	FieldsShown      FieldsShown `json:"fields_shown"`
}

// FieldsShown selects which document fields render in result listings
type FieldsShown struct {
	Body  FieldsShownBody  `json:"body"`
	Title FieldsShownTitle `json:"title"`
}

type FieldsShownBody struct {
	UsePassage bool   `json:"use_passage,omitempty"`
	Field      string `json:"field,omitempty"`
}

type FieldsShownTitle struct {
	Field string `json:"field,omitempty"`
}

// ListFieldsParams are the parameters of a field listing
type ListFieldsParams struct {
	ProjectID     string   `json:"project_id,omitempty"`
	CollectionIDs []string `json:"collection_ids,omitempty"`
}

// FieldList is the result of a field listing
type FieldList struct {
	Fields []Field `json:"fields"`
}

// Field describes one indexed field
type Field struct {
	Field        string `json:"field,omitempty"`
	Type         string `json:"type,omitempty"`
	CollectionID string `json:"collection_id,omitempty"`
}
