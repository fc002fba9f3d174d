// Package fixture serves canned search responses from files, for demos and
// tests that need the full operation set without a live backend.
//
// Fixtures live under a base URL in any scheme the afs service understands
// (file, mem, embed, s3, ...), one JSON file per operation:
//
//	{base}/query.json
//	{base}/autocompletion.json
//	{base}/collections.json
//	{base}/component_settings.json
//	{base}/fields.json
//
// Query results are windowed by the Offset and Count parameters so paging
// behaves like a real backend. An artificial delay can be configured to
// exercise loading states and late-settlement handling.
package fixture

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/viant/afs"
	_ "github.com/viant/afs/mem" // mem:// fixtures in tests

	searchfn "github.com/searchfn/searchfn-go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	queryFile             = "query.json"
	autocompletionFile    = "autocompletion.json"
	collectionsFile       = "collections.json"
	componentSettingsFile = "component_settings.json"
	fieldsFile            = "fields.json"
)

var operationFiles = map[string]string{
	"query":              queryFile,
	"autocompletion":     autocompletionFile,
	"collections":        collectionsFile,
	"component_settings": componentSettingsFile,
	"fields":             fieldsFile,
}

// Option configures a Client
type Option func(*Client)

// WithDelay makes every operation wait before answering
func WithDelay(d time.Duration) Option {
	return func(c *Client) {
		c.delay = d
	}
}

// WithService replaces the storage service, e.g. to pass embed options
func WithService(fs afs.Service) Option {
	return func(c *Client) {
		c.fs = fs
	}
}

// Client is a search client answering from fixture files
type Client struct {
	fs      afs.Service
	baseURL string
	delay   time.Duration
	memo    memoCache[[]byte]
}

var _ searchfn.SearchClient = (*Client)(nil)

// New creates a fixture client rooted at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		fs:      afs.New(),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reload drops memoized payloads so edited fixture files are re-read
func (c *Client) Reload() {
	c.memo.Clear()
}

// Available reports which operations have fixture files, sorted by name
func (c *Client) Available(ctx context.Context) ([]string, error) {
	var ops []string
	for op, file := range operationFiles {
		exists, err := c.fs.Exists(ctx, c.fileURL(file))
		if err != nil {
			return nil, fmt.Errorf("fixture: probe %s: %w", file, err)
		}
		if exists {
			ops = append(ops, op)
		}
	}
	sort.Strings(ops)
	return ops, nil
}

func (c *Client) Query(ctx context.Context, params searchfn.QueryParams) (*searchfn.QueryResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var resp searchfn.QueryResponse
	if err := c.load(ctx, queryFile, &resp); err != nil {
		return nil, err
	}

	if resp.MatchingResults == 0 {
		resp.MatchingResults = int64(len(resp.Results))
	}
	resp.Results = window(resp.Results, params.Offset, params.Count)
	return &resp, nil
}

func (c *Client) GetAutocompletion(ctx context.Context, params searchfn.AutocompletionParams) (*searchfn.Completions, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var resp searchfn.Completions
	if err := c.load(ctx, autocompletionFile, &resp); err != nil {
		return nil, err
	}

	if params.Prefix != "" {
		matched := resp.Completions[:0]
		for _, completion := range resp.Completions {
			if strings.HasPrefix(completion, params.Prefix) {
				matched = append(matched, completion)
			}
		}
		resp.Completions = matched
	}
	if params.Count > 0 && int64(len(resp.Completions)) > params.Count {
		resp.Completions = resp.Completions[:params.Count]
	}
	return &resp, nil
}

func (c *Client) ListCollections(ctx context.Context, params searchfn.ListCollectionsParams) (*searchfn.CollectionList, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var resp searchfn.CollectionList
	if err := c.load(ctx, collectionsFile, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetComponentSettings(ctx context.Context, params searchfn.ComponentSettingsParams) (*searchfn.ComponentSettings, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var resp searchfn.ComponentSettings
	if err := c.load(ctx, componentSettingsFile, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListFields(ctx context.Context, params searchfn.ListFieldsParams) (*searchfn.FieldList, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	var resp searchfn.FieldList
	if err := c.load(ctx, fieldsFile, &resp); err != nil {
		return nil, err
	}

	if len(params.CollectionIDs) > 0 {
		wanted := make(map[string]struct{}, len(params.CollectionIDs))
		for _, id := range params.CollectionIDs {
			wanted[id] = struct{}{}
		}
		matched := resp.Fields[:0]
		for _, field := range resp.Fields {
			if _, ok := wanted[field.CollectionID]; ok {
				matched = append(matched, field)
			}
		}
		resp.Fields = matched
	}
	return &resp, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) load(ctx context.Context, file string, out any) error {
	payload, ok := c.memo.Load(file)
	if !ok {
		data, err := c.fs.DownloadWithURL(ctx, c.fileURL(file))
		if err != nil {
			return fmt.Errorf("fixture: read %s: %w", file, err)
		}
		c.memo.Store(file, data)
		payload = data
	}

	if err := jsonAPI.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("fixture: decode %s: %w", file, err)
	}
	return nil
}

func (c *Client) fileURL(file string) string {
	return c.baseURL + "/" + file
}

func window(results []searchfn.QueryResult, offset, count int64) []searchfn.QueryResult {
	if offset > 0 {
		if offset >= int64(len(results)) {
			return nil
		}
		results = results[offset:]
	}
	if count > 0 && int64(len(results)) > count {
		results = results[:count]
	}
	return results
}
