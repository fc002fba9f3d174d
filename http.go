package searchfn

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultVersion is the API version date sent with every request unless
// overridden with WithVersion
const DefaultVersion = "2023-03-31"

// APIError is a non-2xx response from the search service
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("search api: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("search api: status %d", e.StatusCode)
}

// HTTPOption configures an HTTPClient
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.hc = hc
	}
}

// WithVersion sets the API version date sent as the version query parameter
func WithVersion(version string) HTTPOption {
	return func(c *HTTPClient) {
		c.version = version
	}
}

// WithAuthorization registers a hook that decorates every outgoing request,
// typically with an Authorization header
func WithAuthorization(fn func(*http.Request)) HTTPOption {
	return func(c *HTTPClient) {
		c.auth = fn
	}
}

// HTTPClient implements the full search operation set against a
// project-scoped HTTP API
type HTTPClient struct {
	endpoint string
	version  string
	hc       *http.Client
	auth     func(*http.Request)
}

var _ SearchClient = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the service at endpoint
func NewHTTPClient(endpoint string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		version:  DefaultVersion,
		hc:       &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *HTTPClient) Query(ctx context.Context, params QueryParams) (*QueryResponse, error) {
	// The project travels in the path, not the body
	body := params
	body.ProjectID = ""

	req, err := c.newRequest(ctx, http.MethodPost, c.projectPath(params.ProjectID, "query"), nil, body)
	if err != nil {
		return nil, err
	}

	var out QueryResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetAutocompletion(ctx context.Context, params AutocompletionParams) (*Completions, error) {
	query := url.Values{}
	query.Set("prefix", params.Prefix)
	if params.Field != "" {
		query.Set("field", params.Field)
	}
	if params.Count > 0 {
		query.Set("count", strconv.FormatInt(params.Count, 10))
	}
	if len(params.CollectionIDs) > 0 {
		query.Set("collection_ids", strings.Join(params.CollectionIDs, ","))
	}

	req, err := c.newRequest(ctx, http.MethodGet, c.projectPath(params.ProjectID, "autocompletion"), query, nil)
	if err != nil {
		return nil, err
	}

	var out Completions
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListCollections(ctx context.Context, params ListCollectionsParams) (*CollectionList, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.projectPath(params.ProjectID, "collections"), nil, nil)
	if err != nil {
		return nil, err
	}

	var out CollectionList
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetComponentSettings(ctx context.Context, params ComponentSettingsParams) (*ComponentSettings, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.projectPath(params.ProjectID, "component_settings"), nil, nil)
	if err != nil {
		return nil, err
	}

	var out ComponentSettings
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListFields(ctx context.Context, params ListFieldsParams) (*FieldList, error) {
	query := url.Values{}
	if len(params.CollectionIDs) > 0 {
		query.Set("collection_ids", strings.Join(params.CollectionIDs, ","))
	}

	req, err := c.newRequest(ctx, http.MethodGet, c.projectPath(params.ProjectID, "fields"), query, nil)
	if err != nil {
		return nil, err
	}

	var out FieldList
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) projectPath(projectID, op string) string {
	return fmt.Sprintf("%s/v2/projects/%s/%s", c.endpoint, url.PathEscape(projectID), op)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, rawURL string, query url.Values, body any) (*http.Request, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("version", c.version)
	rawURL = rawURL + "?" + query.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := jsonAPI.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		c.auth(req)
	}

	return req, nil
}

func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		if err := jsonAPI.Unmarshal(payload, &body); err == nil && body.Error != "" {
			apiErr.Message = body.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(payload))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := jsonAPI.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}
