package cbr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mycbr/internal/table"
)

const (
	// DefaultBaseURL is used when New is given an empty base URL.
	DefaultBaseURL = "http://localhost:8080"

	// CaseIDColumn names the case identifier column and index.
	CaseIDColumn = "caseID"
	// SimilarityColumn names the similarity value column.
	SimilarityColumn = "similarity"
	// AttributeIDColumn names the index of per-attribute tables.
	AttributeIDColumn = "attributeID"

	// DefaultPrecision is the number of decimals similarity values are rounded to.
	DefaultPrecision = 3
	// AllCases asks the server for every case instead of the top k.
	AllCases = -1
)

// MetricsRecorder receives one observation per HTTP exchange and per empty result.
type MetricsRecorder interface {
	ObserveRequest(operation, method string, status int, elapsed time.Duration)
	ObserveEmpty(operation string)
}

// Client is a client for the REST interface of a CBR similarity server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    MetricsRecorder
	defaults   *Defaults
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
	metrics    MetricsRecorder
	defaults   *Defaults
}

// New creates a Client for the CBR server at baseURL and discovers its
// defaults: unless the supplied Defaults already name a concept, the first
// concept the server reports becomes active. The column names of the active
// concept are then fetched and cached.
func New(ctx context.Context, baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("cbr: invalid base URL: %w", err)
	}

	cfg := &clientConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.timeout > 0 {
		cp := *httpClient
		cp.Timeout = cfg.timeout
		httpClient = &cp
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	defaults := cfg.defaults
	if defaults == nil {
		defaults = NewDefaults()
	}
	defaults.baseURL = baseURL

	c := &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		metrics:    cfg.metrics,
		defaults:   defaults,
	}

	if defaults.Concept() == "" {
		concepts, err := c.Concepts().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("discover concepts: %w", err)
		}
		if len(concepts) == 0 {
			logger.WarnContext(ctx, "server reports no concepts; no default concept set", "base_url", baseURL)
			return c, nil
		}
		defaults.SetConcept(concepts[0])
	}
	if err := c.RefreshColumns(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = hc
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client. A client supplied through
// WithHTTPClient is copied first and left unchanged.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d < 0 {
			return fmt.Errorf("cbr: negative timeout %s", d)
		}
		cfg.timeout = d
		return nil
	}
}

// WithMetrics records every request and every empty result on m.
func WithMetrics(m MetricsRecorder) Option {
	return func(cfg *clientConfig) error {
		cfg.metrics = m
		return nil
	}
}

// WithDefaults makes the client read and update d instead of a private Defaults.
func WithDefaults(d *Defaults) Option {
	return func(cfg *clientConfig) error {
		if d == nil {
			return fmt.Errorf("cbr: nil defaults")
		}
		cfg.defaults = d
		return nil
	}
}

// Defaults returns the defaults the client substitutes for unspecified identifiers.
func (c *Client) Defaults() *Defaults { return c.defaults }

// BaseURL returns the server address.
func (c *Client) BaseURL() string { return c.baseURL }

// SetConcept activates concept id and recomputes the cached column names.
// It reports false, without contacting the server, when id is empty. When
// the column names cannot be fetched the active concept and its columns
// stay as they were.
func (c *Client) SetConcept(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, nil
	}
	columns, err := c.Concepts().ColumnNames(ctx, InConcept(id))
	if err != nil {
		return false, fmt.Errorf("set concept %q: %w", id, err)
	}
	c.defaults.SetConcept(id)
	c.defaults.setColumns(id, columns)
	return true, nil
}

// SetCasebase activates casebase id. It reports false when id is empty.
func (c *Client) SetCasebase(id string) bool { return c.defaults.SetCasebase(id) }

// SetFunction activates amalgamation function id. It reports false when id is empty.
func (c *Client) SetFunction(id string) bool { return c.defaults.SetFunction(id) }

// RefreshColumns recomputes the column cache for the active concept.
func (c *Client) RefreshColumns(ctx context.Context) error {
	concept := c.defaults.Concept()
	columns, err := c.Concepts().ColumnNames(ctx, InConcept(concept))
	if err != nil {
		return fmt.Errorf("refresh columns for concept %q: %w", concept, err)
	}
	c.defaults.setColumns(concept, columns)
	return nil
}

// endpoint joins the base URL with path-escaped segments and an optional query.
func (c *Client) endpoint(query url.Values, segments ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}
	return b.String()
}

// do executes an HTTP request and returns the response body.
// A non-nil payload is sent as JSON. Non-2xx replies become an *APIError.
func (c *Client) do(ctx context.Context, method, u, operation string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", operation, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.InfoContext(ctx, "API request", "operation", operation, "method", method, "url", u)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observeRequest(operation, method, 0, start)
		return nil, fmt.Errorf("%s: do request: %w", operation, err)
	}
	defer resp.Body.Close()

	c.observeRequest(operation, method, resp.StatusCode, start)
	c.logger.DebugContext(ctx, "API response", "operation", operation, "status", resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errRS errorRS
		if json.Unmarshal(respBody, &errRS) == nil {
			if errRS.Message != "" {
				return nil, newAPIError(operation, resp.StatusCode, errRS.Message)
			}
			if errRS.Error != "" {
				return nil, newAPIError(operation, resp.StatusCode, errRS.Error)
			}
		}
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = resp.Status
		}
		return nil, newAPIError(operation, resp.StatusCode, msg)
	}
	return respBody, nil
}

// doJSON executes an HTTP request and decodes the JSON reply into dst.
func (c *Client) doJSON(ctx context.Context, method, u, operation string, payload, dst any) error {
	body, err := c.do(ctx, method, u, operation, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%s: decode response: %w: %w", operation, ErrMalformedResponse, err)
	}
	return nil
}

func (c *Client) observeRequest(operation, method string, status int, start time.Time) {
	if c.metrics != nil {
		c.metrics.ObserveRequest(operation, method, status, time.Since(start))
	}
}

// round rounds t to the call's precision and logs how many cells could not be rounded.
func (c *Client) round(ctx context.Context, operation string, cfg callConfig, t *table.Table, columns ...string) *table.Table {
	out, skipped := t.Round(cfg.precision, columns...)
	if skipped > 0 {
		c.logger.DebugContext(ctx, "non-numeric cells left unrounded", "operation", operation, "cells", skipped)
	}
	return out
}

// sortBySimilarity orders rows most similar first; ties keep server order.
func (c *Client) sortBySimilarity(operation string, t *table.Table) (*table.Table, error) {
	if t.Empty() {
		return t, nil
	}
	sorted, err := t.SortBy(SimilarityColumn, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", operation, ErrMalformedResponse, err)
	}
	return sorted, nil
}

// finish flags an empty result. An empty similarity result usually means the
// concept or the cached columns do not match the casebase.
func (c *Client) finish(ctx context.Context, operation string, cfg callConfig, t *table.Table) *table.Table {
	if t.Empty() {
		attrs := append([]any{"operation", operation}, cfg.logAttrs()...)
		c.logger.WarnContext(ctx, "empty result from CBR server", attrs...)
		if c.metrics != nil {
			c.metrics.ObserveEmpty(operation)
		}
	}
	return t
}
