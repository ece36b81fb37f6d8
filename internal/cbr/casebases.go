package cbr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"mycbr/internal/table"
)

// CasebaseScope manages casebases and reads their cases.
type CasebaseScope struct {
	client *Client
}

// Casebases returns the casebase scope.
func (c *Client) Casebases() *CasebaseScope { return &CasebaseScope{client: c} }

// List returns the ids of all casebases on the server.
func (s *CasebaseScope) List(ctx context.Context) ([]string, error) {
	const op = "list casebases"
	body, err := s.client.do(ctx, http.MethodGet, s.client.endpoint(nil, "casebases"), op, nil)
	if err != nil {
		return nil, err
	}
	return decodeStrings(op, body)
}

// Add creates casebase id and returns the server's success flag.
func (s *CasebaseScope) Add(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := s.client.doJSON(ctx, http.MethodPut, s.client.endpoint(nil, "casebases", id), "add casebase", nil, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Delete removes casebase id and returns the server's success flag.
func (s *CasebaseScope) Delete(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := s.client.doJSON(ctx, http.MethodDelete, s.client.endpoint(nil, "casebases", id), "delete casebase", nil, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// Cases returns every case of a casebase. When a column cache exists for the
// resolved concept the table carries exactly those columns, otherwise the
// columns the server sends.
func (s *CasebaseScope) Cases(ctx context.Context, opts ...CallOption) (*table.Table, error) {
	const op = "list cases"
	cfg := resolve(s.client.defaults, opts)
	u := s.client.endpoint(nil, "concepts", cfg.concept, "casebases", cfg.casebase, "cases")
	body, err := s.client.do(ctx, http.MethodGet, u, op, nil)
	if err != nil {
		return nil, err
	}
	t, err := tabulateRecords(op, body, s.client.cachedColumns(cfg.concept))
	if err != nil {
		return nil, err
	}
	return s.client.finish(ctx, op, cfg, t), nil
}

// Case returns a single case as a one-row table.
func (s *CasebaseScope) Case(ctx context.Context, caseID string, opts ...CallOption) (*table.Table, error) {
	const op = "get case"
	cfg := resolve(s.client.defaults, opts)
	u := s.client.endpoint(nil, "concepts", cfg.concept, "casebases", cfg.casebase, "cases", caseID)
	body, err := s.client.do(ctx, http.MethodGet, u, op, nil)
	if err != nil {
		return nil, err
	}
	t, err := tabulateObject(op, body)
	if err != nil {
		return nil, err
	}
	return s.client.finish(ctx, op, cfg, t), nil
}

// SelfSimilarity returns the case-by-case similarity matrix of a casebase
// with its columns sorted by case id.
func (s *CasebaseScope) SelfSimilarity(ctx context.Context, opts ...CallOption) (*table.Table, error) {
	const op = "compute self similarity"
	cfg := resolve(s.client.defaults, opts)
	q := url.Values{}
	q.Set("amalgamationFunctionID", cfg.function)
	q.Set("k", strconv.Itoa(cfg.k))
	u := s.client.endpoint(q, "concepts", cfg.concept, "casebases", cfg.casebase, "computeSelfSimilarity")
	body, err := s.client.do(ctx, http.MethodGet, u, op, nil)
	if err != nil {
		return nil, err
	}
	t, err := tabulateMatrix(op, body, CaseIDColumn)
	if err != nil {
		return nil, err
	}
	t = s.client.round(ctx, op, cfg, t).SortColumns()
	return s.client.finish(ctx, op, cfg, t), nil
}

// cachedColumns returns the column cache when it belongs to concept, nil otherwise.
func (c *Client) cachedColumns(concept string) []string {
	if c.defaults.Concept() != concept {
		return nil
	}
	columns, ok := c.defaults.ColumnNames()
	if !ok {
		return nil
	}
	return columns
}

// ColumnNames is shorthand for Concepts().ColumnNames.
func (c *Client) ColumnNames(ctx context.Context, opts ...CallOption) ([]string, error) {
	columns, err := c.Concepts().ColumnNames(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("column names: %w", err)
	}
	return columns, nil
}
