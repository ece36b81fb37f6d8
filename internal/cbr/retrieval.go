package cbr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"mycbr/internal/table"
)

// RetrievalScope runs similarity retrieval against a stored casebase.
type RetrievalScope struct {
	client *Client
}

// Retrieval returns the retrieval scope.
func (c *Client) Retrieval() *RetrievalScope { return &RetrievalScope{client: c} }

func (s *RetrievalScope) path(cfg callConfig, q url.Values, operation string) string {
	return s.client.endpoint(q, "concepts", cfg.concept, "casebases", cfg.casebase,
		"amalgamationFunctions", cfg.function, operation)
}

// ByCaseID returns the cases most similar to caseID, indexed by case id with
// one "similarity" column, most similar first.
func (s *RetrievalScope) ByCaseID(ctx context.Context, caseID string, opts ...CallOption) (*table.Table, error) {
	const op = "retrieve by case id"
	cfg := resolve(s.client.defaults, opts)
	q := url.Values{}
	q.Set("caseID", caseID)
	q.Set("k", strconv.Itoa(cfg.k))
	body, err := s.client.do(ctx, http.MethodGet, s.path(cfg, q, "retrievalByCaseID"), op, nil)
	if err != nil {
		return nil, err
	}
	t, err := tabulateKeyValue(op, body, CaseIDColumn, SimilarityColumn)
	if err != nil {
		return nil, err
	}
	t, err = s.client.sortBySimilarity(op, s.client.round(ctx, op, cfg, t))
	if err != nil {
		return nil, err
	}
	return s.client.finish(ctx, op, cfg, t), nil
}

// ByCaseIDWithContent is ByCaseID with the attribute values of every retrieved case.
func (s *RetrievalScope) ByCaseIDWithContent(ctx context.Context, caseID string, opts ...CallOption) (*table.Table, error) {
	const op = "retrieve by case id with content"
	cfg := resolve(s.client.defaults, opts)
	q := url.Values{}
	q.Set("caseID", caseID)
	q.Set("k", strconv.Itoa(cfg.k))
	body, err := s.client.do(ctx, http.MethodGet, s.path(cfg, q, "retrievalByCaseIDWithContent"), op, nil)
	if err != nil {
		return nil, err
	}
	t, err := tabulateRecords(op, body, nil)
	if err != nil {
		return nil, err
	}
	t = s.client.round(ctx, op, cfg, t)
	return s.client.finish(ctx, op, cfg, t), nil
}

// ByMultipleCaseIDs retrieves for several query cases at once. The result has
// one column per query case and one row per retrieved case.
func (s *RetrievalScope) ByMultipleCaseIDs(ctx context.Context, caseIDs []string, opts ...CallOption) (*table.Table, error) {
	const op = "retrieve by multiple case ids"
	cfg := resolve(s.client.defaults, opts)
	q := url.Values{}
	q.Set("k", strconv.Itoa(cfg.k))
	body, err := s.client.do(ctx, http.MethodPost, s.path(cfg, q, "retrievalByMultipleCaseIDs"), op, nonNil(caseIDs))
	if err != nil {
		return nil, err
	}
	t, err := tabulateMatrix(op, body, CaseIDColumn)
	if err != nil {
		return nil, err
	}
	return s.client.finish(ctx, op, cfg, s.client.round(ctx, op, cfg, t)), nil
}

// ByAttribute retrieves the cases most similar to a query holding a single
// symbol attribute value, most similar first.
func (s *RetrievalScope) ByAttribute(ctx context.Context, attribute, value string, opts ...CallOption) (*table.Table, error) {
	const op = "retrieve by attribute"
	cfg := resolve(s.client.defaults, opts)
	q := url.Values{}
	q.Set("Symbol attribute name", attribute)
	q.Set("value", value)
	q.Set("k", strconv.Itoa(cfg.k))
	body, err := s.client.do(ctx, http.MethodGet, s.path(cfg, q, "retrievalByAttribute"), op, nil)
	if err != nil {
		return nil, err
	}
	t, err := tabulateMatrix(op, body, CaseIDColumn)
	if err != nil {
		return nil, err
	}
	// The reply nests the ranking under a single "similarCases" key.
	t = t.Select("similarCases")
	if err := t.RenameColumns(SimilarityColumn); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t, err = s.client.sortBySimilarity(op, s.client.round(ctx, op, cfg, t))
	if err != nil {
		return nil, err
	}
	return s.client.finish(ctx, op, cfg, t), nil
}

// nonNil makes an absent id list encode as [] rather than null.
func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
