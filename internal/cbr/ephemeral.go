package cbr

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"mycbr/internal/table"
)

// EphemeralScope runs retrieval against an ad hoc set of case ids supplied
// with each request instead of a whole casebase.
type EphemeralScope struct {
	client *Client
}

// Ephemeral returns the ephemeral retrieval scope.
func (c *Client) Ephemeral() *EphemeralScope { return &EphemeralScope{client: c} }

func (s *EphemeralScope) path(cfg callConfig, q url.Values, operation string) string {
	return s.client.endpoint(q, "ephemeral", "concepts", cfg.concept, "casebases", cfg.casebase,
		"amalgamationFunctions", cfg.function, operation)
}

type ephemeralQueryRQ struct {
	QueryCaseIDs     []string `json:"queryCaseIDs"`
	EphemeralCaseIDs []string `json:"ephemeralCaseIDs"`
}

// RetrieveWithContent ranks the ephemeral cases by similarity to caseID and
// returns them with their attribute values, most similar first. Unless TopK
// is given every ephemeral case is returned.
func (s *EphemeralScope) RetrieveWithContent(ctx context.Context, caseID string, ephemeral []string, opts ...CallOption) (*table.Table, error) {
	const op = "ephemeral retrieve with content"
	cfg := resolve(s.client.defaults, opts)
	q := url.Values{}
	q.Set("caseID", caseID)
	q.Set("k", strconv.Itoa(cfg.kOr(len(ephemeral))))
	body, err := s.client.do(ctx, http.MethodPost, s.path(cfg, q, "retrievalByCaseIDWithContent"), op, nonNil(ephemeral))
	if err != nil {
		return nil, err
	}
	t, err := tabulateRecords(op, body, s.client.cachedColumns(cfg.concept))
	if err != nil {
		return nil, err
	}
	if t.Empty() {
		return s.client.finish(ctx, op, cfg, t), nil
	}
	if numeric, ok := t.ToNumeric(SimilarityColumn); ok {
		t = numeric
	} else {
		s.client.logger.DebugContext(ctx, "similarity column is not numeric", "operation", op)
	}
	t, err = s.client.sortBySimilarity(op, s.client.round(ctx, op, cfg, t, SimilarityColumn))
	if err != nil {
		return nil, err
	}
	return s.client.finish(ctx, op, cfg, t), nil
}

// RetrieveByCaseIDs compares each query case with each ephemeral case. The
// result has one column per query case and one row per ephemeral case.
func (s *EphemeralScope) RetrieveByCaseIDs(ctx context.Context, queryIDs, ephemeral []string, opts ...CallOption) (*table.Table, error) {
	const op = "ephemeral retrieve by case ids"
	cfg := resolve(s.client.defaults, opts)
	q := url.Values{}
	q.Set("k", strconv.Itoa(cfg.kOr(len(ephemeral))))
	payload := ephemeralQueryRQ{QueryCaseIDs: nonNil(queryIDs), EphemeralCaseIDs: nonNil(ephemeral)}
	body, err := s.client.do(ctx, http.MethodPost, s.path(cfg, q, "retrievalByCaseIDs"), op, payload)
	if err != nil {
		return nil, err
	}
	t, err := tabulateMatrix(op, body, CaseIDColumn)
	if err != nil {
		return nil, err
	}
	return s.client.finish(ctx, op, cfg, s.client.round(ctx, op, cfg, t)), nil
}

// SelfSimilarity returns the similarity matrix of the ephemeral cases among themselves.
func (s *EphemeralScope) SelfSimilarity(ctx context.Context, ephemeral []string, opts ...CallOption) (*table.Table, error) {
	const op = "ephemeral self similarity"
	cfg := resolve(s.client.defaults, opts)
	q := url.Values{}
	q.Set("k", strconv.Itoa(cfg.kOr(len(ephemeral))))
	body, err := s.client.do(ctx, http.MethodPost, s.path(cfg, q, "computeSelfSimilarity"), op, nonNil(ephemeral))
	if err != nil {
		return nil, err
	}
	t, err := tabulateMatrix(op, body, CaseIDColumn)
	if err != nil {
		return nil, err
	}
	return s.client.finish(ctx, op, cfg, s.client.round(ctx, op, cfg, t)), nil
}
