package cbr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"mycbr/internal/table"
)

// AnalyticsScope explains similarity values: per-attribute comparisons of two
// cases and local or global similarity of one case against many.
type AnalyticsScope struct {
	client *Client
}

// Analytics returns the analytics scope.
func (c *Client) Analytics() *AnalyticsScope { return &AnalyticsScope{client: c} }

// CompareTwoCases returns the per-attribute similarity of two cases, indexed
// by attribute id in column "similarity".
func (s *AnalyticsScope) CompareTwoCases(ctx context.Context, caseID1, caseID2 string, opts ...CallOption) (*table.Table, error) {
	return s.twoCases(ctx, "compare two cases", "compareTwoCases", caseID1, caseID2, opts)
}

// LocalSimilarityOfTwoCases returns the local similarity of two cases per attribute.
func (s *AnalyticsScope) LocalSimilarityOfTwoCases(ctx context.Context, caseID1, caseID2 string, opts ...CallOption) (*table.Table, error) {
	return s.twoCases(ctx, "local similarity of two cases", "computeLocalSimilarityOfTwoCases", caseID1, caseID2, opts)
}

// GlobalSimilarityOfTwoCases returns the global similarity of two cases.
func (s *AnalyticsScope) GlobalSimilarityOfTwoCases(ctx context.Context, caseID1, caseID2 string, opts ...CallOption) (*table.Table, error) {
	return s.twoCases(ctx, "global similarity of two cases", "computeGlobalSimilarityOfTwoCases", caseID1, caseID2, opts)
}

// EphemeralLocalSimilarity returns the local similarities between caseID and
// each ephemeral case: one row per ephemeral case, one column per attribute.
func (s *AnalyticsScope) EphemeralLocalSimilarity(ctx context.Context, caseID string, ephemeral []string, opts ...CallOption) (*table.Table, error) {
	return s.oneAgainstMany(ctx, "ephemeral local similarity", "computeEphemeralLocalSimilarity", http.MethodPost, caseID, nonNil(ephemeral), opts)
}

// EphemeralGlobalSimilarity returns the global similarity between caseID and each ephemeral case.
func (s *AnalyticsScope) EphemeralGlobalSimilarity(ctx context.Context, caseID string, ephemeral []string, opts ...CallOption) (*table.Table, error) {
	return s.oneAgainstMany(ctx, "ephemeral global similarity", "computeEphemeralGlobalSimilarity", http.MethodPost, caseID, nonNil(ephemeral), opts)
}

// LocalSimilarityWithAllCases returns the local similarities between caseID
// and every case of the casebase.
func (s *AnalyticsScope) LocalSimilarityWithAllCases(ctx context.Context, caseID string, opts ...CallOption) (*table.Table, error) {
	return s.oneAgainstMany(ctx, "local similarity with all cases", "computeLocalSimilarityWithAllCases", http.MethodGet, caseID, nil, opts)
}

// GlobalSimilarityWithAllCases returns the global similarity between caseID
// and every case of the casebase.
func (s *AnalyticsScope) GlobalSimilarityWithAllCases(ctx context.Context, caseID string, opts ...CallOption) (*table.Table, error) {
	return s.oneAgainstMany(ctx, "global similarity with all cases", "computeGlobalSimilarityWithAllCases", http.MethodGet, caseID, nil, opts)
}

func (s *AnalyticsScope) twoCases(ctx context.Context, op, path, caseID1, caseID2 string, opts []CallOption) (*table.Table, error) {
	cfg := resolve(s.client.defaults, opts)
	q := url.Values{}
	q.Set("caseID_1", caseID1)
	q.Set("caseID_2", caseID2)
	u := s.client.endpoint(q, "analytics", "concepts", cfg.concept, "amalgamationFunctions", cfg.function, path)
	body, err := s.client.do(ctx, http.MethodGet, u, op, nil)
	if err != nil {
		return nil, err
	}
	t, err := tabulateKeyValue(op, body, AttributeIDColumn, SimilarityColumn)
	if err != nil {
		return nil, err
	}
	return s.client.finish(ctx, op, cfg, s.client.round(ctx, op, cfg, t)), nil
}

func (s *AnalyticsScope) oneAgainstMany(ctx context.Context, op, path, method, caseID string, payload any, opts []CallOption) (*table.Table, error) {
	cfg := resolve(s.client.defaults, opts)
	q := url.Values{}
	q.Set("caseID", caseID)
	u := s.client.endpoint(q, "analytics", "concepts", cfg.concept, "casebases", cfg.casebase,
		"amalgamationFunctions", cfg.function, path)
	body, err := s.client.do(ctx, method, u, op, payload)
	if err != nil {
		return nil, err
	}
	t, err := tabulateMatrix(op, body, "")
	if err != nil {
		return nil, err
	}
	t, err = s.client.round(ctx, op, cfg, t).Transpose()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	t.SetIndexName(CaseIDColumn)
	return s.client.finish(ctx, op, cfg, t), nil
}
