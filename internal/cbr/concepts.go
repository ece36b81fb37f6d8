package cbr

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"mycbr/internal/table"
)

// Attribute is one attribute of a concept with its declared data type.
type Attribute struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ConceptScope provides schema discovery: concepts, attributes, similarity
// and amalgamation functions.
type ConceptScope struct {
	client *Client
}

// Concepts returns the schema scope.
func (c *Client) Concepts() *ConceptScope { return &ConceptScope{client: c} }

// List returns the ids of all concepts on the server.
func (s *ConceptScope) List(ctx context.Context) ([]string, error) {
	const op = "list concepts"
	body, err := s.client.do(ctx, http.MethodGet, s.client.endpoint(nil, "concepts"), op, nil)
	if err != nil {
		return nil, err
	}
	return decodeStrings(op, body)
}

// AmalgamationFunctions returns the ids of the amalgamation functions of a concept.
func (s *ConceptScope) AmalgamationFunctions(ctx context.Context, opts ...CallOption) ([]string, error) {
	const op = "list amalgamation functions"
	cfg := resolve(s.client.defaults, opts)
	u := s.client.endpoint(nil, "concepts", cfg.concept, "amalgamationFunctions")
	body, err := s.client.do(ctx, http.MethodGet, u, op, nil)
	if err != nil {
		return nil, err
	}
	return decodeStrings(op, body)
}

// Attributes returns the attributes of a concept in server order.
func (s *ConceptScope) Attributes(ctx context.Context, opts ...CallOption) ([]Attribute, error) {
	const op = "list attributes"
	cfg := resolve(s.client.defaults, opts)
	u := s.client.endpoint(nil, "concepts", cfg.concept, "attributes")
	body, err := s.client.do(ctx, http.MethodGet, u, op, nil)
	if err != nil {
		return nil, err
	}
	res, err := parse(op, body)
	if err != nil {
		return nil, err
	}
	attrs := []Attribute{}
	err = forEachEntry(op, res, func(name string, typ gjson.Result) error {
		attrs = append(attrs, Attribute{Name: name, Type: typ.String()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

// ColumnNames returns the case id column, the similarity column and then every
// attribute of the concept in server order.
func (s *ConceptScope) ColumnNames(ctx context.Context, opts ...CallOption) ([]string, error) {
	attrs, err := s.Attributes(ctx, opts...)
	if err != nil {
		return nil, err
	}
	columns := make([]string, 0, len(attrs)+2)
	columns = append(columns, CaseIDColumn, SimilarityColumn)
	for _, a := range attrs {
		columns = append(columns, a.Name)
	}
	return columns, nil
}

// Attribute returns the server's description of one attribute.
func (s *ConceptScope) Attribute(ctx context.Context, attributeID string, opts ...CallOption) (map[string]any, error) {
	cfg := resolve(s.client.defaults, opts)
	u := s.client.endpoint(nil, "concepts", cfg.concept, "attributes", attributeID)
	var out map[string]any
	if err := s.client.doJSON(ctx, http.MethodGet, u, "get attribute", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AttributeSimilarityFunctions returns the local similarity functions defined for an attribute.
func (s *ConceptScope) AttributeSimilarityFunctions(ctx context.Context, attributeID string, opts ...CallOption) (any, error) {
	cfg := resolve(s.client.defaults, opts)
	u := s.client.endpoint(nil, "concepts", cfg.concept, "attributes", attributeID, "similarityFunctions")
	var out any
	if err := s.client.doJSON(ctx, http.MethodGet, u, "list attribute similarity functions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveAttributes returns the attribute weights of an amalgamation function,
// indexed by attribute id in column "weight".
func (s *ConceptScope) ActiveAttributes(ctx context.Context, opts ...CallOption) (*table.Table, error) {
	const op = "get active attributes"
	cfg := resolve(s.client.defaults, opts)
	u := s.client.endpoint(nil, "concepts", cfg.concept, "amalgamationFunctions", cfg.function, "getActiveAttributes")
	body, err := s.client.do(ctx, http.MethodGet, u, op, nil)
	if err != nil {
		return nil, err
	}
	t, err := tabulateKeyValue(op, body, AttributeIDColumn, "weight")
	if err != nil {
		return nil, err
	}
	return s.client.finish(ctx, op, cfg, t), nil
}

// ActiveSimilarityFunctions returns, per attribute, the local similarity
// function the amalgamation function uses.
func (s *ConceptScope) ActiveSimilarityFunctions(ctx context.Context, opts ...CallOption) (*table.Table, error) {
	const op = "get active similarity functions"
	cfg := resolve(s.client.defaults, opts)
	u := s.client.endpoint(nil, "concepts", cfg.concept, "amalgamationFunctions", cfg.function, "getAttributeActiveSimilarityFunctions")
	body, err := s.client.do(ctx, http.MethodGet, u, op, nil)
	if err != nil {
		return nil, err
	}
	t, err := tabulateKeyValue(op, body, AttributeIDColumn, "localSimilarityFunctionID")
	if err != nil {
		return nil, err
	}
	return s.client.finish(ctx, op, cfg, t), nil
}

// SimilarityFunctionIDs returns every local similarity function id of every
// attribute, one row per attribute, in columns LSF_ID_1..n.
func (s *ConceptScope) SimilarityFunctionIDs(ctx context.Context, opts ...CallOption) (*table.Table, error) {
	const op = "list similarity function ids"
	cfg := resolve(s.client.defaults, opts)
	u := s.client.endpoint(nil, "concepts", cfg.concept, "getAllAttributeSimilarityFunctionIDs")
	body, err := s.client.do(ctx, http.MethodGet, u, op, nil)
	if err != nil {
		return nil, err
	}
	t, err := tabulateKeyList(op, body, AttributeIDColumn, "LSF_ID_")
	if err != nil {
		return nil, err
	}
	return s.client.finish(ctx, op, cfg, t), nil
}

// AllCases returns every case of a concept across casebases, with the columns the server sends.
func (s *ConceptScope) AllCases(ctx context.Context, opts ...CallOption) (*table.Table, error) {
	const op = "list concept cases"
	cfg := resolve(s.client.defaults, opts)
	u := s.client.endpoint(nil, "concepts", cfg.concept, "cases")
	body, err := s.client.do(ctx, http.MethodGet, u, op, nil)
	if err != nil {
		return nil, err
	}
	t, err := tabulateRecords(op, body, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.client.finish(ctx, op, cfg, t), nil
}
