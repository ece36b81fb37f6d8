// Package mcp serves the CBR client as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"fmt"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"mycbr/internal/cbr"
	"mycbr/internal/logging"
	"mycbr/internal/table"
)

// Server exposes a cbr.Client as MCP tools.
type Server struct {
	MCPServer *sdkmcp.Server

	// mu serialises tool calls: the client's defaults are not safe for
	// concurrent mutation and set_defaults changes them.
	mu     sync.Mutex
	client *cbr.Client
}

// NewServer creates an MCP server with schema, retrieval and defaults tools
// backed by client.
func NewServer(client *cbr.Client, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{client: client}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "mycbr", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_concepts",
		Description: "List the concepts (case schemas) of the CBR server and the active concept.",
	}, s.handleListConcepts)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_casebases",
		Description: "List the casebases of the CBR server and the active casebase.",
	}, s.handleListCasebases)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "get_attributes",
		Description: "List the attributes of a concept with their data types, in server order.",
	}, s.handleGetAttributes)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "retrieve_by_case_id",
		Description: "Retrieve the cases most similar to a stored case. Returns a table indexed by caseID with a similarity column, most similar first.",
	}, s.handleRetrieveByCaseID)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "compare_two_cases",
		Description: "Compare two cases attribute by attribute. Returns a table indexed by attributeID with a similarity column.",
	}, s.handleCompareTwoCases)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "casebase_self_similarity",
		Description: "Compute the case-by-case similarity matrix of a casebase, optionally ordered by descending row sum.",
	}, s.handleSelfSimilarity)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "set_defaults",
		Description: "Set the active concept, casebase and/or amalgamation function used when a tool call names none.",
	}, s.handleSetDefaults)
}

// --- Tool input/output types ---

type emptyInput struct{}

// callOptions maps the identifiers and shaping shared by the retrieval tools
// to client call options.
func callOptions(concept, casebase, function string, k, precision *int) []cbr.CallOption {
	opts := []cbr.CallOption{
		cbr.InConcept(concept),
		cbr.InCasebase(casebase),
		cbr.UsingFunction(function),
	}
	if k != nil {
		opts = append(opts, cbr.TopK(*k))
	}
	if precision != nil {
		opts = append(opts, cbr.Precision(*precision))
	}
	return opts
}

type listOutput struct {
	IDs    []string `json:"ids"`
	Active string   `json:"active,omitempty"`
}

type getAttributesInput struct {
	Concept string `json:"concept,omitempty" jsonschema:"concept ID (default: active concept)"`
}

type getAttributesOutput struct {
	Concept    string          `json:"concept"`
	Attributes []cbr.Attribute `json:"attributes"`
}

type retrieveByCaseIDInput struct {
	CaseID    string `json:"case_id" jsonschema:"ID of the query case"`
	Concept   string `json:"concept,omitempty" jsonschema:"concept ID (default: active concept)"`
	Casebase  string `json:"casebase,omitempty" jsonschema:"casebase ID (default: active casebase)"`
	Function  string `json:"function,omitempty" jsonschema:"amalgamation function ID (default: active function)"`
	K         *int   `json:"k,omitempty" jsonschema:"number of cases to return (-1 = all)"`
	Precision *int   `json:"precision,omitempty" jsonschema:"decimal places of similarity values (default 3, negative = unrounded)"`
}

type compareTwoCasesInput struct {
	CaseID1   string `json:"case_id_1" jsonschema:"ID of the first case"`
	CaseID2   string `json:"case_id_2" jsonschema:"ID of the second case"`
	Concept   string `json:"concept,omitempty" jsonschema:"concept ID (default: active concept)"`
	Function  string `json:"function,omitempty" jsonschema:"amalgamation function ID (default: active function)"`
	Precision *int   `json:"precision,omitempty" jsonschema:"decimal places of similarity values (default 3, negative = unrounded)"`
}

type selfSimilarityInput struct {
	Ordered   bool   `json:"ordered,omitempty" jsonschema:"order rows and columns by descending row sum"`
	Concept   string `json:"concept,omitempty" jsonschema:"concept ID (default: active concept)"`
	Casebase  string `json:"casebase,omitempty" jsonschema:"casebase ID (default: active casebase)"`
	Function  string `json:"function,omitempty" jsonschema:"amalgamation function ID (default: active function)"`
	K         *int   `json:"k,omitempty" jsonschema:"number of cases to return (-1 = all)"`
	Precision *int   `json:"precision,omitempty" jsonschema:"decimal places of similarity values (default 3, negative = unrounded)"`
}

type setDefaultsInput struct {
	Concept  string `json:"concept,omitempty" jsonschema:"concept ID to activate"`
	Casebase string `json:"casebase,omitempty" jsonschema:"casebase ID to activate"`
	Function string `json:"function,omitempty" jsonschema:"amalgamation function ID to activate"`
}

type defaultsOutput struct {
	Concept  string   `json:"concept"`
	Casebase string   `json:"casebase"`
	Function string   `json:"function"`
	Columns  []string `json:"columns"`
}

// tableOutput is the JSON encoding of a table.Table with an explicit schema.
type tableOutput struct {
	IndexName string      `json:"index_name,omitempty"`
	Indexed   bool        `json:"indexed"`
	Columns   []string    `json:"columns"`
	Rows      []rowOutput `json:"rows"`
}

type rowOutput struct {
	Label  string `json:"label,omitempty"`
	Values []any  `json:"values"`
}

func toOutput(t *table.Table) tableOutput {
	out := tableOutput{
		IndexName: t.IndexName(),
		Indexed:   t.Indexed(),
		Columns:   nonNil(t.Columns()),
		Rows:      make([]rowOutput, t.Len()),
	}
	labels := t.Labels()
	for i := range out.Rows {
		cells := t.Row(i)
		values := make([]any, len(cells))
		for j, c := range cells {
			if c.Valid {
				values[j] = c.Value
			}
		}
		out.Rows[i].Values = values
		if t.Indexed() {
			out.Rows[i].Label = labels[i]
		}
	}
	return out
}

// --- Tool handlers ---

func (s *Server) handleListConcepts(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, listOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.client.Concepts().List(ctx)
	if err != nil {
		return nil, listOutput{}, fmt.Errorf("list_concepts: %w", err)
	}
	return nil, listOutput{IDs: nonNil(ids), Active: s.client.Defaults().Concept()}, nil
}

func (s *Server) handleListCasebases(ctx context.Context, _ *sdkmcp.CallToolRequest, _ emptyInput) (*sdkmcp.CallToolResult, listOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.client.Casebases().List(ctx)
	if err != nil {
		return nil, listOutput{}, fmt.Errorf("list_casebases: %w", err)
	}
	return nil, listOutput{IDs: nonNil(ids), Active: s.client.Defaults().Casebase()}, nil
}

func (s *Server) handleGetAttributes(ctx context.Context, _ *sdkmcp.CallToolRequest, input getAttributesInput) (*sdkmcp.CallToolResult, getAttributesOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	concept := input.Concept
	if concept == "" {
		concept = s.client.Defaults().Concept()
	}
	attrs, err := s.client.Concepts().Attributes(ctx, cbr.InConcept(concept))
	if err != nil {
		return nil, getAttributesOutput{}, fmt.Errorf("get_attributes: %w", err)
	}
	if attrs == nil {
		attrs = []cbr.Attribute{}
	}
	return nil, getAttributesOutput{Concept: concept, Attributes: attrs}, nil
}

func (s *Server) handleRetrieveByCaseID(ctx context.Context, _ *sdkmcp.CallToolRequest, input retrieveByCaseIDInput) (*sdkmcp.CallToolResult, tableOutput, error) {
	if input.CaseID == "" {
		return nil, tableOutput{}, fmt.Errorf("case_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.client.Retrieval().ByCaseID(ctx, input.CaseID, callOptions(input.Concept, input.Casebase, input.Function, input.K, input.Precision)...)
	if err != nil {
		return nil, tableOutput{}, fmt.Errorf("retrieve_by_case_id: %w", err)
	}
	return nil, toOutput(t), nil
}

func (s *Server) handleCompareTwoCases(ctx context.Context, _ *sdkmcp.CallToolRequest, input compareTwoCasesInput) (*sdkmcp.CallToolResult, tableOutput, error) {
	if input.CaseID1 == "" || input.CaseID2 == "" {
		return nil, tableOutput{}, fmt.Errorf("case_id_1 and case_id_2 are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.client.Analytics().CompareTwoCases(ctx, input.CaseID1, input.CaseID2, callOptions(input.Concept, "", input.Function, nil, input.Precision)...)
	if err != nil {
		return nil, tableOutput{}, fmt.Errorf("compare_two_cases: %w", err)
	}
	return nil, toOutput(t), nil
}

func (s *Server) handleSelfSimilarity(ctx context.Context, _ *sdkmcp.CallToolRequest, input selfSimilarityInput) (*sdkmcp.CallToolResult, tableOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.client.Casebases().SelfSimilarity(ctx, callOptions(input.Concept, input.Casebase, input.Function, input.K, input.Precision)...)
	if err != nil {
		return nil, tableOutput{}, fmt.Errorf("casebase_self_similarity: %w", err)
	}
	if input.Ordered && !t.Empty() {
		if t, err = t.OrderByRowSum(); err != nil {
			return nil, tableOutput{}, fmt.Errorf("casebase_self_similarity: %w", err)
		}
	}
	return nil, toOutput(t), nil
}

func (s *Server) handleSetDefaults(ctx context.Context, _ *sdkmcp.CallToolRequest, input setDefaultsInput) (*sdkmcp.CallToolResult, defaultsOutput, error) {
	logger := logging.New("mcp")
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.Concept != "" {
		if _, err := s.client.SetConcept(ctx, input.Concept); err != nil {
			return nil, defaultsOutput{}, fmt.Errorf("set_defaults: %w", err)
		}
	}
	s.client.SetCasebase(input.Casebase)
	s.client.SetFunction(input.Function)

	d := s.client.Defaults()
	columns, _ := d.ColumnNames()
	logger.Info("defaults updated", "concept", d.Concept(), "casebase", d.Casebase(), "function", d.Function())
	return nil, defaultsOutput{
		Concept:  d.Concept(),
		Casebase: d.Casebase(),
		Function: d.Function(),
		Columns:  nonNil(columns),
	}, nil
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
