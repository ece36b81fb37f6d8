package cbr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"mycbr/internal/table"
)

func newServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := routes[r.Method+" "+r.URL.Path]; ok {
			h(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func reply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

// patientRoutes answers the discovery calls of New for a server with one concept.
func patientRoutes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"GET /concepts":                    reply(`["patient"]`),
		"GET /concepts/patient/attributes": reply(`{"age":"integer","body_main":"symbol"}`),
	}
}

// newClient starts a fake server with the discovery routes plus routes and
// returns a client whose casebase is "cb" and function "fn".
func newClient(t *testing.T, routes map[string]http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	all := patientRoutes()
	maps.Copy(all, routes)
	srv := newServer(t, all)
	c, err := New(context.Background(), srv.URL, append([]Option{WithHTTPClient(srv.Client())}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.SetCasebase("cb")
	c.SetFunction("fn")
	return c
}

func labels(tb *table.Table) []string { return tb.Labels() }

func values(t *testing.T, tb *table.Table, column string) []any {
	t.Helper()
	cells, ok := tb.Column(column)
	if !ok {
		t.Fatalf("no column %q in %v", column, tb.Columns())
	}
	out := make([]any, len(cells))
	for i, c := range cells {
		if c.Valid {
			out[i] = c.Value
		}
	}
	return out
}

type recordingMetrics struct {
	mu       sync.Mutex
	requests []string
	empty    []string
}

func (m *recordingMetrics) ObserveRequest(operation, method string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, operation)
}

func (m *recordingMetrics) ObserveEmpty(operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.empty = append(m.empty, operation)
}

// --- Construction and defaults ---

func TestNew_DiscoversFirstConceptAndColumns(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts": reply(`["patient","car"]`),
	})

	if got := c.Defaults().Concept(); got != "patient" {
		t.Errorf("concept = %q, want patient", got)
	}
	got, ok := c.Defaults().ColumnNames()
	if !ok {
		t.Fatal("column cache not set")
	}
	want := []string{"caseID", "similarity", "age", "body_main"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("column names (-want +got):\n%s", diff)
	}
}

func TestNew_AttributeOrderFollowsServer(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts/patient/attributes": reply(`{"zeta":"string","alpha":"integer","mid":"symbol"}`),
	})
	got, _ := c.Defaults().ColumnNames()
	want := []string{"caseID", "similarity", "zeta", "alpha", "mid"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("column names (-want +got):\n%s", diff)
	}
}

func TestNew_EmptyConceptListIsNotAnError(t *testing.T) {
	var buf bytes.Buffer
	srv := newServer(t, map[string]http.HandlerFunc{"GET /concepts": reply(`[]`)})

	c, err := New(context.Background(), srv.URL,
		WithHTTPClient(srv.Client()),
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Defaults().Concept() != "" {
		t.Errorf("concept = %q, want empty", c.Defaults().Concept())
	}
	if _, ok := c.Defaults().ColumnNames(); ok {
		t.Error("column cache set without a concept")
	}
	if !strings.Contains(buf.String(), "server reports no concepts") {
		t.Errorf("missing warning in log: %s", buf.String())
	}
}

func TestNew_PresetConceptSkipsDiscovery(t *testing.T) {
	routes := patientRoutes()
	routes["GET /concepts"] = func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected concept discovery")
		reply(`["other"]`)(w, r)
	}
	srv := newServer(t, routes)

	d := NewDefaults()
	d.SetConcept("patient")
	c, err := New(context.Background(), srv.URL+"/", WithHTTPClient(srv.Client()), WithDefaults(d))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Defaults() != d {
		t.Error("client does not use the supplied defaults")
	}
	if c.BaseURL() != srv.URL {
		t.Errorf("base URL = %q, want trailing slash trimmed", c.BaseURL())
	}
	if d.BaseURL() != srv.URL {
		t.Errorf("defaults base URL = %q", d.BaseURL())
	}
	if _, ok := d.ColumnNames(); !ok {
		t.Error("column cache not computed for preset concept")
	}
}

func TestNew_DiscoveryFailurePropagates(t *testing.T) {
	srv := newServer(t, map[string]http.HandlerFunc{
		"GET /concepts": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"status":500,"error":"Internal Server Error","message":"project not loaded"}`)
		},
	})
	_, err := New(context.Background(), srv.URL, WithHTTPClient(srv.Client()))
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsServerError(err) {
		t.Errorf("expected IsServerError, got: %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message() != "project not loaded" {
		t.Errorf("message not taken from error body: %v", err)
	}
}

func TestNew_RejectsBadOptions(t *testing.T) {
	if _, err := New(context.Background(), "", WithTimeout(-time.Second)); err == nil {
		t.Error("negative timeout accepted")
	}
	if _, err := New(context.Background(), "", WithDefaults(nil)); err == nil {
		t.Error("nil defaults accepted")
	}
}

func TestDefaults_SettersRejectEmpty(t *testing.T) {
	d := NewDefaults()
	for name, set := range map[string]func(string) bool{
		"concept":  d.SetConcept,
		"casebase": d.SetCasebase,
		"function": d.SetFunction,
	} {
		if !set("first") {
			t.Errorf("%s: set(first) = false", name)
		}
		if set("") {
			t.Errorf("%s: set(\"\") = true", name)
		}
	}
	if d.Concept() != "first" || d.Casebase() != "first" || d.Function() != "first" {
		t.Errorf("empty id replaced a value: %q %q %q", d.Concept(), d.Casebase(), d.Function())
	}
}

func TestDefaults_ConceptChangeInvalidatesColumns(t *testing.T) {
	d := NewDefaults()
	d.SetConcept("patient")
	d.setColumns("patient", []string{"caseID", "similarity", "age"})
	if _, ok := d.ColumnNames(); !ok {
		t.Fatal("cache not set")
	}
	d.SetConcept("patient")
	if _, ok := d.ColumnNames(); !ok {
		t.Error("re-setting the same concept dropped the cache")
	}
	d.SetConcept("car")
	if _, ok := d.ColumnNames(); ok {
		t.Error("cache still valid after concept change")
	}
}

func TestClient_SetConceptRefreshesColumns(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts/car/attributes": reply(`{"make":"symbol","price":"float"}`),
	})

	ok, err := c.SetConcept(context.Background(), "car")
	if err != nil || !ok {
		t.Fatalf("SetConcept = %v, %v", ok, err)
	}
	got, _ := c.Defaults().ColumnNames()
	want := []string{"caseID", "similarity", "make", "price"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("column names (-want +got):\n%s", diff)
	}

	ok, err = c.SetConcept(context.Background(), "")
	if ok || err != nil {
		t.Errorf("SetConcept(\"\") = %v, %v", ok, err)
	}
	if c.Defaults().Concept() != "car" {
		t.Errorf("concept = %q, want car", c.Defaults().Concept())
	}
}

func TestClient_SetConceptFailureKeepsActiveConcept(t *testing.T) {
	c := newClient(t, nil)
	before, _ := c.Defaults().ColumnNames()

	ok, err := c.SetConcept(context.Background(), "ship")
	if ok || err == nil {
		t.Fatalf("SetConcept(ship) = %v, %v; want false and an error", ok, err)
	}
	if !IsNotFound(err) {
		t.Errorf("expected IsNotFound, got: %v", err)
	}
	if got := c.Defaults().Concept(); got != "patient" {
		t.Errorf("concept = %q, want patient", got)
	}
	after, cached := c.Defaults().ColumnNames()
	if !cached {
		t.Fatal("column cache dropped after failed concept change")
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("column names (-before +after):\n%s", diff)
	}
}

func TestNew_TimeoutLeavesSuppliedClientUnchanged(t *testing.T) {
	srv := newServer(t, patientRoutes())
	hc := srv.Client()
	c, err := New(context.Background(), srv.URL, WithHTTPClient(hc), WithTimeout(3*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if hc.Timeout != 0 {
		t.Errorf("supplied client timeout = %s, want 0", hc.Timeout)
	}
	if c.httpClient == hc || c.httpClient.Timeout != 3*time.Second {
		t.Errorf("client timeout = %s, want 3s on a copy", c.httpClient.Timeout)
	}
}

// --- Retrieval ---

func TestRetrieval_ByCaseID_RoundsAndSortsDescending(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts/patient/casebases/cb/amalgamationFunctions/fn/retrievalByCaseID": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("caseID") != "p0" || r.URL.Query().Get("k") != "-1" {
				t.Errorf("unexpected query: %s", r.URL.RawQuery)
			}
			reply(`{"p2":0.5001,"p1":0.9231}`)(w, r)
		},
	})

	got, err := c.Retrieval().ByCaseID(context.Background(), "p0")
	if err != nil {
		t.Fatalf("ByCaseID: %v", err)
	}
	if got.IndexName() != "caseID" {
		t.Errorf("index name = %q", got.IndexName())
	}
	if diff := cmp.Diff([]string{"similarity"}, got.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"p1", "p2"}, labels(got)); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{0.923, 0.5}, values(t, got, "similarity")); diff != "" {
		t.Errorf("values (-want +got):\n%s", diff)
	}
}

func TestRetrieval_ByCaseID_TiesKeepServerOrder(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts/patient/casebases/cb/amalgamationFunctions/fn/retrievalByCaseID": reply(
			`{"d":0.5,"a":0.9,"c":0.5,"b":0.9,"e":0.1}`),
	})
	got, err := c.Retrieval().ByCaseID(context.Background(), "x", TopK(5))
	if err != nil {
		t.Fatalf("ByCaseID: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "d", "c", "e"}, labels(got)); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
}

func TestRetrieval_PrecisionOption(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts/patient/casebases/cb/amalgamationFunctions/fn/retrievalByCaseID": reply(`{"p1":0.98765}`),
	})
	raw, err := c.Retrieval().ByCaseID(context.Background(), "p0", Precision(-1))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{0.98765}, values(t, raw, "similarity")); diff != "" {
		t.Errorf("unrounded (-want +got):\n%s", diff)
	}
	one, err := c.Retrieval().ByCaseID(context.Background(), "p0", Precision(1))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]any{1.0}, values(t, one, "similarity")); diff != "" {
		t.Errorf("precision 1 (-want +got):\n%s", diff)
	}
}

func TestRetrieval_CallOptionsOverrideDefaults(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts/car/casebases/used cars/amalgamationFunctions/price only/retrievalByCaseID": reply(`{"c1":1}`),
	})
	got, err := c.Retrieval().ByCaseID(context.Background(), "c0",
		InConcept("car"), InCasebase("used cars"), UsingFunction("price only"))
	if err != nil {
		t.Fatalf("ByCaseID: %v", err)
	}
	if got.Len() != 1 {
		t.Errorf("rows = %d, want 1", got.Len())
	}
	if c.Defaults().Concept() != "patient" || c.Defaults().Casebase() != "cb" {
		t.Error("call options changed the defaults")
	}
}

func TestRetrieval_UnsetCasebaseReachesServer(t *testing.T) {
	routes := patientRoutes()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := routes[r.Method+" "+r.URL.Path]; ok {
			h(w, r)
			return
		}
		if !strings.Contains(r.URL.Path, "/casebases//amalgamationFunctions//") {
			t.Errorf("empty identifiers not sent: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"status":400,"error":"Bad Request","message":"unknown casebase"}`)
	}))
	defer srv.Close()

	c, err := New(context.Background(), srv.URL, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Retrieval().ByCaseID(context.Background(), "p1")
	if !IsBadRequest(err) {
		t.Fatalf("expected IsBadRequest, got: %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("not an APIError")
	}
	if apiErr.Operation() != "retrieve by case id" || apiErr.Message() != "unknown casebase" {
		t.Errorf("unexpected error fields: %q %q", apiErr.Operation(), apiErr.Message())
	}
}

func TestRetrieval_ByMultipleCaseIDs(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"POST /concepts/patient/casebases/cb/amalgamationFunctions/fn/retrievalByMultipleCaseIDs": func(w http.ResponseWriter, r *http.Request) {
			var ids []string
			if err := json.NewDecoder(r.Body).Decode(&ids); err != nil {
				t.Errorf("decode payload: %v", err)
			}
			if diff := cmp.Diff([]string{"q1", "q2"}, ids); diff != "" {
				t.Errorf("payload (-want +got):\n%s", diff)
			}
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("content type = %q", r.Header.Get("Content-Type"))
			}
			reply(`{"q1":{"p1":0.12345,"p2":0.5},"q2":{"p2":0.25}}`)(w, r)
		},
	})

	got, err := c.Retrieval().ByMultipleCaseIDs(context.Background(), []string{"q1", "q2"}, TopK(2))
	if err != nil {
		t.Fatalf("ByMultipleCaseIDs: %v", err)
	}
	if diff := cmp.Diff([]string{"q1", "q2"}, got.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"p1", "p2"}, labels(got)); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{0.123, 0.5}, values(t, got, "q1")); diff != "" {
		t.Errorf("q1 (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{nil, 0.25}, values(t, got, "q2")); diff != "" {
		t.Errorf("q2 (-want +got):\n%s", diff)
	}
}

func TestRetrieval_ByAttribute(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts/patient/casebases/cb/amalgamationFunctions/fn/retrievalByAttribute": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("Symbol attribute name") != "body_main" || q.Get("value") != "head" || q.Get("k") != "-1" {
				t.Errorf("unexpected query: %s", r.URL.RawQuery)
			}
			reply(`{"similarCases":{"c1":0.4,"c2":0.8}}`)(w, r)
		},
	})

	got, err := c.Retrieval().ByAttribute(context.Background(), "body_main", "head")
	if err != nil {
		t.Fatalf("ByAttribute: %v", err)
	}
	if got.IndexName() != "caseID" {
		t.Errorf("index name = %q", got.IndexName())
	}
	if diff := cmp.Diff([]string{"similarity"}, got.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"c2", "c1"}, labels(got)); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
}

func TestRetrieval_ByCaseIDWithContent(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts/patient/casebases/cb/amalgamationFunctions/fn/retrievalByCaseIDWithContent": reply(
			`[{"caseID":"p1","similarity":0.66666,"age":41},{"caseID":"p2","similarity":0.5,"age":"_unknown_"}]`),
	})
	got, err := c.Retrieval().ByCaseIDWithContent(context.Background(), "p0")
	if err != nil {
		t.Fatalf("ByCaseIDWithContent: %v", err)
	}
	if diff := cmp.Diff([]string{"caseID", "similarity", "age"}, got.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{0.667, 0.5}, values(t, got, "similarity")); diff != "" {
		t.Errorf("similarity (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{int64(41), nil}, values(t, got, "age")); diff != "" {
		t.Errorf("age (-want +got):\n%s", diff)
	}
}

func TestRetrieval_ByCaseIDWithContentRoundsAttributes(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts/patient/casebases/cb/amalgamationFunctions/fn/retrievalByCaseIDWithContent": reply(
			`[{"caseID":"p1","similarity":0.91234,"weight":72.34567,"body_main":"athletic"}]`),
	})
	got, err := c.Retrieval().ByCaseIDWithContent(context.Background(), "p0", Precision(2))
	if err != nil {
		t.Fatalf("ByCaseIDWithContent: %v", err)
	}
	if diff := cmp.Diff([]any{0.91}, values(t, got, "similarity")); diff != "" {
		t.Errorf("similarity (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{72.35}, values(t, got, "weight")); diff != "" {
		t.Errorf("weight (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"athletic"}, values(t, got, "body_main")); diff != "" {
		t.Errorf("body_main (-want +got):\n%s", diff)
	}
}

// --- Casebases ---

func TestCasebases_AddDeleteReturnServerFlag(t *testing.T) {
	added := map[string]bool{}
	c := newClient(t, map[string]http.HandlerFunc{
		"PUT /casebases/new cb": func(w http.ResponseWriter, r *http.Request) {
			ok := !added["new cb"]
			added["new cb"] = true
			json.NewEncoder(w).Encode(ok)
		},
		"DELETE /casebases/new cb": reply(`false`),
	})

	for i, want := range []bool{true, false} {
		got, err := c.Casebases().Add(context.Background(), "new cb")
		if err != nil {
			t.Fatalf("Add #%d: %v", i+1, err)
		}
		if got != want {
			t.Errorf("Add #%d = %v, want %v", i+1, got, want)
		}
	}
	got, err := c.Casebases().Delete(context.Background(), "new cb")
	if err != nil || got {
		t.Errorf("Delete = %v, %v; want false, nil", got, err)
	}
}

func TestCasebases_CasesUseCachedColumns(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts/patient/casebases/cb/cases": reply(
			`[{"caseID":"p1","age":42,"extra":"x","body_main":"_unknown_"},{"body_main":"head","caseID":"p2"}]`),
	})

	got, err := c.Casebases().Cases(context.Background())
	if err != nil {
		t.Fatalf("Cases: %v", err)
	}
	if diff := cmp.Diff([]string{"caseID", "similarity", "age", "body_main"}, got.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{nil, "head"}, values(t, got, "body_main")); diff != "" {
		t.Errorf("body_main (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{int64(42), nil}, values(t, got, "age")); diff != "" {
		t.Errorf("age (-want +got):\n%s", diff)
	}
}

func TestCasebases_CasesOfOtherConceptUseReplyColumns(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts/car/casebases/cb/cases": reply(`[{"caseID":"c1","make":"vw"}]`),
	})
	got, err := c.Casebases().Cases(context.Background(), InConcept("car"))
	if err != nil {
		t.Fatalf("Cases: %v", err)
	}
	if diff := cmp.Diff([]string{"caseID", "make"}, got.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
}

func TestCasebases_Case(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts/patient/casebases/cb/cases/p1": reply(`{"caseID":"p1","age":42}`),
	})
	got, err := c.Casebases().Case(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Case: %v", err)
	}
	if got.Len() != 1 {
		t.Fatalf("rows = %d, want 1", got.Len())
	}
	if diff := cmp.Diff([]string{"caseID", "age"}, got.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
}

func TestCasebases_SelfSimilarity(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts/patient/casebases/cb/computeSelfSimilarity": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("amalgamationFunctionID") != "fn" || r.URL.Query().Get("k") != "-1" {
				t.Errorf("unexpected query: %s", r.URL.RawQuery)
			}
			reply(`{"p2":{"p2":1.0,"p1":0.33333},"p1":{"p2":0.33333,"p1":1.0}}`)(w, r)
		},
	})
	got, err := c.Casebases().SelfSimilarity(context.Background())
	if err != nil {
		t.Fatalf("SelfSimilarity: %v", err)
	}
	if diff := cmp.Diff([]string{"p1", "p2"}, got.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"p2", "p1"}, labels(got)); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{0.333, 1.0}, values(t, got, "p1")); diff != "" {
		t.Errorf("p1 (-want +got):\n%s", diff)
	}
}

// --- Concepts ---

func TestConcepts_ActiveAttributes(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts/patient/amalgamationFunctions/fn/getActiveAttributes": reply(`{"age":1.0,"body_main":0}`),
	})
	got, err := c.Concepts().ActiveAttributes(context.Background())
	if err != nil {
		t.Fatalf("ActiveAttributes: %v", err)
	}
	if got.IndexName() != "attributeID" {
		t.Errorf("index name = %q", got.IndexName())
	}
	if diff := cmp.Diff([]string{"weight"}, got.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"age", "body_main"}, labels(got)); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
}

func TestConcepts_SimilarityFunctionIDsPadsRaggedLists(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts/patient/getAllAttributeSimilarityFunctionIDs": reply(
			`{"age":["age_default","age_strict"],"body_main":["body_default"]}`),
	})
	got, err := c.Concepts().SimilarityFunctionIDs(context.Background())
	if err != nil {
		t.Fatalf("SimilarityFunctionIDs: %v", err)
	}
	if diff := cmp.Diff([]string{"LSF_ID_1", "LSF_ID_2"}, got.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"age_strict", nil}, values(t, got, "LSF_ID_2")); diff != "" {
		t.Errorf("LSF_ID_2 (-want +got):\n%s", diff)
	}
}

func TestConcepts_Attributes(t *testing.T) {
	c := newClient(t, nil)
	got, err := c.Concepts().Attributes(context.Background())
	if err != nil {
		t.Fatalf("Attributes: %v", err)
	}
	want := []Attribute{{Name: "age", Type: "integer"}, {Name: "body_main", Type: "symbol"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("attributes (-want +got):\n%s", diff)
	}
}

// --- Ephemeral ---

func TestEphemeral_RetrieveWithContent(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"POST /ephemeral/concepts/patient/casebases/cb/amalgamationFunctions/fn/retrievalByCaseIDWithContent": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("k") != "2" {
				t.Errorf("k = %q, want number of ephemeral cases", r.URL.Query().Get("k"))
			}
			reply(`[{"caseID":"e1","similarity":"0.41234","age":30},` +
				`{"caseID":"e2","similarity":"0.91","age":40,"body_main":"_unknown_"}]`)(w, r)
		},
	})

	got, err := c.Ephemeral().RetrieveWithContent(context.Background(), "p0", []string{"e1", "e2"})
	if err != nil {
		t.Fatalf("RetrieveWithContent: %v", err)
	}
	if diff := cmp.Diff([]string{"caseID", "similarity", "age", "body_main"}, got.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"e2", "e1"}, values(t, got, "caseID")); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{0.91, 0.412}, values(t, got, "similarity")); diff != "" {
		t.Errorf("similarity (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{nil, nil}, values(t, got, "body_main")); diff != "" {
		t.Errorf("body_main (-want +got):\n%s", diff)
	}
}

func TestEphemeral_RetrieveWithContentEmptyReply(t *testing.T) {
	var buf bytes.Buffer
	c := newClient(t, map[string]http.HandlerFunc{
		"POST /ephemeral/concepts/car/casebases/cb/amalgamationFunctions/fn/retrievalByCaseIDWithContent": reply(`[]`),
	}, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	got, err := c.Ephemeral().RetrieveWithContent(context.Background(), "p0", []string{"e1"}, InConcept("car"))
	if err != nil {
		t.Fatalf("empty reply returned error: %v", err)
	}
	if !got.Empty() {
		t.Errorf("rows = %d, want 0", got.Len())
	}
	if !strings.Contains(buf.String(), "empty result from CBR server") {
		t.Errorf("no warning logged: %s", buf.String())
	}
}

func TestEphemeral_RetrieveByCaseIDsPayload(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"POST /ephemeral/concepts/patient/casebases/cb/amalgamationFunctions/fn/retrievalByCaseIDs": func(w http.ResponseWriter, r *http.Request) {
			var rq map[string][]string
			if err := json.NewDecoder(r.Body).Decode(&rq); err != nil {
				t.Errorf("decode payload: %v", err)
			}
			want := map[string][]string{"queryCaseIDs": {"q1"}, "ephemeralCaseIDs": {"e1", "e2", "e3"}}
			if diff := cmp.Diff(want, rq); diff != "" {
				t.Errorf("payload (-want +got):\n%s", diff)
			}
			if r.URL.Query().Get("k") != "1" {
				t.Errorf("k = %q, want explicit TopK", r.URL.Query().Get("k"))
			}
			reply(`{"q1":{"e2":0.7}}`)(w, r)
		},
	})
	got, err := c.Ephemeral().RetrieveByCaseIDs(context.Background(), []string{"q1"}, []string{"e1", "e2", "e3"}, TopK(1))
	if err != nil {
		t.Fatalf("RetrieveByCaseIDs: %v", err)
	}
	if diff := cmp.Diff([]string{"e2"}, labels(got)); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
}

func TestEphemeral_SelfSimilarityEmptyList(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"POST /ephemeral/concepts/patient/casebases/cb/amalgamationFunctions/fn/computeSelfSimilarity": func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			if string(b) != "[]" {
				t.Errorf("payload = %s, want []", b)
			}
			if r.URL.Query().Get("k") != "0" {
				t.Errorf("k = %q", r.URL.Query().Get("k"))
			}
			reply(`{}`)(w, r)
		},
	})
	got, err := c.Ephemeral().SelfSimilarity(context.Background(), nil)
	if err != nil {
		t.Fatalf("SelfSimilarity: %v", err)
	}
	if !got.Empty() {
		t.Errorf("rows = %d, want 0", got.Len())
	}
}

// --- Analytics ---

func TestAnalytics_CompareTwoCases(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /analytics/concepts/patient/amalgamationFunctions/fn/compareTwoCases": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("caseID_1") != "p1" || r.URL.Query().Get("caseID_2") != "p2" {
				t.Errorf("unexpected query: %s", r.URL.RawQuery)
			}
			reply(`{"age":0.83333,"body_main":1}`)(w, r)
		},
	})
	got, err := c.Analytics().CompareTwoCases(context.Background(), "p1", "p2")
	if err != nil {
		t.Fatalf("CompareTwoCases: %v", err)
	}
	if got.IndexName() != "attributeID" {
		t.Errorf("index name = %q", got.IndexName())
	}
	if diff := cmp.Diff([]any{0.833, int64(1)}, values(t, got, "similarity")); diff != "" {
		t.Errorf("similarity (-want +got):\n%s", diff)
	}
}

func TestAnalytics_EphemeralLocalSimilarityIsTransposed(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"POST /analytics/concepts/patient/casebases/cb/amalgamationFunctions/fn/computeEphemeralLocalSimilarity": reply(
			`{"e1":{"age":1.0,"body_main":0.33333},"e2":{"age":0.5,"body_main":1}}`),
	})
	got, err := c.Analytics().EphemeralLocalSimilarity(context.Background(), "p1", []string{"e1", "e2"})
	if err != nil {
		t.Fatalf("EphemeralLocalSimilarity: %v", err)
	}
	if diff := cmp.Diff([]string{"age", "body_main"}, got.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"e1", "e2"}, labels(got)); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
	cell, ok := got.Lookup("e1", "body_main")
	if !ok || cell.Value != 0.333 {
		t.Errorf("e1/body_main = %v", cell)
	}
}

func TestAnalytics_GlobalSimilarityWithAllCasesUsesGet(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /analytics/concepts/patient/casebases/cb/amalgamationFunctions/fn/computeGlobalSimilarityWithAllCases": func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > 0 {
				t.Error("GET carried a body")
			}
			reply(`{"similarity":{"p1":0.9,"p2":0.1}}`)(w, r)
		},
	})
	got, err := c.Analytics().GlobalSimilarityWithAllCases(context.Background(), "p0")
	if err != nil {
		t.Fatalf("GlobalSimilarityWithAllCases: %v", err)
	}
	if diff := cmp.Diff([]string{"similarity"}, labels(got)); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"p1", "p2"}, got.Columns()); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}
}

// --- Errors, logging and metrics ---

func TestMalformedResponses(t *testing.T) {
	path := "GET /concepts/patient/casebases/cb/amalgamationFunctions/fn/retrievalByCaseID"
	for name, body := range map[string]string{
		"invalid json":    `{"p1":`,
		"array for map":   `[0.1, 0.2]`,
		"string for list": `"p1"`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newClient(t, map[string]http.HandlerFunc{path: reply(body)})
			_, err := c.Retrieval().ByCaseID(context.Background(), "p0")
			if !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got: %v", err)
			}
		})
	}
}

func TestMalformedBoolean(t *testing.T) {
	c := newClient(t, map[string]http.HandlerFunc{"PUT /casebases/x": reply(`"yes"`)})
	_, err := c.Casebases().Add(context.Background(), "x")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got: %v", err)
	}
}

func TestNotFoundWithoutErrorBody(t *testing.T) {
	c := newClient(t, nil)
	_, err := c.Casebases().Case(context.Background(), "nope")
	if !IsNotFound(err) {
		t.Fatalf("expected IsNotFound, got: %v", err)
	}
	if HasStatusCode(err, http.StatusBadRequest) {
		t.Error("HasStatusCode(400) on a 404")
	}
}

func TestTransportError(t *testing.T) {
	c := newClient(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Casebases().List(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Error("transport failure reported as APIError")
	}
}

func TestEmptyResultIsFlagged(t *testing.T) {
	var buf bytes.Buffer
	m := &recordingMetrics{}
	c := newClient(t, map[string]http.HandlerFunc{
		"GET /concepts/patient/casebases/cb/amalgamationFunctions/fn/retrievalByCaseID": reply(`{}`),
	}, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))), WithMetrics(m))

	got, err := c.Retrieval().ByCaseID(context.Background(), "p0")
	if err != nil {
		t.Fatalf("empty result returned error: %v", err)
	}
	if !got.Empty() {
		t.Errorf("rows = %d, want 0", got.Len())
	}
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "empty result from CBR server") {
		t.Errorf("no warning logged: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "casebase=cb") {
		t.Errorf("warning lacks resolved ids: %s", buf.String())
	}
	if diff := cmp.Diff([]string{"retrieve by case id"}, m.empty); diff != "" {
		t.Errorf("empty observations (-want +got):\n%s", diff)
	}
	// discovery (2) + retrieval (1)
	if len(m.requests) != 3 {
		t.Errorf("requests observed = %d, want 3", len(m.requests))
	}
}
