package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mycbr/internal/table"
)

func reply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

// fakeCBR serves the discovery routes of a server with the concepts
// "patient" and "car", plus routes.
func fakeCBR(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	all := map[string]http.HandlerFunc{
		"GET /concepts":                    reply(`["patient","car"]`),
		"GET /concepts/patient/attributes": reply(`{"age":"integer","body_main":"symbol"}`),
		"GET /concepts/car/attributes":     reply(`{"price":"float","make":"symbol"}`),
	}
	maps.Copy(all, routes)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := all[r.Method+" "+r.URL.Path]; ok {
			h(w, r)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// run executes mycbr with args and an empty config directory.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func connArgs(srv *httptest.Server, args ...string) []string {
	return append([]string{"--base-url", srv.URL, "--casebase", "cb", "--function", "fn", "--log-level", "error"}, args...)
}

var retrievalRoute = "GET /concepts/patient/casebases/cb/amalgamationFunctions/fn/retrievalByCaseID"

func TestRetrieveByCase_ASCII(t *testing.T) {
	srv := fakeCBR(t, map[string]http.HandlerFunc{
		retrievalRoute: reply(`{"p2":0.5001,"p1":0.9231}`),
	})
	out, err := run(t, connArgs(srv, "retrieve", "by-case", "p1")...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"caseID", "similarity", "0.923", "0.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "p1") > strings.Index(out, "p2") {
		t.Errorf("p1 should be listed before p2:\n%s", out)
	}
}

func TestRetrieveByCase_CSV(t *testing.T) {
	srv := fakeCBR(t, map[string]http.HandlerFunc{
		retrievalRoute: reply(`{"p2":0.5001,"p1":0.9231}`),
	})
	out, err := run(t, connArgs(srv, "-o", "csv", "retrieve", "by-case", "p1")...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "caseID,similarity\np1,0.923\np2,0.5\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("csv (-want +got):\n%s", diff)
	}
}

func TestRetrieveByCase_JSONAndTopK(t *testing.T) {
	srv := fakeCBR(t, map[string]http.HandlerFunc{
		retrievalRoute: func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("k"); got != "5" {
				t.Errorf("k = %q, want 5", got)
			}
			reply(`{"p2":0.5,"p1":0.9}`)(w, r)
		},
	})
	out, err := run(t, connArgs(srv, "-o", "json", "-k", "5", "retrieve", "by-case", "p1")...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	var got table.Table
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if diff := cmp.Diff([]string{"p1", "p2"}, got.Labels()); diff != "" {
		t.Errorf("labels (-want +got):\n%s", diff)
	}
}

func TestRetrieve_ServerErrorPropagates(t *testing.T) {
	srv := fakeCBR(t, nil)
	if _, err := run(t, connArgs(srv, "retrieve", "by-case", "p1")...); err == nil {
		t.Fatal("expected error for unknown route")
	}
}

func TestAttributes_CSV(t *testing.T) {
	srv := fakeCBR(t, nil)
	out, err := run(t, connArgs(srv, "-o", "csv", "attributes")...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "attributeID,type\nage,integer\nbody_main,symbol\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("csv (-want +got):\n%s", diff)
	}
}

func TestColumns_FollowConceptFlag(t *testing.T) {
	srv := fakeCBR(t, nil)
	out, err := run(t, connArgs(srv, "--concept", "car", "-o", "csv", "columns")...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "column\ncaseID\nsimilarity\nprice\nmake\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("csv (-want +got):\n%s", diff)
	}
}

func TestSchema_ReadsEveryConcept(t *testing.T) {
	srv := fakeCBR(t, map[string]http.HandlerFunc{
		"GET /concepts/patient/amalgamationFunctions": reply(`["fn"]`),
		"GET /concepts/car/amalgamationFunctions":     reply(`["price only"]`),
	})
	out, err := run(t, connArgs(srv, "-o", "csv", "schema")...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"age:integer, body_main:symbol", "price:float, make:symbol", "price only"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "patient") > strings.Index(out, "car,") {
		t.Errorf("concepts should keep server order:\n%s", out)
	}
}

const selfSimilarityRoute = "GET /concepts/patient/casebases/cb/computeSelfSimilarity"

const matrix = `{
	"a":{"a":1,"b":0.1,"c":0.2},
	"b":{"a":0.1,"b":1,"c":0.9},
	"c":{"a":0.2,"b":0.9,"c":1}
}`

func TestSelfSimilarity_Ordered(t *testing.T) {
	srv := fakeCBR(t, map[string]http.HandlerFunc{selfSimilarityRoute: reply(matrix)})
	out, err := run(t, connArgs(srv, "-o", "csv", "casebase", "self-similarity", "--ordered")...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "caseID,c,b,a\nc,1,0.9,0.2\nb,0.9,1,0.1\na,0.2,0.1,1\n"
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("csv (-want +got):\n%s", diff)
	}
}

func TestSelfSimilarity_Heatmap(t *testing.T) {
	srv := fakeCBR(t, map[string]http.HandlerFunc{selfSimilarityRoute: reply(matrix)})
	out, err := run(t, connArgs(srv, "casebase", "self-similarity", "--heatmap")...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, want := range []string{"self-similarity of cb", "columns: 1 a, 2 b, 3 c"} {
		if !strings.Contains(out, want) {
			t.Errorf("heatmap missing %q:\n%s", want, out)
		}
	}
}

func TestCasebaseAdd(t *testing.T) {
	srv := fakeCBR(t, map[string]http.HandlerFunc{
		"PUT /casebases/new": reply(`true`),
	})
	out, err := run(t, connArgs(srv, "casebase", "add", "new")...)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "✓ add casebase new") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestExport_WritesFile(t *testing.T) {
	srv := fakeCBR(t, map[string]http.HandlerFunc{
		retrievalRoute: reply(`{"p1":1}`),
	})
	path := filepath.Join(t.TempDir(), "hits.csv")
	if _, err := run(t, connArgs(srv, "--export", path, "retrieve", "by-case", "p1")...); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if diff := cmp.Diff("caseID,similarity\np1,1\n", string(data)); diff != "" {
		t.Errorf("export (-want +got):\n%s", diff)
	}
}

func TestEphemeralByCases_RequiresQuery(t *testing.T) {
	srv := fakeCBR(t, nil)
	if _, err := run(t, connArgs(srv, "ephemeral", "by-cases", "e1")...); err == nil {
		t.Fatal("expected error without --query")
	}
}

func TestUnknownOutputFormat(t *testing.T) {
	srv := fakeCBR(t, nil)
	if _, err := run(t, connArgs(srv, "-o", "xml", "concepts")...); err == nil {
		t.Fatal("expected error for unknown output format")
	}
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mycbr", "config.yaml")

	out, err := run(t, "--config", path, "--base-url", "http://cbr.example:9000", "--casebase", "cars", "config", "init")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, path) {
		t.Errorf("init output %q does not name %s", out, path)
	}

	out, err = run(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"base_url: http://cbr.example:9000", "casebase: cars", "precision: 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("show missing %q:\n%s", want, out)
		}
	}

	if _, err := run(t, "--config", path, "config", "init"); err == nil {
		t.Error("init over an existing profile should fail without --force")
	}
	if _, err := run(t, "--config", path, "--casebase", "other", "config", "init", "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}
}

func TestTableName(t *testing.T) {
	root := newRootCmd()
	cmd, _, err := root.Find([]string{"retrieve", "by-case"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got := tableName(cmd); got != "retrieve_by_case" {
		t.Errorf("tableName = %q, want retrieve_by_case", got)
	}
}
