package render

import (
	"context"
	"testing"
	"time"

	"github.com/provgraph/engine/internal/graph"
	"github.com/provgraph/engine/internal/model"
)

func mustIngest(t *testing.T, ttl string) *model.Graph {
	t.Helper()
	g, err := graph.Ingest([]graph.Source{{Body: []byte(ttl), Format: "text/turtle"}}, graph.Options{})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	return g
}

func TestGenerate_DeterministicContent(t *testing.T) {
	ttl := `@prefix ex: <http://e/> .
ex:s a ex:RESTService ; ex:label "A" .`
	g := mustIngest(t, ttl)

	tmpl := model.Template{ID: "svc", Body: "Service: {{ .service.properties.label }}"}

	eng := New(nil, DefaultConfig())
	a1, err := eng.Generate(context.Background(), g, tmpl, GenerateOptions{GeneratedAt: time.Unix(0, 0)})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	a2, err := eng.Generate(context.Background(), g, tmpl, GenerateOptions{GeneratedAt: time.Unix(0, 0)})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if string(a1.Content) != "Service: A" {
		t.Errorf("content = %q, want %q", a1.Content, "Service: A")
	}
	if a1.Hash != a2.Hash {
		t.Errorf("hashes differ across runs: %s != %s", a1.Hash, a2.Hash)
	}
}

func TestExtractDependencies(t *testing.T) {
	body := "{{ .service.label }} and {{ .mainEntity.properties.count | default 0 }}"
	deps := ExtractDependencies(body)
	if len(deps) != 2 {
		t.Fatalf("expected 2 dependencies, got %v", deps)
	}
	if deps[0] != "mainEntity.properties.count" || deps[1] != "service.label" {
		t.Errorf("unexpected deps: %v", deps)
	}
}

func TestBuildContext_EndpointsView(t *testing.T) {
	ttl := `@prefix ex: <http://e/> .
ex:ep1 a ex:Endpoint ; ex:method "GET" ; ex:path "/things" .`
	g := mustIngest(t, ttl)
	ctx := BuildContext(g, nil)
	endpoints, ok := ctx["endpoints"].([]endpoint)
	if !ok || len(endpoints) != 1 {
		t.Fatalf("expected 1 endpoint in context, got %#v", ctx["endpoints"])
	}
	if endpoints[0].Method != "GET" || endpoints[0].Path != "/things" {
		t.Errorf("unexpected endpoint: %+v", endpoints[0])
	}
}
