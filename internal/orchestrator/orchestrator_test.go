package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provgraph/engine/internal/cas"
	"github.com/provgraph/engine/internal/clock"
	"github.com/provgraph/engine/internal/drift"
	"github.com/provgraph/engine/internal/graph"
	"github.com/provgraph/engine/internal/model"
)

const turtle = `
@prefix ex: <http://example.org/> .
ex:svc1 a ex:RESTService ;
  ex:name "billing" ;
  ex:port "8080" .
`

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Config{
		CAS:         cas.Config{Backend: cas.BackendMemory},
		Attestation: AttestationConfig{Mode: AttestationModeMinimal},
		Drift:       DriftConfig{CacheCapacity: 64},
		ToolVersion: "test",
	}, clock.Fixed{At: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	return e
}

func TestEngine_FullPipeline(t *testing.T) {
	e := newEngine(t)
	require.Equal(t, StateReady, e.State())

	var events []EventKind
	unsub := e.Subscribe(func(ev Event) { events = append(events, ev.Kind) })
	defer unsub()

	g, err := e.Ingest(context.Background(), []graph.Source{{Kind: "rdf", Body: []byte(turtle), Format: "text/turtle"}})
	require.NoError(t, err)
	require.Len(t, g.Entities, 1)

	tmpl := model.Template{
		ID:   "tmpl1",
		Body: `service: {{ .service.name }}`,
		Type: "text",
		Hash: "tmplhash",
	}
	artifacts, err := e.Generate(context.Background(), g, []model.Template{tmpl}, GenerateOptions{})
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.NotEmpty(t, artifacts[0].Hash)

	att, err := e.Attest(context.Background(), artifacts[0], AttestOptions{
		ArtifactPath: filepath.Join(t.TempDir(), "artifact.txt"),
		Template:     tmpl,
		Graph:        g,
	})
	require.NoError(t, err)
	assert.Nil(t, att.Signature)
	assert.Equal(t, model.AttestationFormatMinimal, att.Format)

	result, err := e.Diff(context.Background(), "det1", drift.Text(string(artifacts[0].Content)), drift.Text(string(artifacts[0].Content)))
	require.NoError(t, err)
	assert.False(t, result.HasDrift)

	assert.Contains(t, events, EventIngestionComplete)
	assert.Contains(t, events, EventGenerationComplete)
	assert.Contains(t, events, EventAttestationComplete)
	assert.Contains(t, events, EventDriftComplete)

	require.NoError(t, e.Shutdown())
	assert.Equal(t, StateShutdown, e.State())

	_, err = e.Ingest(context.Background(), nil)
	require.Error(t, err)
}

func TestEngine_ShutdownIsIdempotent(t *testing.T) {
	e := newEngine(t)
	require.NoError(t, e.Shutdown())
	require.NoError(t, e.Shutdown())
}
