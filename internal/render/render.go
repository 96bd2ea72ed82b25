// Package render implements the render engine: building a
// stable context from a Graph, delegating to an external Renderer, hashing
// the output, and recording advisory template-variable dependencies.
package render

import (
	"context"
	"time"

	"github.com/provgraph/engine/internal/canon"
	"github.com/provgraph/engine/internal/engineerr"
	"github.com/provgraph/engine/internal/model"
)

// Renderer is the narrow external-renderer boundary: it accepts a
// template body and a context map and returns the rendered
// string. The template language itself is treated as an external
// collaborator; engines may plug in any implementation behind this
// interface.
type Renderer interface {
	Render(ctx context.Context, templateBody string, data map[string]interface{}) (string, error)
}

// Config is the closed configuration struct for rendering.
type Config struct {
	TrimBlocks      bool
	LstripBlocks    bool
	Autoescape      bool
	StrictUndefined bool
}

// DefaultConfig is the byte-stability policy: autoescape=false,
// strictUndefined=false, trim/lstrip blocks enabled for byte-stable output.
func DefaultConfig() Config {
	return Config{TrimBlocks: true, LstripBlocks: true, Autoescape: false, StrictUndefined: false}
}

// Engine renders templates against graphs using a pluggable Renderer.
type Engine struct {
	renderer Renderer
	cfg      Config
}

// New constructs a render Engine. If renderer is nil, the default
// text/template+sprig implementation is used.
func New(renderer Renderer, cfg Config) *Engine {
	if renderer == nil {
		renderer = NewTextTemplateRenderer(cfg)
	}
	return &Engine{renderer: renderer, cfg: cfg}
}

// GenerateOptions carries the caller-supplied overrides and pinned clock
// value a single Generate call needs for determinism.
type GenerateOptions struct {
	Overrides   map[string]interface{}
	GeneratedAt time.Time
	OutputPath  string
}

// Generate renders tmpl against graph and returns the resulting Artifact.
// It does not write to the CAS; callers (the orchestrator) do that with the
// returned Content so the CAS stays the single writer of blob bytes.
func (e *Engine) Generate(ctx context.Context, graph *model.Graph, tmpl model.Template, opts GenerateOptions) (model.Artifact, error) {
	renderCtx := BuildContext(graph, opts.Overrides)

	out, err := e.renderer.Render(ctx, tmpl.Body, renderCtx)
	if err != nil {
		return model.Artifact{}, engineerr.WithOp(engineerr.Wrap(engineerr.KindRender, err), tmpl.ID)
	}

	content := []byte(out)
	hash := canon.HashBytes(content)
	deps := ExtractDependencies(tmpl.Body)

	artifact := model.Artifact{
		ID:           tmpl.ID + "-" + canon.Short(hash),
		TemplateID:   tmpl.ID,
		Type:         tmpl.Type,
		Language:     tmpl.Language,
		Content:      content,
		Hash:         hash,
		Size:         len(content),
		OutputPath:   opts.OutputPath,
		Dependencies: deps,
	}
	return artifact, nil
}
