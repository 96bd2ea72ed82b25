package orchestrator

import (
	"context"
	"time"

	"github.com/provgraph/engine/internal/engineerr"
	"github.com/provgraph/engine/internal/model"
	"github.com/provgraph/engine/internal/render"
)

// GenerateOptions carries the per-call overrides and pinned clock value a
// Generate call needs for determinism.
type GenerateOptions struct {
	Overrides   map[string]interface{}
	GeneratedAt time.Time // zero means the Engine's Clock supplies it
}

// Generate wraps the render engine: render every template against graph,
// hash the output, and store the bytes in the CAS.
func (e *Engine) Generate(ctx context.Context, g *model.Graph, templates []model.Template, opts GenerateOptions) ([]model.Artifact, error) {
	if err := e.admit(); err != nil {
		return nil, err
	}
	opCtx, desc, done := e.ops.register(ctx, OpGenerate, e.clock.Now())
	e.drainWG.Add(1)
	defer func() { done(); e.drainWG.Done() }()

	renderCtx, cancel := context.WithTimeout(opCtx, e.cfg.renderTimeout())
	defer cancel()

	generatedAt := opts.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = e.clock.Now()
	}

	e.events.emit(Event{Kind: EventGenerationStarted, OperationID: desc.OperationID,
		Detail: map[string]interface{}{"templateCount": len(templates)}})

	artifacts := make([]model.Artifact, 0, len(templates))
	for _, tmpl := range templates {
		artifact, err := e.render.Generate(renderCtx, g, tmpl, render.GenerateOptions{
			Overrides:   opts.Overrides,
			GeneratedAt: generatedAt,
			OutputPath:  tmpl.OutputPath,
		})
		if err != nil {
			wrapped := engineerr.WithOp(asEngineErr(err), desc.OperationID)
			e.events.emit(Event{Kind: EventError, OperationID: desc.OperationID, Err: wrapped})
			return nil, wrapped
		}
		if _, err := e.store.Store(renderCtx, artifact.Content); err != nil {
			wrapped := engineerr.WithOp(asEngineErr(err), desc.OperationID)
			e.events.emit(Event{Kind: EventError, OperationID: desc.OperationID, Err: wrapped})
			return nil, wrapped
		}
		artifacts = append(artifacts, artifact)
	}

	e.events.emit(Event{Kind: EventGenerationComplete, OperationID: desc.OperationID,
		Detail: map[string]interface{}{"artifactCount": len(artifacts)}})
	return artifacts, nil
}
