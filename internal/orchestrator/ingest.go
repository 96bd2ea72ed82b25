package orchestrator

import (
	"context"

	"github.com/provgraph/engine/internal/engineerr"
	"github.com/provgraph/engine/internal/graph"
	"github.com/provgraph/engine/internal/model"
)

// Ingest wraps the graph ingestor: parse sources into a deduplicated Graph.
func (e *Engine) Ingest(ctx context.Context, sources []graph.Source) (*model.Graph, error) {
	if err := e.admit(); err != nil {
		return nil, err
	}
	_, desc, done := e.ops.register(ctx, OpIngest, e.clock.Now())
	e.drainWG.Add(1)
	defer func() { done(); e.drainWG.Done() }()

	e.events.emit(Event{Kind: EventIngestionStarted, OperationID: desc.OperationID,
		Detail: map[string]interface{}{"sourceCount": len(sources)}})

	g, err := graph.Ingest(sources, graph.Options{
		OperationID: desc.OperationID,
		IngestedAt:  e.clock.Now(),
	})
	if err != nil {
		wrapped := engineerr.WithOp(asEngineErr(err), desc.OperationID)
		e.events.emit(Event{Kind: EventError, OperationID: desc.OperationID, Err: wrapped})
		return nil, wrapped
	}

	e.events.emit(Event{Kind: EventIngestionComplete, OperationID: desc.OperationID,
		Detail: map[string]interface{}{"graphId": g.ID, "entityCount": len(g.Entities), "tripleCount": len(g.Triples)}})
	return g, nil
}

// asEngineErr normalizes err to an *engineerr.Error, wrapping it as
// KindInput if it isn't already one of our structured errors.
func asEngineErr(err error) *engineerr.Error {
	if e, ok := err.(*engineerr.Error); ok {
		return e
	}
	return engineerr.Wrap(engineerr.KindInput, err)
}
