package orchestrator

import (
	"context"

	"github.com/provgraph/engine/internal/drift"
	"github.com/provgraph/engine/internal/engineerr"
	"github.com/provgraph/engine/internal/model"
)

// Diff wraps the drift detector: fingerprint expected/actual, classify
// drift, and produce a scored recommendation.
func (e *Engine) Diff(ctx context.Context, detectionID string, expected, actual drift.Input) (model.DriftResult, error) {
	if err := e.admit(); err != nil {
		return model.DriftResult{}, err
	}
	opCtx, desc, done := e.ops.register(ctx, OpDiff, e.clock.Now())
	e.drainWG.Add(1)
	defer func() { done(); e.drainWG.Done() }()

	e.events.emit(Event{Kind: EventDriftStarted, OperationID: desc.OperationID,
		Detail: map[string]interface{}{"detectionId": detectionID}})

	result, err := e.drift.Compare(opCtx, detectionID, expected, actual)
	if err != nil {
		wrapped := engineerr.WithOp(asEngineErr(err), desc.OperationID)
		e.events.emit(Event{Kind: EventError, OperationID: desc.OperationID, Err: wrapped})
		return model.DriftResult{}, wrapped
	}

	if e.cfg.Drift.Tolerance > 0 && result.DriftScore <= e.cfg.Drift.Tolerance {
		result.HasDrift = false
	}

	e.events.emit(Event{Kind: EventDriftComplete, OperationID: desc.OperationID,
		Detail: map[string]interface{}{"hasDrift": result.HasDrift, "similarity": result.Similarity}})
	return result, nil
}
