package orchestrator

import (
	"context"

	"github.com/provgraph/engine/internal/attest"
	"github.com/provgraph/engine/internal/engineerr"
	"github.com/provgraph/engine/internal/model"
)

// VerificationResult wraps attest.Result with the operation id that
// produced it, so callers can correlate it with emitted events.
type VerificationResult struct {
	attest.Result
	OperationID string
}

// Verify wraps the attestation subsystem's four-step verification
// pipeline.
func (e *Engine) Verify(ctx context.Context, att model.Attestation, opts attest.VerifyOptions) (VerificationResult, error) {
	if err := e.admit(); err != nil {
		return VerificationResult{}, err
	}
	_, desc, done := e.ops.register(ctx, OpVerify, e.clock.Now())
	e.drainWG.Add(1)
	defer func() { done(); e.drainWG.Done() }()

	e.events.emit(Event{Kind: EventVerificationStarted, OperationID: desc.OperationID,
		Detail: map[string]interface{}{"artifactHash": att.Provenance.Artifact.Hash}})

	res := e.verifier.Verify(att, opts)

	detail := map[string]interface{}{"valid": res.Valid, "trustScore": res.TrustScore}
	if res.Err != nil {
		detail["reason"] = res.Err.Error()
	}
	e.events.emit(Event{Kind: EventVerificationComplete, OperationID: desc.OperationID, Detail: detail})

	if res.Err != nil {
		return VerificationResult{Result: res, OperationID: desc.OperationID},
			engineerr.WithOp(res.Err, desc.OperationID)
	}
	return VerificationResult{Result: res, OperationID: desc.OperationID}, nil
}
