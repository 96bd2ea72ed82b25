package orchestrator

import (
	"context"
	"time"

	"github.com/provgraph/engine/internal/attest"
	"github.com/provgraph/engine/internal/engineerr"
	"github.com/provgraph/engine/internal/model"
)

// AttestOptions carries the paths and overrides an Attest call needs to
// build a Provenance record and, optionally, persist a receipt.
type AttestOptions struct {
	ArtifactPath string
	Template     model.Template
	TemplatePath string
	Graph        *model.Graph
	GraphPath    string

	Format       model.AttestationFormat // "" defaults to the Engine's configured mode
	Full         map[string]interface{}
	GeneratedAt  time.Time // zero means the Engine's Clock supplies it
	WriteReceipt bool
}

// Attest wraps the attestation subsystem (and optionally the receipt
// store): build a minimal Provenance record binding artifact, template
// and graph by hash, sign it, write the
// `.attest.json` sidecar, and (when configured) persist a receipt.
func (e *Engine) Attest(ctx context.Context, artifact model.Artifact, opts AttestOptions) (model.Attestation, error) {
	if err := e.admit(); err != nil {
		return model.Attestation{}, err
	}
	opCtx, desc, done := e.ops.register(ctx, OpAttest, e.clock.Now())
	e.drainWG.Add(1)
	defer func() { done(); e.drainWG.Done() }()

	generatedAt := opts.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = e.clock.Now()
	}

	e.events.emit(Event{Kind: EventAttestationStarted, OperationID: desc.OperationID,
		Detail: map[string]interface{}{"artifactId": artifact.ID}})

	prov := model.Provenance{
		Artifact:    model.ArtifactRef{Path: opts.ArtifactPath, Hash: artifact.Hash},
		Template:    model.TemplateRef{ID: opts.Template.ID, Hash: opts.Template.Hash, Path: opts.TemplatePath},
		GeneratedAt: generatedAt,
		ToolVersion: e.cfg.ToolVersion,
	}
	if opts.Graph != nil {
		prov.Graph = &model.GraphRef{Path: opts.GraphPath, Hash: opts.Graph.ID}
	}

	format := opts.Format
	if format == "" {
		format = e.cfg.attestationFormat()
	}

	att, err := e.attester.Create(prov, attest.CreateOptions{
		Format:    format,
		Full:      opts.Full,
		Timestamp: generatedAt,
	})
	if err != nil {
		wrapped := engineerr.WithOp(asEngineErr(err), desc.OperationID)
		e.events.emit(Event{Kind: EventError, OperationID: desc.OperationID, Err: wrapped})
		return model.Attestation{}, wrapped
	}

	if opts.ArtifactPath != "" {
		if err := attest.WriteSidecar(opts.ArtifactPath, att); err != nil {
			wrapped := engineerr.WithOp(asEngineErr(err), desc.OperationID)
			e.events.emit(Event{Kind: EventError, OperationID: desc.OperationID, Err: wrapped})
			return model.Attestation{}, wrapped
		}
	}

	if opts.WriteReceipt && e.receipts != nil {
		gitCtx, cancel := context.WithTimeout(opCtx, e.cfg.gitTimeout())
		err := e.receipts.Write(gitCtx, model.Receipt{Attestation: att, StoredAt: generatedAt})
		cancel()
		if err != nil {
			wrapped := engineerr.WithOp(asEngineErr(err), desc.OperationID)
			e.events.emit(Event{Kind: EventError, OperationID: desc.OperationID, Err: wrapped})
			return model.Attestation{}, wrapped
		}
	}

	e.events.emit(Event{Kind: EventAttestationComplete, OperationID: desc.OperationID,
		Detail: map[string]interface{}{"signed": att.Signature != nil}})
	return att, nil
}
