// Package receipt provides stable audit-trail artifacts for engine operation
// invocations. These are distinct from the signed provenance
// receipts stored in git-notes (internal/receiptstore); this
// package records that an operation ran, what it touched, and how it
// finished, for compliance/audit consumption.
package receipt

// ReceiptSchemaVersion current
const ReceiptSchemaVersion = "1.0"

// Receipt structure
type Receipt struct {
	SchemaVersion string         `json:"schema_version"`
	OpID          string         `json:"op_id"`
	TsStart       string         `json:"ts_start"`
	TsEnd         string         `json:"ts_end"`
	Command       string         `json:"command"`
	Args          []string       `json:"args"`
	ArgsRedacted  bool           `json:"args_redacted,omitempty"`
	Result        Result         `json:"result"`
	Graph         *GraphSummary  `json:"graph,omitempty"`
	Render        *RenderSummary `json:"render,omitempty"`
	Attest        *AttestSummary `json:"attest,omitempty"`
	Drift         *DriftSummary  `json:"drift,omitempty"`
}

// Result status
type Result struct {
	Status string `json:"status"` // "success" or "fail"
	Error  string `json:"error,omitempty"`
}

// GraphSummary detail: outcome of an ingest operation.
type GraphSummary struct {
	GraphID     string `json:"graph_id"`
	SourceCount int    `json:"source_count"`
	EntityCount int    `json:"entity_count"`
	TripleCount int    `json:"triple_count"`
}

// RenderSummary detail: outcome of a render operation.
type RenderSummary struct {
	TemplateID string `json:"template_id"`
	ArtifactID string `json:"artifact_id"`
	Hash       string `json:"hash"`
	Size       int    `json:"size"`
}

// AttestSummary detail: outcome of an attest or verify operation.
type AttestSummary struct {
	Format   string `json:"format"` // minimal|full
	Verified bool   `json:"verified,omitempty"`
	KeyID    string `json:"key_id,omitempty"`
}

// DriftSummary detail: outcome of a diff operation.
type DriftSummary struct {
	HasDrift   bool    `json:"has_drift"`
	DriftScore float64 `json:"drift_score"`
	Summary    string  `json:"summary,omitempty"`
}
