package orchestrator

import (
	"time"

	"github.com/provgraph/engine/internal/cas"
	"github.com/provgraph/engine/internal/model"
	"github.com/provgraph/engine/internal/render"
)

// AttestationMode selects minimal vs full attestation content.
type AttestationMode string

const (
	AttestationModeMinimal AttestationMode = "minimal"
	AttestationModeFull    AttestationMode = "full"
)

// AttestationConfig is the closed configuration struct for attestation.
type AttestationConfig struct {
	Mode             AttestationMode
	SigningKeyPath   string
	VerifyingKeyPath string
	EnableGitNotes   bool
}

// DriftAlgorithm selects which fingerprint component drives the
// HasDrift/tolerance decision.
type DriftAlgorithm string

const (
	DriftAlgorithmSemanticHash DriftAlgorithm = "SemanticHash"
	DriftAlgorithmContentHash  DriftAlgorithm = "ContentHash"
)

// DriftConfig is the closed configuration struct for drift detection.
type DriftConfig struct {
	// Tolerance is the maximum driftScore the caller still treats as "no
	// actionable drift"; 0 (the default) means any detected difference is
	// reported as drift. Does not change the computed score, only the
	// Engine's own drift-gate decision exposed via Diff's error return.
	Tolerance     float64
	Algorithm     DriftAlgorithm
	CacheCapacity int
}

// Config assembles the closed per-component configuration structs the
// Engine needs to construct its collaborators.
type Config struct {
	CAS         cas.Config
	Render      render.Config
	Renderer    render.Renderer // optional override; defaults per render.New
	Attestation AttestationConfig
	Drift       DriftConfig

	// RenderTimeout / GitTimeout bound the corresponding suspension
	// points; zero means the package default (30s / 10s) applies.
	RenderTimeout time.Duration
	GitTimeout    time.Duration

	ToolVersion string
	RepoDir     string // working directory for git-notes operations
}

func (c Config) renderTimeout() time.Duration {
	if c.RenderTimeout > 0 {
		return c.RenderTimeout
	}
	return 30 * time.Second
}

func (c Config) gitTimeout() time.Duration {
	if c.GitTimeout > 0 {
		return c.GitTimeout
	}
	return 10 * time.Second
}

func (c Config) attestationFormat() model.AttestationFormat {
	if c.Attestation.Mode == AttestationModeFull {
		return model.AttestationFormatFull
	}
	return model.AttestationFormatMinimal
}
