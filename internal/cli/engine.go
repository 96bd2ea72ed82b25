package cli

import (
	"fmt"

	"github.com/provgraph/engine/internal/cas"
	"github.com/provgraph/engine/internal/clock"
	engcfg "github.com/provgraph/engine/internal/config"
	"github.com/provgraph/engine/internal/orchestrator"
)

// loadEngineConfig loads the --config file (if any) and overlays the
// environment-variable overrides.
func loadEngineConfig() (engcfg.Engine, error) {
	fileCfg, err := engcfg.LoadEngine(engineConfigFlag)
	if err != nil {
		return engcfg.Engine{}, err
	}
	return engcfg.ApplyEnv(fileCfg), nil
}

// newEngine constructs a ready orchestrator.Engine wired to a real wall
// clock. Every subcommand shares this so flag-to-config translation lives
// in exactly one place.
func newEngine() (*orchestrator.Engine, error) {
	fileCfg, err := loadEngineConfig()
	if err != nil {
		return nil, err
	}

	cfg := orchestrator.Config{
		CAS: cas.Config{
			Backend:  cas.Backend(fileCfg.CAS.Backend),
			BasePath: fileCfg.CAS.BasePath,
			MaxBytes: fileCfg.CAS.MaxBytes,
		},
		Attestation: orchestrator.AttestationConfig{
			Mode:             orchestrator.AttestationMode(fileCfg.Attestation.Mode),
			SigningKeyPath:   fileCfg.Attestation.SigningKeyPath,
			VerifyingKeyPath: fileCfg.Attestation.VerifyingKeyPath,
			EnableGitNotes:   fileCfg.Attestation.EnableGitNotes,
		},
		Drift: orchestrator.DriftConfig{
			Tolerance:     fileCfg.Drift.Tolerance,
			Algorithm:     orchestrator.DriftAlgorithm(fileCfg.Drift.Algorithm),
			CacheCapacity: fileCfg.Drift.CacheCapacity,
		},
		ToolVersion: fileCfg.ToolVersion,
		RepoDir:     fileCfg.RepoDir,
	}

	e, err := orchestrator.New(cfg, clock.System{})
	if err != nil {
		return nil, fmt.Errorf("constructing engine: %w", err)
	}
	return e, nil
}
