// Package config loads the engine's closed configuration structs from
// YAML: gopkg.in/yaml.v3 unmarshaling into plain structs, no dynamic
// option bags.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/provgraph/engine/internal/model"
)

// CAS mirrors cas.Config with YAML tags so it can live in an engine config
// file without internal/config importing internal/cas's Backend type.
type CAS struct {
	Backend  string `yaml:"backend"`
	BasePath string `yaml:"basePath"`
	MaxBytes int64  `yaml:"maxBytes"`
}

// Attestation mirrors orchestrator.AttestationConfig. Enabled is a
// pointer so an absent key defaults to true rather than false.
type Attestation struct {
	Mode             string `yaml:"mode"`
	SigningKeyPath   string `yaml:"signingKeyPath"`
	VerifyingKeyPath string `yaml:"verifyingKeyPath"`
	EnableGitNotes   bool   `yaml:"enableGitNotes"`
	Enabled          *bool  `yaml:"enabled"`
}

// AttestationEnabled reports whether attestation writing is on; it
// defaults to true when unset.
func (e Engine) AttestationEnabled() bool {
	if e.Attestation.Enabled == nil {
		return true
	}
	return *e.Attestation.Enabled
}

// Drift mirrors orchestrator.DriftConfig.
type Drift struct {
	Tolerance     float64 `yaml:"tolerance"`
	Algorithm     string  `yaml:"algorithm"`
	CacheCapacity int     `yaml:"cacheCapacity"`
}

// Engine is the root document an `--config` YAML file unmarshals into.
type Engine struct {
	CAS         CAS         `yaml:"cas"`
	Attestation Attestation `yaml:"attestation"`
	Drift       Drift       `yaml:"drift"`
	RepoDir     string      `yaml:"repoDir"`
	ToolVersion string      `yaml:"toolVersion"`
}

// LoadEngine reads and parses an engine config file. An empty path returns
// the zero value (every orchestrator.Config field defaults sanely).
func LoadEngine(path string) (Engine, error) {
	var cfg Engine
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading engine config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing engine config %s: %w", path, err)
	}
	return cfg, nil
}

// Environment variables overriding the config file, applied by ApplyEnv.
const (
	EnvCASBase           = "ENGINE_CAS_BASE"
	EnvSigningKey        = "ENGINE_SIGNING_KEY"
	EnvVerifyingKey      = "ENGINE_VERIFYING_KEY"
	EnvEnableAttestation = "ENGINE_ENABLE_ATTESTATION"
)

// ApplyEnv overlays environment-variable overrides onto cfg: the CAS base
// directory, the signing/verifying key paths, and the attestation toggle.
func ApplyEnv(cfg Engine) Engine {
	if base := os.Getenv(EnvCASBase); base != "" {
		cfg.CAS.BasePath = base
		if cfg.CAS.Backend == "" || cfg.CAS.Backend == "memory" {
			cfg.CAS.Backend = "file"
		}
	}
	if key := os.Getenv(EnvSigningKey); key != "" {
		cfg.Attestation.SigningKeyPath = key
	}
	if key := os.Getenv(EnvVerifyingKey); key != "" {
		cfg.Attestation.VerifyingKeyPath = key
	}
	if v := os.Getenv(EnvEnableAttestation); v != "" {
		enabled := v != "false" && v != "0"
		cfg.Attestation.Enabled = &enabled
	}
	return cfg
}

// LoadTrustPolicy reads and parses a TrustPolicy YAML document.
func LoadTrustPolicy(path string) (*model.TrustPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trust policy %s: %w", path, err)
	}
	var policy model.TrustPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("parsing trust policy %s: %w", path, err)
	}
	return &policy, nil
}
