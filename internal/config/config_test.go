package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEngine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cas:
  backend: file
  basePath: /tmp/cas
attestation:
  mode: full
  signingKeyPath: keys/private.pem
drift:
  tolerance: 0.1
  cacheCapacity: 256
repoDir: /repo
toolVersion: 1.2.3
`), 0o644))

	cfg, err := LoadEngine(path)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.CAS.Backend)
	assert.Equal(t, "full", cfg.Attestation.Mode)
	assert.Equal(t, 0.1, cfg.Drift.Tolerance)
	assert.Equal(t, 256, cfg.Drift.CacheCapacity)
	assert.Equal(t, "1.2.3", cfg.ToolVersion)
}

func TestLoadEngine_EmptyPath(t *testing.T) {
	cfg, err := LoadEngine("")
	require.NoError(t, err)
	assert.Equal(t, Engine{}, cfg)
}

func TestApplyEnv_Overrides(t *testing.T) {
	t.Setenv(EnvCASBase, "/env/cas")
	t.Setenv(EnvSigningKey, "/env/signing.pem")
	t.Setenv(EnvEnableAttestation, "false")

	cfg := ApplyEnv(Engine{})
	assert.Equal(t, "/env/cas", cfg.CAS.BasePath)
	assert.Equal(t, "file", cfg.CAS.Backend)
	assert.Equal(t, "/env/signing.pem", cfg.Attestation.SigningKeyPath)
	assert.False(t, cfg.AttestationEnabled())
}

func TestAttestationEnabled_DefaultsTrue(t *testing.T) {
	assert.True(t, Engine{}.AttestationEnabled())
}

func TestLoadTrustPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: "1"
trustedKeys:
  - fingerprint: abc123
requirements:
  minimumSignatures: 1
  requireAttestations: true
`), 0o644))

	policy, err := LoadTrustPolicy(path)
	require.NoError(t, err)
	require.Len(t, policy.TrustedKeys, 1)
	assert.Equal(t, "abc123", policy.TrustedKeys[0].Fingerprint)
	assert.True(t, policy.Requirements.RequireAttestations)
}
