package attest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/provgraph/engine/internal/canon"
	"github.com/provgraph/engine/internal/model"
)

func genKeys(t *testing.T, dir string) (priv, pub string) {
	t.Helper()
	priv = filepath.Join(dir, "signing.pem")
	pub = filepath.Join(dir, "verifying.pem")
	if err := GenerateKeyPair(priv, pub); err != nil {
		t.Fatalf("GenerateKeyPair failed: %v", err)
	}
	return priv, pub
}

func sampleProvenance() model.Provenance {
	return model.Provenance{
		Artifact:    model.ArtifactRef{Path: "out/service.md", Hash: "abc123"},
		Template:    model.TemplateRef{ID: "svc", Hash: "def456"},
		GeneratedAt: time.Unix(0, 0).UTC(),
		ToolVersion: "test",
	}
}

func TestCreate_SignsWhenKeyPresent(t *testing.T) {
	dir := t.TempDir()
	priv, _ := genKeys(t, dir)

	a := New(Config{SigningKeyPath: priv})
	att, err := a.Create(sampleProvenance(), CreateOptions{Timestamp: time.Unix(1000, 0).UTC()})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if att.Signature == nil {
		t.Fatal("expected a signature, got nil")
	}
	if att.Signature.Algorithm != AlgorithmEd25519 {
		t.Errorf("algorithm = %q, want %q", att.Signature.Algorithm, AlgorithmEd25519)
	}
}

func TestCreate_UnsignedWhenKeyAbsent(t *testing.T) {
	a := New(Config{SigningKeyPath: filepath.Join(t.TempDir(), "does-not-exist.pem")})
	att, err := a.Create(sampleProvenance(), CreateOptions{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if att.Signature != nil {
		t.Fatal("expected unsigned attestation")
	}
}

func TestVerify_ValidSignatureAndTrustedKey(t *testing.T) {
	dir := t.TempDir()
	priv, _ := genKeys(t, dir)

	content := []byte("content")
	prov := sampleProvenance()
	prov.Artifact.Hash = hashOf(content)

	a := New(Config{SigningKeyPath: priv})
	att, err := a.Create(prov, CreateOptions{Timestamp: time.Unix(500, 0).UTC()})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	opts := VerifyOptions{ArtifactContent: content}
	policy := &model.TrustPolicy{
		TrustedKeys: []model.TrustedKey{{Fingerprint: KeyFingerprint(att.Signature.PublicKey)}},
		Requirements: model.TrustRequirements{
			MinimumSignatures: 1,
			AllowedAlgorithms: []string{AlgorithmEd25519},
		},
	}
	opts.Policy = policy

	result := NewVerifier().Verify(att, opts)
	if !result.IntegrityValid {
		t.Fatal("expected integrity to pass")
	}
	if !result.SignatureValid {
		t.Fatal("expected signature to verify")
	}
	if !result.Valid {
		t.Fatalf("expected overall valid, reasons: %v, err: %v", result.PolicyReasons, result.Err)
	}
	if result.TrustScore < 0.8 {
		t.Errorf("trust score = %v, want >= 0.8", result.TrustScore)
	}
}

func TestVerify_IntegrityMismatch(t *testing.T) {
	att := model.Attestation{
		Provenance: model.Provenance{Artifact: model.ArtifactRef{Hash: "expected"}},
	}
	result := NewVerifier().Verify(att, VerifyOptions{ArtifactContent: []byte("different content")})
	if result.IntegrityValid {
		t.Fatal("expected integrity failure")
	}
	if result.Valid {
		t.Fatal("expected overall invalid")
	}
}

func TestSidecar_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	artifactPath := filepath.Join(dir, "out.txt")
	att := model.Attestation{
		Format:     model.AttestationFormatMinimal,
		Provenance: sampleProvenance(),
		Integrity:  model.Integrity{SHA256: "x"},
	}
	if err := WriteSidecar(artifactPath, att); err != nil {
		t.Fatalf("WriteSidecar failed: %v", err)
	}
	got, err := ReadSidecar(SidecarPath(artifactPath))
	if err != nil {
		t.Fatalf("ReadSidecar failed: %v", err)
	}
	if got.Provenance.Artifact.Path != att.Provenance.Artifact.Path {
		t.Errorf("round-tripped provenance differs: %+v", got.Provenance)
	}
}

func TestParseAttestation_LegacyShape(t *testing.T) {
	legacy := []byte(`{
		"generation": {"generatedAt": "2024-01-01T00:00:00Z", "toolVersion": "v0"},
		"artifact": {"path": "out/a.md", "hash": "h1"},
		"template": {"id": "t1", "hash": "h2"},
		"integrity": {"sha256": "h1"}
	}`)
	att, err := ParseAttestation(legacy)
	if err != nil {
		t.Fatalf("ParseAttestation failed: %v", err)
	}
	if att.Provenance.Artifact.Path != "out/a.md" || att.Provenance.Artifact.Hash != "h1" {
		t.Errorf("unexpected translated provenance: %+v", att.Provenance)
	}
	if att.Provenance.ToolVersion != "v0" {
		t.Errorf("toolVersion = %q, want v0", att.Provenance.ToolVersion)
	}
}

func TestParseAttestation_MissingToolVersionDefaults(t *testing.T) {
	raw := []byte(`{
		"format": "minimal",
		"provenance": {
			"artifact": {"path": "out/a.md", "hash": "h1"},
			"template": {"id": "t1", "hash": "h2"},
			"generatedAt": "2024-01-01T00:00:00Z"
		},
		"timestamp": "2024-01-01T00:00:00Z",
		"integrity": {"sha256": "h3"}
	}`)
	att, err := ParseAttestation(raw)
	if err != nil {
		t.Fatalf("ParseAttestation failed: %v", err)
	}
	if att.Provenance.ToolVersion != "0.0.0" {
		t.Errorf("toolVersion = %q, want 0.0.0", att.Provenance.ToolVersion)
	}
	if !att.ToolVersionDefaulted {
		t.Error("expected ToolVersionDefaulted to be set")
	}
	res := NewVerifier().Verify(att, VerifyOptions{ArtifactContent: nil})
	if len(res.Warnings) == 0 {
		t.Error("expected a verification warning for defaulted toolVersion")
	}
}

func TestVerifyBatch_PartialFailureDoesNotAbort(t *testing.T) {
	dir := t.TempDir()
	priv, _ := genKeys(t, dir)
	a := New(Config{SigningKeyPath: priv})

	content := []byte("hello")
	prov := sampleProvenance()
	prov.Artifact.Hash = hashOf(content)
	att, err := a.Create(prov, CreateOptions{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	goodArtifact := filepath.Join(dir, "good.txt")
	writeFile(t, goodArtifact, content)
	if err := WriteSidecar(goodArtifact, att); err != nil {
		t.Fatalf("WriteSidecar failed: %v", err)
	}

	items := []BatchItem{
		{ArtifactPath: goodArtifact, AttestationPath: SidecarPath(goodArtifact)},
		{ArtifactPath: filepath.Join(dir, "missing.txt"), AttestationPath: filepath.Join(dir, "missing.txt.attest.json")},
	}
	result := VerifyBatch(items, VerifyOptions{}, 2)
	if result.Valid != 1 {
		t.Errorf("valid = %d, want 1", result.Valid)
	}
	if result.Errored != 1 {
		t.Errorf("errored = %d, want 1", result.Errored)
	}
}

func TestVerify_ResultIsMemoized(t *testing.T) {
	dir := t.TempDir()
	priv, _ := genKeys(t, dir)

	content := []byte("memo content")
	prov := sampleProvenance()
	prov.Artifact.Hash = hashOf(content)

	a := New(Config{SigningKeyPath: priv})
	att, err := a.Create(prov, CreateOptions{Timestamp: time.Unix(42, 0).UTC()})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	v := NewVerifier()
	opts := VerifyOptions{ArtifactContent: content}
	first := v.Verify(att, opts)
	second := v.Verify(att, opts)
	if !first.Valid || !second.Valid {
		t.Fatalf("expected both verifications valid: %+v %+v", first, second)
	}
	if first.TrustScore != second.TrustScore || first.SignatureValid != second.SignatureValid {
		t.Errorf("memoized result differs: %+v vs %+v", first, second)
	}
}

func hashOf(b []byte) string {
	return canon.HashBytes(b)
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
