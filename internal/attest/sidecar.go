package attest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/provgraph/engine/internal/engineerr"
	"github.com/provgraph/engine/internal/model"
)

// SidecarPath returns the attestation path for an artifact path: for an
// artifact at P, the attestation lives at P.attest.json.
func SidecarPath(artifactPath string) string {
	return artifactPath + ".attest.json"
}

// WriteSidecar atomically serializes att as canonical-indented JSON to
// SidecarPath(artifactPath), using the same temp-file-then-rename idiom as
// the filesystem CAS backend so a crash mid-write never leaves a partial
// sidecar behind.
func WriteSidecar(artifactPath string, att model.Attestation) error {
	data, err := json.MarshalIndent(att, "", "  ")
	if err != nil {
		return engineerr.Wrap(engineerr.KindIO, err)
	}

	path := SidecarPath(artifactPath)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return engineerr.Wrap(engineerr.KindIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-attest-*")
	if err != nil {
		return engineerr.Wrap(engineerr.KindIO, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return engineerr.Wrap(engineerr.KindIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return engineerr.Wrap(engineerr.KindIO, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return engineerr.Wrap(engineerr.KindIO, err)
	}
	return nil
}

// legacyAttestation is the pre-existing shape readers still accept:
// top-level "generation" and "artifact" sub-objects instead of a nested
// "provenance" block.
type legacyAttestation struct {
	Generation struct {
		GeneratedAt time.Time `json:"generatedAt"`
		ToolVersion string    `json:"toolVersion"`
	} `json:"generation"`
	Artifact struct {
		Path string `json:"path"`
		Hash string `json:"hash"`
	} `json:"artifact"`
	Template struct {
		ID   string `json:"id"`
		Hash string `json:"hash"`
	} `json:"template"`
	Integrity model.Integrity  `json:"integrity"`
	Signature *model.Signature `json:"signature,omitempty"`
}

func (l legacyAttestation) toAttestation() model.Attestation {
	return model.Attestation{
		Format: model.AttestationFormatMinimal,
		Provenance: model.Provenance{
			Artifact:    model.ArtifactRef{Path: l.Artifact.Path, Hash: l.Artifact.Hash},
			Template:    model.TemplateRef{ID: l.Template.ID, Hash: l.Template.Hash},
			GeneratedAt: l.Generation.GeneratedAt,
			ToolVersion: l.Generation.ToolVersion,
		},
		Timestamp: l.Generation.GeneratedAt,
		Signature: l.Signature,
		Integrity: l.Integrity,
	}
}

// ReadSidecar loads and parses an attestation file, auto-detecting between
// the current minimal/full schema and the legacy generation/artifact
// shape, translating the latter to the minimal schema.
func ReadSidecar(path string) (model.Attestation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Attestation{}, engineerr.Wrap(engineerr.KindIO, err)
	}
	return ParseAttestation(data)
}

// ParseAttestation parses raw attestation bytes, translating the legacy
// shape when the current schema's "provenance" key is absent.
func ParseAttestation(data []byte) (model.Attestation, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return model.Attestation{}, engineerr.Wrap(engineerr.KindMalformed, err)
	}

	if _, hasProvenance := probe["provenance"]; hasProvenance {
		var att model.Attestation
		if err := json.Unmarshal(data, &att); err != nil {
			return model.Attestation{}, engineerr.Wrap(engineerr.KindMalformed, err)
		}
		return defaultToolVersion(att), nil
	}

	if _, hasGeneration := probe["generation"]; hasGeneration {
		var legacy legacyAttestation
		if err := json.Unmarshal(data, &legacy); err != nil {
			return model.Attestation{}, engineerr.Wrap(engineerr.KindMalformed, err)
		}
		return defaultToolVersion(legacy.toAttestation()), nil
	}

	return model.Attestation{}, engineerr.New(engineerr.KindMalformed, "unrecognized attestation shape")
}

// defaultToolVersion tolerates attestations written without a toolVersion
// by substituting "0.0.0" and flagging the substitution so verification
// can surface a warning.
func defaultToolVersion(att model.Attestation) model.Attestation {
	if att.Provenance.ToolVersion == "" {
		att.Provenance.ToolVersion = "0.0.0"
		att.ToolVersionDefaulted = true
	}
	return att
}
