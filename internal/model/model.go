// Package model defines the core data types shared across the engine:
// triples, entities, graphs, templates, artifacts, provenance, attestations,
// receipts, trust policies and drift results.
package model

import "time"

// ObjectKind classifies the object position of a Triple.
type ObjectKind string

const (
	ObjectKindIRI     ObjectKind = "IRI"
	ObjectKindLiteral ObjectKind = "Literal"
	ObjectKindBlank   ObjectKind = "Blank"
)

// Triple is a single RDF statement plus its checksum.
type Triple struct {
	Subject    string     `json:"subject"`
	Predicate  string     `json:"predicate"`
	Object     string     `json:"object"`
	ObjectKind ObjectKind `json:"objectKind"`
	Checksum   string     `json:"checksum"`
}

// Entity is the typed, property-bag view of an IRI subject within a graph.
type Entity struct {
	ID         string              `json:"id"`
	Type       string              `json:"type"`
	Properties map[string][]string `json:"properties"`
	Checksum   string              `json:"checksum"`
}

// Relationship is derived whenever a triple's object is an IRI.
type Relationship struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Type     string `json:"type"`
	Checksum string `json:"checksum"`
}

// GraphMetadata carries ingest provenance for a Graph.
type GraphMetadata struct {
	SourceCount int       `json:"sourceCount"`
	IngestedAt  time.Time `json:"ingestedAt"`
	OperationID string    `json:"operationId,omitempty"`
}

// Graph is the deduplicated internal representation of one or more ingested
// RDF sources.
type Graph struct {
	ID            string         `json:"id"`
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	Triples       []Triple       `json:"triples"`
	Metadata      GraphMetadata  `json:"metadata"`
}

// EntityByID returns the first entity with the given id, or false.
func (g *Graph) EntityByID(id string) (Entity, bool) {
	for _, e := range g.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// EntitiesByType returns, in graph order, every entity whose Type matches.
func (g *Graph) EntitiesByType(typ string) []Entity {
	var out []Entity
	for _, e := range g.Entities {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Template is the opaque body the render engine feeds to an external
// renderer.
type Template struct {
	ID         string `json:"id"`
	Body       string `json:"body"`
	Type       string `json:"type"`
	Language   string `json:"language"`
	OutputPath string `json:"outputPath,omitempty"`
	Hash       string `json:"hash"`
}

// Artifact is the immutable byte output of rendering a Template against a
// Graph.
type Artifact struct {
	ID           string   `json:"id"`
	TemplateID   string   `json:"templateId"`
	Type         string   `json:"type"`
	Language     string   `json:"language"`
	Content      []byte   `json:"-"`
	Hash         string   `json:"hash"`
	Size         int      `json:"size"`
	OutputPath   string   `json:"outputPath,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// ArtifactRef identifies an artifact by path and hash within a Provenance
// record.
type ArtifactRef struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// TemplateRef identifies the template that produced an artifact.
type TemplateRef struct {
	ID   string `json:"id"`
	Hash string `json:"hash"`
	Path string `json:"path,omitempty"`
}

// GraphRef identifies the graph an artifact was rendered from.
type GraphRef struct {
	Path string `json:"path,omitempty"`
	Hash string `json:"hash,omitempty"`
}

// Provenance is the minimal record binding an artifact to the template and
// graph that produced it.
type Provenance struct {
	Artifact    ArtifactRef `json:"artifact"`
	Template    TemplateRef `json:"template"`
	Graph       *GraphRef   `json:"graph,omitempty"`
	GeneratedAt time.Time   `json:"generatedAt"`
	ToolVersion string      `json:"toolVersion"`
}

// AttestationFormat selects minimal vs full attestation content.
type AttestationFormat string

const (
	AttestationFormatMinimal AttestationFormat = "minimal"
	AttestationFormatFull    AttestationFormat = "full"
)

// Signature covers the canonical provenance bytes plus the timestamp.
type Signature struct {
	Algorithm    string   `json:"algorithm"`
	PublicKey    string   `json:"publicKey"`
	Value        string   `json:"value"`
	SignedFields []string `json:"signedFields"`
}

// Integrity is a hash of the canonical provenance object, recorded
// independently of the signature so unsigned attestations still self-check.
type Integrity struct {
	SHA256 string `json:"sha256"`
}

// Attestation is the signed provenance record written alongside an
// artifact.
type Attestation struct {
	Format     AttestationFormat      `json:"format"`
	Provenance Provenance             `json:"provenance"`
	Timestamp  time.Time              `json:"timestamp"`
	Signature  *Signature             `json:"signature,omitempty"`
	Integrity  Integrity              `json:"integrity"`
	Full       map[string]interface{} `json:"full,omitempty"`

	// ToolVersionDefaulted records that the parser substituted "0.0.0" for
	// a missing toolVersion; surfaced as a verification warning.
	ToolVersionDefaulted bool `json:"-"`
}

// Receipt is a signed attestation envelope bound to a commit, for storage in
// git-notes (or the sidecar fallback).
type Receipt struct {
	Commit      string      `json:"commit"`
	Attestation Attestation `json:"attestation"`
	StoredAt    time.Time   `json:"storedAt"`
}

// TrustedKey is one entry of a TrustPolicy's trusted-key set.
type TrustedKey struct {
	Fingerprint string     `json:"fingerprint" yaml:"fingerprint"`
	PublicKey   string     `json:"publicKey,omitempty" yaml:"publicKey,omitempty"`
	NotBefore   *time.Time `json:"notBefore,omitempty" yaml:"notBefore,omitempty"`
	NotAfter    *time.Time `json:"notAfter,omitempty" yaml:"notAfter,omitempty"`
}

// TrustRequirements are the hard gates a verification must satisfy.
type TrustRequirements struct {
	MinimumSignatures            int      `json:"minimumSignatures" yaml:"minimumSignatures"`
	AllowedAlgorithms            []string `json:"allowedAlgorithms" yaml:"allowedAlgorithms"`
	RequireAttestations          bool     `json:"requireAttestations" yaml:"requireAttestations"`
	RequiredAttestationTypes     []string `json:"requiredAttestationTypes,omitempty" yaml:"requiredAttestationTypes,omitempty"`
	RequirePublisherVerification bool     `json:"requirePublisherVerification" yaml:"requirePublisherVerification"`
	// Expr is an optional CEL boolean expression evaluated over the
	// verification input (see internal/attest); absent means "no extra gate".
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty"`
}

// TrustPolicy governs which signatures/publishers/algorithms verification
// accepts. Loaded from YAML by the CLI (internal/config) or built
// programmatically by callers embedding the engine.
type TrustPolicy struct {
	Version           string            `json:"version" yaml:"version"`
	TrustedKeys       []TrustedKey      `json:"trustedKeys" yaml:"trustedKeys"`
	TrustedPublishers []string          `json:"trustedPublishers,omitempty" yaml:"trustedPublishers,omitempty"`
	Requirements      TrustRequirements `json:"requirements" yaml:"requirements"`
	Metadata          map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// DriftTypeFlags records which comparison dimensions showed drift.
type DriftTypeFlags struct {
	Content   bool `json:"content"`
	Semantic  bool `json:"semantic"`
	Structure bool `json:"structure"`
	Metadata  bool `json:"metadata"`
	Size      bool `json:"size"`
}

// Severity of a single detected difference.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityInfo     Severity = "info"
)

// Difference is one detected divergence between expected and actual.
type Difference struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Recommendation is a rule-based suggestion attached to a DriftResult.
type Recommendation struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// DriftResult is the structured output of comparing expected vs. actual
// artifacts.
type DriftResult struct {
	DetectionID     string          `json:"detectionId"`
	Timestamp       time.Time       `json:"timestamp"`
	HasDrift        bool            `json:"hasDrift"`
	Similarity      float64         `json:"similarity"`
	DriftScore      float64         `json:"driftScore"`
	DriftTypes      DriftTypeFlags  `json:"driftTypes"`
	Differences     []Difference     `json:"differences"`
	Recommendations []Recommendation `json:"recommendations"`
	ProcessingTime  time.Duration   `json:"processingTime"`
}
