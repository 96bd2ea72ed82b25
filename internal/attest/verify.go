package attest

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/provgraph/engine/internal/canon"
	"github.com/provgraph/engine/internal/engineerr"
	"github.com/provgraph/engine/internal/model"
)

// VerifyOptions carries the inputs to Verify beyond the attestation
// itself.
type VerifyOptions struct {
	// ArtifactContent is the on-disk artifact bytes; its hash is recomputed
	// and compared against att.Provenance.Artifact.Hash.
	ArtifactContent []byte
	// Policy is optional; when nil, only integrity and signature checks run.
	Policy *model.TrustPolicy
	// AllowExpired reduces but does not eliminate trust for an
	// out-of-validity-window key.
	AllowExpired bool
	// AttestationTypes lists the types present for this artifact, checked
	// against Policy.Requirements.RequiredAttestationTypes.
	AttestationTypes []string
	// PublisherVerified reports whether the caller has independently
	// verified the publisher identity (Requirements.RequirePublisherVerification).
	PublisherVerified bool
	// SignatureCount is the number of valid signatures found for this
	// artifact (Requirements.MinimumSignatures); defaults to 1 if the
	// attestation itself carries a valid signature and this is left at 0.
	SignatureCount int
}

// Result is the structured outcome of Verify.
type Result struct {
	Valid          bool
	IntegrityValid bool
	SignatureValid bool
	KeyTrusted     bool
	TrustScore     float64
	PolicyReasons  []string
	Warnings       []string
	Err            *engineerr.Error
}

// verifyCacheSize bounds the verification memo; entries are evicted LRU.
const verifyCacheSize = 256

// Verifier runs the attestation verification pipeline, memoizing results
// in a bounded LRU keyed by the full verification input. A trusted key's
// validity window is evaluated when its entry is first computed; the
// entry lives until evicted.
type Verifier struct {
	cache *lru.Cache[string, Result]
}

// NewVerifier constructs a Verifier with its own bounded result cache.
func NewVerifier() *Verifier {
	cache, _ := lru.New[string, Result](verifyCacheSize)
	return &Verifier{cache: cache}
}

// Verify runs the integrity → signature → policy → score pipeline
// against att.
func (v *Verifier) Verify(att model.Attestation, opts VerifyOptions) Result {
	key, cacheable := verifyCacheKey(att, opts)
	if cacheable {
		if cached, ok := v.cache.Get(key); ok {
			return cached
		}
	}
	res := v.verify(att, opts)
	if cacheable {
		v.cache.Add(key, res)
	}
	return res
}

// verifyCacheKey derives a stable memo key from every input that can
// change a verification outcome. Inputs that fail canonicalization are
// simply not cached.
func verifyCacheKey(att model.Attestation, opts VerifyOptions) (string, bool) {
	key, err := canon.Hash(struct {
		Att                  model.Attestation  `json:"att"`
		ToolVersionDefaulted bool               `json:"toolVersionDefaulted"`
		ArtifactHash         string             `json:"artifactHash"`
		Policy               *model.TrustPolicy `json:"policy"`
		AllowExpired         bool               `json:"allowExpired"`
		AttestationTypes     []string           `json:"attestationTypes"`
		PublisherVerified    bool               `json:"publisherVerified"`
		SignatureCount       int                `json:"signatureCount"`
	}{att, att.ToolVersionDefaulted, canon.HashBytes(opts.ArtifactContent), opts.Policy,
		opts.AllowExpired, opts.AttestationTypes, opts.PublisherVerified, opts.SignatureCount})
	if err != nil {
		return "", false
	}
	return key, true
}

func (v *Verifier) verify(att model.Attestation, opts VerifyOptions) Result {
	res := Result{}
	if att.ToolVersionDefaulted {
		res.Warnings = append(res.Warnings, "attestation is missing toolVersion; treated as 0.0.0")
	}

	// 1. Integrity.
	actualHash := canon.HashBytes(opts.ArtifactContent)
	res.IntegrityValid = actualHash == att.Provenance.Artifact.Hash
	if !res.IntegrityValid {
		res.Err = engineerr.New(engineerr.KindIntegrityFailure, "artifact hash mismatch: got %s want %s", actualHash, att.Provenance.Artifact.Hash)
		return res
	}

	// 2. Signature.
	if att.Signature != nil {
		valid, err := verifySignature(att)
		if err != nil {
			res.Err = engineerr.Wrap(engineerr.KindMalformed, err)
			return res
		}
		res.SignatureValid = valid
		if !valid {
			res.Err = engineerr.New(engineerr.KindSignatureInvalid, "ed25519 signature verification failed")
			return res
		}
	}

	// 3. Trust policy.
	if opts.Policy != nil {
		if err := checkPolicy(att, opts, &res); err != nil {
			res.Err = err
			return res
		}
	}

	// 4. Trust score (advisory; computed regardless of hard-requirement outcome).
	res.TrustScore = trustScore(res, att, opts)
	res.Valid = true
	return res
}

func verifySignature(att model.Attestation) (bool, error) {
	sig := att.Signature
	pubBytes, err := base64.StdEncoding.DecodeString(sig.PublicKey)
	if err != nil {
		return false, fmt.Errorf("decoding public key: %w", err)
	}
	if len(pubBytes) != ed25519.PublicKeySize {
		return false, fmt.Errorf("invalid public key size")
	}
	sigBytes, err := base64.StdEncoding.DecodeString(sig.Value)
	if err != nil {
		return false, fmt.Errorf("decoding signature: %w", err)
	}
	payload, err := signaturePayload(att.Provenance, att.Timestamp)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(ed25519.PublicKey(pubBytes), payload, sigBytes), nil
}

// checkPolicy enforces the hard requirements as a conjunction. Any
// failure appends a reason to res.PolicyReasons; the caller
// treats a non-empty PolicyReasons as PolicyViolation.
func checkPolicy(att model.Attestation, opts VerifyOptions, res *Result) *engineerr.Error {
	policy := opts.Policy
	var reasons []string

	if att.Signature != nil {
		if !algorithmAllowed(att.Signature.Algorithm, policy.Requirements.AllowedAlgorithms) {
			reasons = append(reasons, fmt.Sprintf("algorithm %q not in allowedAlgorithms", att.Signature.Algorithm))
		}
		fp := KeyFingerprint(att.Signature.PublicKey)
		trusted, expired := keyTrusted(fp, policy.TrustedKeys)
		res.KeyTrusted = trusted && (!expired || opts.AllowExpired)
		if !res.KeyTrusted {
			reasons = append(reasons, fmt.Sprintf("signing key %q not trusted", fp))
		}
	} else if policy.Requirements.RequireAttestations {
		reasons = append(reasons, "attestation is unsigned but signatures are required")
	}

	sigCount := opts.SignatureCount
	if sigCount == 0 && res.SignatureValid {
		sigCount = 1
	}
	if sigCount < policy.Requirements.MinimumSignatures {
		reasons = append(reasons, fmt.Sprintf("only %d signature(s), minimum %d required", sigCount, policy.Requirements.MinimumSignatures))
	}

	for _, required := range policy.Requirements.RequiredAttestationTypes {
		if !contains(opts.AttestationTypes, required) {
			reasons = append(reasons, fmt.Sprintf("required attestation type %q missing", required))
		}
	}

	if policy.Requirements.RequirePublisherVerification && !opts.PublisherVerified {
		reasons = append(reasons, "publisher verification required but not performed")
	}

	if policy.Requirements.Expr != "" {
		ok, err := evalTrustExpr(policy.Requirements.Expr, att, *res, opts)
		if err != nil {
			return engineerr.Wrap(engineerr.KindMalformed, err)
		}
		if !ok {
			reasons = append(reasons, fmt.Sprintf("policy expression %q evaluated false", policy.Requirements.Expr))
		}
	}

	res.PolicyReasons = reasons
	if len(reasons) > 0 {
		return engineerr.New(engineerr.KindPolicyViolation, "%v", reasons)
	}
	return nil
}

func algorithmAllowed(alg string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	return contains(allowed, alg)
}

func keyTrusted(fingerprint string, keys []model.TrustedKey) (trusted bool, expired bool) {
	now := time.Now()
	for _, k := range keys {
		if k.Fingerprint != fingerprint {
			continue
		}
		if k.NotBefore != nil && now.Before(*k.NotBefore) {
			return true, true
		}
		if k.NotAfter != nil && now.After(*k.NotAfter) {
			return true, true
		}
		return true, false
	}
	return false, false
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

// evalTrustExpr compiles and evaluates a CEL boolean expression over the
// verification input, the same "input"-variable convention the policy
// engine uses for scan-report rules, generalized here to attestation
// verification fields.
func evalTrustExpr(expr string, att model.Attestation, res Result, opts VerifyOptions) (bool, error) {
	env, err := cel.NewEnv(cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return false, fmt.Errorf("creating CEL environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("CEL program error: %w", err)
	}

	algorithm := ""
	publicKey := ""
	if att.Signature != nil {
		algorithm = att.Signature.Algorithm
		publicKey = att.Signature.PublicKey
	}

	input := map[string]interface{}{
		"signed":            att.Signature != nil,
		"signatureValid":    res.SignatureValid,
		"keyTrusted":        res.KeyTrusted,
		"algorithm":         algorithm,
		"keyFingerprint":    KeyFingerprint(publicKey),
		"attestationTypes":  opts.AttestationTypes,
		"publisherVerified": opts.PublisherVerified,
		"format":            string(att.Format),
	}

	out, _, err := prg.Eval(map[string]interface{}{"input": input})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression must return bool, got %T", out.Value())
	}
	return b, nil
}

// trustScore weights the advisory score: signature validity 0.5, trusted
// key 0.3, required attestations present 0.2.
func trustScore(res Result, att model.Attestation, opts VerifyOptions) float64 {
	var score float64
	if res.SignatureValid {
		score += 0.5
	}
	if res.KeyTrusted {
		score += 0.3
	}
	if opts.Policy == nil {
		return score
	}
	required := opts.Policy.Requirements.RequiredAttestationTypes
	if len(required) == 0 {
		score += 0.2
	} else {
		have := true
		for _, t := range required {
			if !contains(opts.AttestationTypes, t) {
				have = false
				break
			}
		}
		if have {
			score += 0.2
		}
	}
	return score
}
