package attest

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"os"
	"time"

	"github.com/provgraph/engine/internal/canon"
	"github.com/provgraph/engine/internal/engineerr"
	"github.com/provgraph/engine/internal/model"
)

// Config points the attester at its key material. SigningKeyPath may be
// empty, in which case signing is skipped and Create writes an unsigned
// attestation.
type Config struct {
	SigningKeyPath   string
	VerifyingKeyPath string
}

// Attester builds and signs Attestation records.
type Attester struct {
	cfg Config
}

// New constructs an Attester.
func New(cfg Config) *Attester {
	return &Attester{cfg: cfg}
}

// CreateOptions carries the per-call inputs for Create.
type CreateOptions struct {
	Format    model.AttestationFormat
	Full      map[string]interface{}
	Timestamp time.Time
}

// Create builds an Attestation for prov, optionally signing it. format
// defaults to minimal when empty.
func (a *Attester) Create(prov model.Provenance, opts CreateOptions) (model.Attestation, error) {
	format := opts.Format
	if format == "" {
		format = model.AttestationFormatMinimal
	}

	provHash, err := canon.Hash(prov)
	if err != nil {
		return model.Attestation{}, engineerr.Wrap(engineerr.KindIO, err)
	}

	att := model.Attestation{
		Format:     format,
		Provenance: prov,
		Timestamp:  opts.Timestamp,
		Integrity:  model.Integrity{SHA256: provHash},
	}
	if format == model.AttestationFormatFull {
		att.Full = opts.Full
	}

	if a.cfg.SigningKeyPath == "" {
		return att, nil
	}

	priv, err := loadPrivateKey(a.cfg.SigningKeyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return att, nil
		}
		return model.Attestation{}, err
	}

	payload, err := signaturePayload(prov, att.Timestamp)
	if err != nil {
		return model.Attestation{}, engineerr.Wrap(engineerr.KindIO, err)
	}

	sig := ed25519.Sign(priv, payload)
	pub, ok := priv.Public().(ed25519.PublicKey)
	if !ok {
		return model.Attestation{}, engineerr.New(engineerr.KindMalformed, "unexpected public key type derived from signing key")
	}

	att.Signature = &model.Signature{
		Algorithm:    AlgorithmEd25519,
		PublicKey:    base64.StdEncoding.EncodeToString(pub),
		Value:        base64.StdEncoding.EncodeToString(sig),
		SignedFields: []string{"provenance", "timestamp"},
	}
	return att, nil
}

// signaturePayload is the canonical provenance JSON concatenated with the
// RFC3339-millisecond timestamp: signatures cover the canonical JSON of
// the provenance object plus the timestamp.
func signaturePayload(prov model.Provenance, ts time.Time) ([]byte, error) {
	provBytes, err := canon.Canonicalize(prov)
	if err != nil {
		return nil, err
	}
	tsBytes, err := canon.Canonicalize(ts)
	if err != nil {
		return nil, err
	}
	return append(append(provBytes, '\n'), tsBytes...), nil
}

// KeyFingerprint returns the stable identifier of a base64-encoded public
// key used to match against a TrustPolicy's TrustedKeys: the SHA-256 of
// the key's PKIX DER encoding, lowercase hex.
func KeyFingerprint(publicKeyB64 string) string {
	raw, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return ""
	}
	der, err := x509.MarshalPKIXPublicKey(ed25519.PublicKey(raw))
	if err != nil {
		return ""
	}
	return canon.HashBytes(der)
}
