// Package attest implements the attestation subsystem: Ed25519
// signing of provenance records, atomic sidecar read/write with legacy
// tolerance, trust-policy verification, trust-score computation, and
// bounded-concurrency batch verification.
package attest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"

	"github.com/provgraph/engine/internal/engineerr"
)

const (
	privateKeyType = "ED25519 PRIVATE KEY"
	publicKeyType  = "ED25519 PUBLIC KEY"

	// AlgorithmEd25519 is the only signing algorithm this subsystem speaks.
	AlgorithmEd25519 = "ed25519"
)

// GenerateKeyPair creates a new Ed25519 key pair and writes both halves
// as PEM files.
func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return engineerr.Wrap(engineerr.KindIO, err)
	}

	if err := writePEM(privateKeyPath, privateKeyType, privateKey); err != nil {
		return err
	}
	if err := writePEM(publicKeyPath, publicKeyType, publicKey); err != nil {
		return err
	}
	return nil
}

func writePEM(path, blockType string, bytes []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return engineerr.Wrap(engineerr.KindIO, err)
	}
	defer f.Close()

	block := &pem.Block{Type: blockType, Bytes: bytes}
	if err := pem.Encode(f, block); err != nil {
		return engineerr.Wrap(engineerr.KindIO, err)
	}
	return nil
}

// loadPrivateKey reads a PEM-encoded Ed25519 private key. Absence of the
// file is not wrapped into an engineerr.Error: callers (Attester.Create)
// treat a missing signing key as "skip signing", not a hard failure.
func loadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != privateKeyType {
		return nil, engineerr.New(engineerr.KindMalformed, "not an Ed25519 private key: %s", path)
	}
	if len(block.Bytes) != ed25519.PrivateKeySize {
		return nil, engineerr.New(engineerr.KindMalformed, "invalid private key size in %s", path)
	}
	return ed25519.PrivateKey(block.Bytes), nil
}

// loadPublicKey reads a PEM-encoded Ed25519 public key.
func loadPublicKey(path string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindIO, err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != publicKeyType {
		return nil, engineerr.New(engineerr.KindMalformed, "not an Ed25519 public key: %s", path)
	}
	if len(block.Bytes) != ed25519.PublicKeySize {
		return nil, engineerr.New(engineerr.KindMalformed, "invalid public key size in %s", path)
	}
	return ed25519.PublicKey(block.Bytes), nil
}
