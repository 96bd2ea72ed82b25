package attest

import (
	"os"
	"sync"

	"github.com/provgraph/engine/internal/model"
)

// BatchItem is one artifact/attestation pair to verify.
type BatchItem struct {
	ArtifactPath    string
	AttestationPath string
	Policy          *VerifyOptions // per-item override; nil uses the batch-wide default
}

// BatchResult aggregates per-path outcomes plus summary counts.
type BatchResult struct {
	Results map[string]Result
	Errors  map[string]error
	Valid   int
	Invalid int
	Errored int
}

// VerifyBatch verifies N attestations concurrently, bounded by a
// semaphore channel sized to concurrency. A failure on one item never
// aborts the rest.
func VerifyBatch(items []BatchItem, defaultOpts VerifyOptions, concurrency int) BatchResult {
	if concurrency <= 0 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var mu sync.Mutex
	var wg sync.WaitGroup

	out := BatchResult{Results: make(map[string]Result, len(items)), Errors: make(map[string]error)}

	verifier := NewVerifier()

	for _, item := range items {
		item := item
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			opts := defaultOpts
			if item.Policy != nil {
				opts = *item.Policy
			}

			att, content, err := loadAttestationAndArtifact(item.AttestationPath, item.ArtifactPath)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Errors[item.ArtifactPath] = err
				out.Errored++
				return
			}
			opts.ArtifactContent = content
			result := verifier.Verify(att, opts)
			out.Results[item.ArtifactPath] = result
			if result.Valid {
				out.Valid++
			} else {
				out.Invalid++
			}
		}()
	}
	wg.Wait()
	return out
}

func loadAttestationAndArtifact(attestationPath, artifactPath string) (model.Attestation, []byte, error) {
	att, err := ReadSidecar(attestationPath)
	if err != nil {
		return model.Attestation{}, nil, err
	}
	content, err := os.ReadFile(artifactPath)
	if err != nil {
		return model.Attestation{}, nil, err
	}
	return att, content, nil
}
