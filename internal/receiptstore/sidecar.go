package receiptstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/provgraph/engine/internal/canon"
	"github.com/provgraph/engine/internal/engineerr"
	"github.com/provgraph/engine/internal/model"
)

// SidecarStore is the local-directory fallback used when the working
// directory isn't a git repository.
// Each file holds the JSON array of receipts recorded for one blob hash;
// commit association is preserved per-receipt since there's no git object
// to attach to.
type SidecarStore struct {
	baseDir string
}

// NewSidecarStore roots the fallback store at baseDir (conventionally
// ".engine/artifacts" under the working tree).
func NewSidecarStore(baseDir string) *SidecarStore {
	return &SidecarStore{baseDir: baseDir}
}

func (s *SidecarStore) pathFor(blobHash string) string {
	return filepath.Join(s.baseDir, blobHash+".json")
}

func (s *SidecarStore) readAll(blobHash string) ([]model.Receipt, error) {
	data, err := os.ReadFile(s.pathFor(blobHash))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindIO, err)
	}
	var receipts []model.Receipt
	if err := json.Unmarshal(data, &receipts); err != nil {
		return nil, engineerr.Wrap(engineerr.KindMalformed, err)
	}
	return receipts, nil
}

func (s *SidecarStore) writeAll(blobHash string, receipts []model.Receipt) error {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return engineerr.Wrap(engineerr.KindIO, err)
	}
	data, err := json.MarshalIndent(receipts, "", "  ")
	if err != nil {
		return engineerr.Wrap(engineerr.KindIO, err)
	}
	path := s.pathFor(blobHash)
	tmp, err := os.CreateTemp(s.baseDir, ".tmp-*")
	if err != nil {
		return engineerr.Wrap(engineerr.KindIO, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return engineerr.Wrap(engineerr.KindIO, err)
	}
	tmp.Close()
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return engineerr.Wrap(engineerr.KindIO, err)
	}
	return nil
}

// blobHashFor groups receipts by their attestation's artifact hash rather
// than a commit, since the sidecar fallback has no commit object to key on.
func blobHashFor(r model.Receipt) string {
	if h := r.Attestation.Provenance.Artifact.Hash; h != "" {
		return h
	}
	return canon.HashBytes([]byte(r.Commit))
}

func (s *SidecarStore) Write(_ context.Context, receipt model.Receipt) error {
	key := blobHashFor(receipt)
	existing, err := s.readAll(key)
	if err != nil {
		return err
	}
	existing = append(existing, receipt)
	return s.writeAll(key, existing)
}

// Get ignores the git-commit framing and returns every receipt whose
// Commit field matches, scanning all sidecar files.
func (s *SidecarStore) Get(_ context.Context, commit string) ([]model.Receipt, error) {
	all, err := s.allReceipts()
	if err != nil {
		return nil, err
	}
	var out []model.Receipt
	for _, r := range all {
		if r.Commit == commit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SidecarStore) ListCommits(_ context.Context) ([]string, error) {
	all, err := s.allReceipts()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var commits []string
	for _, r := range all {
		if r.Commit != "" && !seen[r.Commit] {
			seen[r.Commit] = true
			commits = append(commits, r.Commit)
		}
	}
	return commits, nil
}

func (s *SidecarStore) GetForArtifact(_ context.Context, artifactPath string) ([]model.Receipt, error) {
	all, err := s.allReceipts()
	if err != nil {
		return nil, err
	}
	var out []model.Receipt
	for _, r := range all {
		if matchesArtifact(r, artifactPath) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *SidecarStore) allReceipts() ([]model.Receipt, error) {
	entries, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindIO, err)
	}
	var all []model.Receipt
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		hash := e.Name()[:len(e.Name())-len(".json")]
		receipts, err := s.readAll(hash)
		if err != nil {
			return nil, err
		}
		all = append(all, receipts...)
	}
	return all, nil
}

func (s *SidecarStore) Cleanup(_ context.Context, policy CleanupPolicy) (int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, engineerr.Wrap(engineerr.KindIO, err)
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		hash := e.Name()[:len(e.Name())-len(".json")]
		receipts, err := s.readAll(hash)
		if err != nil {
			return removed, err
		}
		kept, dropped := applyCleanupPolicy(receipts, policy)
		if dropped == 0 {
			continue
		}
		removed += dropped
		if err := s.writeAll(hash, kept); err != nil {
			return removed, err
		}
	}
	return removed, nil
}
