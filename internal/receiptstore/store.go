package receiptstore

import (
	"context"

	"github.com/provgraph/engine/internal/model"
)

// NotesRef is the dedicated git-notes namespace receipts are attached
// under.
const NotesRef = "refs/notes/attestations"

// Store is the receipt-store contract: write/read/list/cleanup for
// receipts bound to
// commits, implemented by GitNotesStore and, when git is unavailable, by
// SidecarStore.
type Store interface {
	// Write attaches receipt to receipt.Commit, resolving HEAD first when
	// Commit is empty.
	Write(ctx context.Context, receipt model.Receipt) error
	// Get returns every receipt attached to commit.
	Get(ctx context.Context, commit string) ([]model.Receipt, error)
	// ListCommits returns every commit carrying at least one receipt.
	ListCommits(ctx context.Context) ([]string, error)
	// GetForArtifact scans every commit's receipts for one whose
	// provenance.artifact.path or artifact.hash matches artifactPath.
	GetForArtifact(ctx context.Context, artifactPath string) ([]model.Receipt, error)
	// Cleanup removes receipts older than CleanupPolicy.OlderThanDays while
	// preserving at least CleanupPolicy.KeepMinimumPerCommit per commit.
	Cleanup(ctx context.Context, policy CleanupPolicy) (removed int, err error)
}

// CleanupPolicy bounds what Cleanup is allowed to remove.
type CleanupPolicy struct {
	OlderThanDays        int
	KeepMinimumPerCommit int
}

func matchesArtifact(r model.Receipt, artifactPath string) bool {
	prov := r.Attestation.Provenance
	return prov.Artifact.Path == artifactPath || prov.Artifact.Hash == artifactPath
}
