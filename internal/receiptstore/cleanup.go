package receiptstore

import (
	"sort"
	"time"

	"github.com/provgraph/engine/internal/model"
)

// applyCleanupPolicy returns the receipts to keep and the count dropped,
// preserving at least KeepMinimumPerCommit of the most recent receipts
// regardless of age.
func applyCleanupPolicy(receipts []model.Receipt, policy CleanupPolicy) (kept []model.Receipt, removed int) {
	if len(receipts) == 0 {
		return receipts, 0
	}

	sorted := make([]model.Receipt, len(receipts))
	copy(sorted, receipts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StoredAt.After(sorted[j].StoredAt) })

	cutoff := time.Time{}
	if policy.OlderThanDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -policy.OlderThanDays)
	}

	for i, r := range sorted {
		if i < policy.KeepMinimumPerCommit || cutoff.IsZero() || r.StoredAt.After(cutoff) {
			kept = append(kept, r)
		} else {
			removed++
		}
	}
	return kept, removed
}
