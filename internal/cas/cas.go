// Package cas implements the content-addressed store: blobs are
// keyed by their SHA-256 hash, with memory, filesystem, and OCI-layout
// backends, plus stores/retrievals/hits/misses/bytesStored metrics.
package cas

import (
	"context"

	"github.com/provgraph/engine/internal/engineerr"
)

// Store is the backend-agnostic CAS contract.
type Store interface {
	// Store writes b and returns its SHA-256 hex hash. Idempotent: a second
	// call with identical content returns the same hash without duplicating.
	Store(ctx context.Context, b []byte) (string, error)
	// Retrieve returns the bytes for hash, or engineerr.KindNotFound.
	Retrieve(ctx context.Context, hash string) ([]byte, error)
	// Verify reports whether b hashes to hash. Not constant-time: CAS keys
	// are non-secret content hashes.
	Verify(ctx context.Context, hash string, b []byte) (bool, error)
	// Clear removes all entries. force=false fails NotEmpty on a non-empty
	// disk-backed store.
	Clear(ctx context.Context, force bool) error
	// Stats returns a snapshot of the store's counters.
	Stats() Stats
}

// Stats is a point-in-time snapshot of a Store's counters.
type Stats struct {
	Stores      uint64
	Retrievals  uint64
	Hits        uint64
	Misses      uint64
	BytesStored uint64
}

// HitRate returns hits/(hits+misses) as a percentage, or 0 if there have
// been no retrievals yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// errNotEmpty is returned by Clear(force=false) on a non-empty disk backend.
func errNotEmpty() error {
	return engineerr.New(engineerr.KindIO, "cas: store is not empty (pass force=true to clear anyway)")
}

func errNotFound(hash string) error {
	return engineerr.New(engineerr.KindNotFound, "cas: no blob for hash %s", hash)
}
