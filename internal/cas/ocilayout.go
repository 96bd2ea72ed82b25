package cas

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/layout"

	"github.com/provgraph/engine/internal/canon"
	"github.com/provgraph/engine/internal/engineerr"
)

// OCILayoutStore is a CAS backend that exports blobs into a local OCI Image
// Layout directory (github.com/google/go-containerregistry/pkg/v1/layout),
// addressed by their own sha256 digest via Path.WriteBlob/Path.Blob. This
// makes CAS content consumable by any OCI-layout-aware tool without any
// network push. It is an alternate on-disk backend, not a registry
// client.
type OCILayoutStore struct {
	path layout.Path

	mu sync.Mutex

	stores, retrievals, hits, misses, bytesStored atomic.Uint64
}

// NewOCILayoutStore creates (or opens) an OCI Image Layout rooted at dir.
func NewOCILayoutStore(dir string) (*OCILayoutStore, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: create oci layout dir: %w", err))
		}
		p, err := layout.Write(dir, empty.Index)
		if err != nil {
			return nil, engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: init oci layout: %w", err))
		}
		return &OCILayoutStore{path: p}, nil
	}

	p, err := layout.FromPath(dir)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: open oci layout: %w", err))
	}
	return &OCILayoutStore{path: p}, nil
}

func toV1Hash(hash string) (v1.Hash, error) {
	h, err := v1.NewHash("sha256:" + hash)
	if err != nil {
		return v1.Hash{}, engineerr.New(engineerr.KindInput, "cas: invalid hash %q: %v", hash, err)
	}
	return h, nil
}

func (o *OCILayoutStore) Store(_ context.Context, b []byte) (string, error) {
	hash := canon.HashBytes(b)
	h, err := toV1Hash(hash)
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.stores.Add(1)

	if rc, err := o.path.Blob(h); err == nil {
		rc.Close()
		return hash, nil // already present: idempotent
	}

	if err := o.path.WriteBlob(h, io.NopCloser(bytes.NewReader(b))); err != nil {
		return "", engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: write oci blob: %w", err))
	}
	o.bytesStored.Add(uint64(len(b)))
	return hash, nil
}

func (o *OCILayoutStore) Retrieve(_ context.Context, hash string) ([]byte, error) {
	o.retrievals.Add(1)
	h, err := toV1Hash(hash)
	if err != nil {
		o.misses.Add(1)
		return nil, err
	}

	o.mu.Lock()
	rc, err := o.path.Blob(h)
	o.mu.Unlock()
	if err != nil {
		o.misses.Add(1)
		return nil, errNotFound(hash)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: read oci blob: %w", err))
	}
	o.hits.Add(1)
	return b, nil
}

func (o *OCILayoutStore) Verify(ctx context.Context, hash string, b []byte) (bool, error) {
	existing, err := o.Retrieve(ctx, hash)
	if err != nil {
		if engineerr.Is(err, engineerr.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	return canon.HashBytes(existing) == canon.HashBytes(b), nil
}

func (o *OCILayoutStore) Clear(_ context.Context, force bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !force {
		return errNotEmpty()
	}
	if err := os.RemoveAll(string(o.path)); err != nil {
		return engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: clear oci layout: %w", err))
	}
	if err := os.MkdirAll(string(o.path), 0o755); err != nil {
		return engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: recreate oci layout dir: %w", err))
	}
	p, err := layout.Write(string(o.path), empty.Index)
	if err != nil {
		return engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: reinit oci layout: %w", err))
	}
	o.path = p
	o.bytesStored.Store(0)
	return nil
}

func (o *OCILayoutStore) Stats() Stats {
	return Stats{
		Stores:      o.stores.Load(),
		Retrievals:  o.retrievals.Load(),
		Hits:        o.hits.Load(),
		Misses:      o.misses.Load(),
		BytesStored: o.bytesStored.Load(),
	}
}
