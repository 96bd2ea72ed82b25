package cas

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/provgraph/engine/internal/canon"
	"github.com/provgraph/engine/internal/engineerr"
)

// FileStore is a filesystem CAS backend: path {base}/{hash[0:2]}/{hash[2:]}.
// Writes are atomic (temp file + rename); prefix directories
// are created lazily. Per-hash locks serialize concurrent stores of the
// same content so they converge on a single on-disk object.
type FileStore struct {
	base string

	keyMu sync.Mutex
	locks map[string]*sync.Mutex

	stores, retrievals, hits, misses, bytesStored atomic.Uint64
}

// NewFileStore returns a CAS rooted at base. base is created if absent.
func NewFileStore(base string) (*FileStore, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: create base dir: %w", err))
	}
	return &FileStore{base: base, locks: make(map[string]*sync.Mutex)}, nil
}

func (f *FileStore) pathFor(hash string) string {
	return filepath.Join(f.base, hash[:2], hash[2:])
}

func (f *FileStore) lockFor(hash string) *sync.Mutex {
	f.keyMu.Lock()
	defer f.keyMu.Unlock()
	l, ok := f.locks[hash]
	if !ok {
		l = &sync.Mutex{}
		f.locks[hash] = l
	}
	return l
}

func (f *FileStore) Store(_ context.Context, b []byte) (string, error) {
	hash := canon.HashBytes(b)
	path := f.pathFor(hash)

	lock := f.lockFor(hash)
	lock.Lock()
	defer lock.Unlock()

	f.stores.Add(1)

	if _, err := os.Stat(path); err == nil {
		return hash, nil // already present: idempotent
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: mkdir %s: %w", dir, err))
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: create temp file: %w", err))
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: write temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: close temp file: %w", err))
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return "", engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: chmod temp file: %w", err))
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: rename into place: %w", err))
	}

	f.bytesStored.Add(uint64(len(b)))
	return hash, nil
}

func (f *FileStore) Retrieve(_ context.Context, hash string) ([]byte, error) {
	f.retrievals.Add(1)
	if len(hash) < 3 {
		f.misses.Add(1)
		return nil, errNotFound(hash)
	}
	b, err := os.ReadFile(f.pathFor(hash))
	if err != nil {
		f.misses.Add(1)
		if os.IsNotExist(err) {
			return nil, errNotFound(hash)
		}
		return nil, engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: read %s: %w", hash, err))
	}
	f.hits.Add(1)
	return b, nil
}

func (f *FileStore) Verify(ctx context.Context, hash string, b []byte) (bool, error) {
	existing, err := f.Retrieve(ctx, hash)
	if err != nil {
		if engineerr.Is(err, engineerr.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	return canon.HashBytes(existing) == canon.HashBytes(b), nil
}

func (f *FileStore) Clear(_ context.Context, force bool) error {
	entries, err := os.ReadDir(f.base)
	if err != nil {
		return engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: read base dir: %w", err))
	}
	if !force && len(entries) > 0 {
		return errNotEmpty()
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(f.base, e.Name())); err != nil {
			return engineerr.Wrap(engineerr.KindIO, fmt.Errorf("cas: remove %s: %w", e.Name(), err))
		}
	}
	f.bytesStored.Store(0)
	return nil
}

func (f *FileStore) Stats() Stats {
	return Stats{
		Stores:      f.stores.Load(),
		Retrievals:  f.retrievals.Load(),
		Hits:        f.hits.Load(),
		Misses:      f.misses.Load(),
		BytesStored: f.bytesStored.Load(),
	}
}
