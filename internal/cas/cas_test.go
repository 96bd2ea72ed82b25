package cas

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStore_StoreIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	h1, err := s.Store(ctx, []byte("hello"))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	h2, err := s.Store(ctx, []byte("hello"))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hashes differ: %s != %s", h1, h2)
	}
	if got := s.Stats().BytesStored; got != 5 {
		t.Errorf("bytesStored = %d, want 5 (no duplication)", got)
	}
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	want := []byte("round trip content")
	hash, err := s.Store(ctx, want)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	got, err := s.Retrieve(ctx, hash)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Retrieve = %q, want %q", got, want)
	}
}

func TestMemoryStore_RetrieveMissing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Retrieve(ctx, "deadbeef"); err == nil {
		t.Error("expected NotFound error for missing hash")
	}
}

func TestMemoryStore_ClearRequiresForce(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if _, err := s.Store(ctx, []byte("x")); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := s.Clear(ctx, false); err == nil {
		t.Error("expected NotEmpty error")
	}
	if err := s.Clear(ctx, true); err != nil {
		t.Errorf("Clear(force=true) failed: %v", err)
	}
}

func TestFileStore_RoundTripAndLayout(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	want := []byte("filesystem backend content")
	hash, err := s.Store(ctx, want)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	wantPath := filepath.Join(dir, hash[:2], hash[2:])
	if _, err := os.Stat(wantPath); err != nil {
		t.Errorf("expected blob at %s: %v", wantPath, err)
	}

	got, err := s.Retrieve(ctx, hash)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Retrieve = %q, want %q", got, want)
	}
}

func TestFileStore_StoreIdempotentNoDuplication(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	h1, _ := s.Store(ctx, []byte("same content"))
	h2, _ := s.Store(ctx, []byte("same content"))
	if h1 != h2 {
		t.Errorf("hashes differ: %s != %s", h1, h2)
	}
	if got := s.Stats().BytesStored; got != uint64(len("same content")) {
		t.Errorf("bytesStored = %d, want %d", got, len("same content"))
	}
}

func TestStats_HitRate(t *testing.T) {
	s := Stats{Hits: 3, Misses: 1}
	if got := s.HitRate(); got != 75 {
		t.Errorf("HitRate = %v, want 75", got)
	}
	if got := (Stats{}).HitRate(); got != 0 {
		t.Errorf("HitRate on empty stats = %v, want 0", got)
	}
}
