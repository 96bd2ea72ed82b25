package receiptstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/provgraph/engine/internal/model"
)

func readFileForTest(path string) []byte {
	data, _ := os.ReadFile(path)
	return data
}

func sampleReceipt(commit, artifactHash string, storedAt time.Time) model.Receipt {
	return model.Receipt{
		Commit: commit,
		Attestation: model.Attestation{
			Provenance: model.Provenance{
				Artifact: model.ArtifactRef{Path: "out/a.md", Hash: artifactHash},
			},
		},
		StoredAt: storedAt,
	}
}

func TestSidecarStore_WriteAndGetForArtifact(t *testing.T) {
	dir := t.TempDir()
	store := NewSidecarStore(filepath.Join(dir, "artifacts"))
	ctx := context.Background()

	r := sampleReceipt("c1", "hash1", time.Now())
	if err := store.Write(ctx, r); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	matches, err := store.GetForArtifact(ctx, "hash1")
	if err != nil {
		t.Fatalf("GetForArtifact failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Commit != "c1" {
		t.Fatalf("unexpected matches: %+v", matches)
	}

	commits, err := store.ListCommits(ctx)
	if err != nil {
		t.Fatalf("ListCommits failed: %v", err)
	}
	if len(commits) != 1 || commits[0] != "c1" {
		t.Fatalf("unexpected commits: %v", commits)
	}
}

func TestSidecarStore_CleanupKeepsMinimumPerCommit(t *testing.T) {
	dir := t.TempDir()
	store := NewSidecarStore(dir)
	ctx := context.Background()

	now := time.Now()
	old := now.AddDate(0, 0, -30)
	for i := 0; i < 3; i++ {
		r := sampleReceipt("c1", "hash-shared", old.Add(time.Duration(i)*time.Hour))
		if err := store.Write(ctx, r); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	removed, err := store.Cleanup(ctx, CleanupPolicy{OlderThanDays: 7, KeepMinimumPerCommit: 1})
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	remaining, err := store.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 remaining receipt, got %d", len(remaining))
	}
}

// fakeGitRunner simulates `git notes` behavior for GitNotesStore tests
// without invoking a real git binary.
type fakeGitRunner struct {
	isRepo  bool
	head    string
	notes   map[string][]byte // commit -> note body
}

func (f *fakeGitRunner) Run(_ context.Context, name string, args []string) ([]byte, []byte, error) {
	if name != "git" {
		return nil, nil, nil
	}
	if !f.isRepo {
		return nil, []byte("fatal: not a git repository"), errNonZero{}
	}
	switch {
	case len(args) >= 2 && args[0] == "rev-parse" && args[1] == "--is-inside-work-tree":
		return []byte("true\n"), nil, nil
	case len(args) >= 2 && args[0] == "rev-parse" && args[1] == "HEAD":
		return []byte(f.head + "\n"), nil, nil
	case len(args) >= 4 && args[0] == "notes" && args[3] == "show":
		commit := args[len(args)-1]
		body, ok := f.notes[commit]
		if !ok {
			return nil, []byte("error: no note found for object"), errNonZero{}
		}
		return body, nil, nil
	case len(args) >= 4 && args[0] == "notes" && args[3] == "add":
		commit := args[len(args)-1]
		filePath := args[len(args)-2]
		data := readFileForTest(filePath)
		if f.notes == nil {
			f.notes = map[string][]byte{}
		}
		f.notes[commit] = data
		return nil, nil, nil
	case len(args) >= 4 && args[0] == "notes" && args[3] == "list":
		var out []byte
		for commit := range f.notes {
			out = append(out, []byte("deadbeef "+commit+"\n")...)
		}
		return out, nil, nil
	}
	return nil, nil, nil
}

type errNonZero struct{}

func (errNonZero) Error() string { return "exit status 1" }

func TestGitNotesStore_WriteThenGet(t *testing.T) {
	runner := &fakeGitRunner{isRepo: true, head: "abc123"}
	store := NewGitNotesStore("", runner)
	ctx := context.Background()

	r := sampleReceipt("", "hash1", time.Now())
	if err := store.Write(ctx, r); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	receipts, err := store.Get(ctx, "abc123")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(receipts) != 1 || receipts[0].Commit != "abc123" {
		t.Fatalf("unexpected receipts: %+v", receipts)
	}
}

func TestGitNotesStore_NotARepo(t *testing.T) {
	runner := &fakeGitRunner{isRepo: false}
	store := NewGitNotesStore("", runner)
	if err := store.Write(context.Background(), sampleReceipt("", "h", time.Now())); err == nil {
		t.Fatal("expected NotAGitRepository error")
	}
}
