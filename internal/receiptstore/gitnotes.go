package receiptstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/provgraph/engine/internal/engineerr"
	"github.com/provgraph/engine/internal/model"
)

// GitNotesStore implements Store on top of `git notes`, one JSON array of
// receipts per commit under NotesRef.
type GitNotesStore struct {
	repoDir string
	runner  CommandRunner
}

// NewGitNotesStore constructs a store rooted at repoDir (the working tree,
// not necessarily the repo root; git resolves it).
func NewGitNotesStore(repoDir string, runner CommandRunner) *GitNotesStore {
	if runner == nil {
		runner = &DefaultRunner{}
	}
	return &GitNotesStore{repoDir: repoDir, runner: runner}
}

func (s *GitNotesStore) git(ctx context.Context, args ...string) ([]byte, []byte, error) {
	full := args
	if s.repoDir != "" {
		full = append([]string{"-C", s.repoDir}, args...)
	}
	return s.runner.Run(ctx, "git", full)
}

// checkRepo returns engineerr.KindNotAGitRepo when repoDir isn't inside a
// git working tree.
func (s *GitNotesStore) checkRepo(ctx context.Context) error {
	_, stderr, err := s.git(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return engineerr.New(engineerr.KindNotAGitRepo, "not a git repository: %s", strings.TrimSpace(string(stderr)))
	}
	return nil
}

func (s *GitNotesStore) resolveHEAD(ctx context.Context) (string, error) {
	stdout, stderr, err := s.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", engineerr.New(engineerr.KindNotAGitRepo, "cannot resolve HEAD: %s", strings.TrimSpace(string(stderr)))
	}
	return strings.TrimSpace(string(stdout)), nil
}

func (s *GitNotesStore) Write(ctx context.Context, receipt model.Receipt) error {
	if err := s.checkRepo(ctx); err != nil {
		return err
	}

	commit := receipt.Commit
	if commit == "" {
		head, err := s.resolveHEAD(ctx)
		if err != nil {
			return err
		}
		commit = head
		receipt.Commit = head
	}

	existing, err := s.readNote(ctx, commit)
	if err != nil {
		return err
	}
	existing = append(existing, receipt)

	data, err := json.Marshal(existing)
	if err != nil {
		return engineerr.Wrap(engineerr.KindIO, err)
	}

	tmp, err := os.CreateTemp("", "receipt-note-*.json")
	if err != nil {
		return engineerr.Wrap(engineerr.KindIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return engineerr.Wrap(engineerr.KindIO, err)
	}
	tmp.Close()

	_, stderr, err := s.git(ctx, "notes", "--ref", NotesRef, "add", "-f", "-F", tmpName, commit)
	if err != nil {
		return engineerr.New(engineerr.KindIO, "git notes add failed: %s", strings.TrimSpace(string(stderr)))
	}
	return nil
}

// readNote returns the receipts attached to commit, or an empty slice if no
// note exists yet (distinct from a git error, which propagates).
func (s *GitNotesStore) readNote(ctx context.Context, commit string) ([]model.Receipt, error) {
	stdout, stderr, err := s.git(ctx, "notes", "--ref", NotesRef, "show", commit)
	if err != nil {
		if strings.Contains(string(stderr), "no note found") {
			return nil, nil
		}
		return nil, nil // no note / unresolvable ref: treat as empty, consistent with "no receipts yet"
	}
	var receipts []model.Receipt
	if err := json.Unmarshal(stdout, &receipts); err != nil {
		return nil, engineerr.Wrap(engineerr.KindMalformed, err)
	}
	return receipts, nil
}

func (s *GitNotesStore) Get(ctx context.Context, commit string) ([]model.Receipt, error) {
	if err := s.checkRepo(ctx); err != nil {
		return nil, err
	}
	return s.readNote(ctx, commit)
}

func (s *GitNotesStore) ListCommits(ctx context.Context) ([]string, error) {
	if err := s.checkRepo(ctx); err != nil {
		return nil, err
	}
	stdout, _, err := s.git(ctx, "notes", "--ref", NotesRef, "list")
	if err != nil {
		return nil, nil
	}
	var commits []string
	for _, line := range strings.Split(strings.TrimSpace(string(stdout)), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		commits = append(commits, fields[1])
	}
	return commits, nil
}

func (s *GitNotesStore) GetForArtifact(ctx context.Context, artifactPath string) ([]model.Receipt, error) {
	commits, err := s.ListCommits(ctx)
	if err != nil {
		return nil, err
	}
	var matches []model.Receipt
	for _, commit := range commits {
		receipts, err := s.readNote(ctx, commit)
		if err != nil {
			return nil, err
		}
		for _, r := range receipts {
			if matchesArtifact(r, artifactPath) {
				matches = append(matches, r)
			}
		}
	}
	return matches, nil
}

func (s *GitNotesStore) Cleanup(ctx context.Context, policy CleanupPolicy) (int, error) {
	commits, err := s.ListCommits(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, commit := range commits {
		receipts, err := s.readNote(ctx, commit)
		if err != nil {
			return removed, err
		}
		kept, droppedHere := applyCleanupPolicy(receipts, policy)
		removed += droppedHere
		if droppedHere == 0 {
			continue
		}
		data, err := json.Marshal(kept)
		if err != nil {
			return removed, engineerr.Wrap(engineerr.KindIO, err)
		}
		tmpName := filepath.Join(os.TempDir(), "receipt-cleanup-"+commit+".json")
		if err := os.WriteFile(tmpName, data, 0o644); err != nil {
			return removed, engineerr.Wrap(engineerr.KindIO, err)
		}
		_, stderr, err := s.git(ctx, "notes", "--ref", NotesRef, "add", "-f", "-F", tmpName, commit)
		os.Remove(tmpName)
		if err != nil {
			return removed, engineerr.New(engineerr.KindIO, "git notes add failed during cleanup: %s", strings.TrimSpace(string(stderr)))
		}
	}
	return removed, nil
}
