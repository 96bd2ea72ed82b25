// Package receiptstore stores signed
// attestation receipts as git-notes on the commit that produced them, with
// a sidecar-directory fallback when git is unavailable.
package receiptstore

import (
	"bytes"
	"context"
	"os"
	"os/exec"
)

// CommandRunner abstracts process execution so tests can stub git.
type CommandRunner interface {
	Run(ctx context.Context, name string, args []string) (stdout, stderr []byte, err error)
}

// DefaultRunner shells out via os/exec, capturing stdout/stderr.
type DefaultRunner struct{}

func (r *DefaultRunner) Run(ctx context.Context, name string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = os.Environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
