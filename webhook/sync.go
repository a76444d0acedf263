package webhook

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Runner executes one command in dir and returns its captured output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs real processes.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// SyncError carries the stderr of a failed pull.
type SyncError struct {
	Stderr string
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("git pull failed: %v", e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Syncer stashes local edits and pulls the branch from origin.
type Syncer struct {
	RepoPath string
	Branch   string
	Runner   Runner
}

// Sync returns the stdout of git pull.
func (s *Syncer) Sync(ctx context.Context) (string, error) {
	// Stash failures (nothing to stash, detached state) do not block the pull.
	_, _, _ = s.Runner.Run(ctx, s.RepoPath, "git", "stash")

	stdout, stderr, err := s.Runner.Run(ctx, s.RepoPath, "git", "pull", "origin", s.Branch)
	if err != nil {
		return stdout, &SyncError{Stderr: stderr, Err: err}
	}
	return stdout, nil
}
