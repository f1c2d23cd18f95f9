// Package git answers whether a patch has landed by searching the commit log
// of a local repository.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/teemow/mailtriage/internal/logging"
)

// ErrNoGitDir is returned when a Repository has no git directory configured.
var ErrNoGitDir = errors.New("git directory not set")

// Repository runs read-only git commands against one repository.
type Repository struct {
	// GitDir is passed as --git-dir, e.g. "/src/libcamera/.git".
	GitDir string
	// Binary is the git executable, "git" when empty.
	Binary string
	// Logger receives anything git writes to stderr. Optional.
	Logger logging.Logger
}

// NewRepository creates a Repository for gitDir.
func NewRepository(gitDir string, logger logging.Logger) *Repository {
	return &Repository{GitDir: gitDir, Logger: logger}
}

// HasCommit reports whether any commit message contains title verbatim.
func (r *Repository) HasCommit(ctx context.Context, title string) (bool, error) {
	out, err := r.run(ctx, "log", "--oneline", "--fixed-strings", "--grep", title)
	if err != nil {
		return false, err
	}
	return out != "", nil
}

func (r *Repository) run(ctx context.Context, args ...string) (string, error) {
	if r.GitDir == "" {
		return "", ErrNoGitDir
	}
	bin := r.Binary
	if bin == "" {
		bin = "git"
	}

	full := append([]string{"--no-pager", "--git-dir", r.GitDir}, args...)
	cmd := exec.CommandContext(ctx, bin, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if msg := strings.TrimSpace(stderr.String()); msg != "" && r.Logger != nil {
		r.Logger.Warn("git wrote to stderr", "git_dir", r.GitDir, "stderr", msg)
	}
	if err != nil {
		return "", fmt.Errorf("git %s in %s: %w", args[0], r.GitDir, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
