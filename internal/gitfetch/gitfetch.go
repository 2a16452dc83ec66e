// Package gitfetch acquires candidate repositories onto local disk for
// the scanning pipeline by shelling out to the system git binary with a
// restricted environment.
package gitfetch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/solguard/solguard/internal/domain"
)

// CloneDepth bounds the shallow clone depth — candidate repos are
// scanned for current-state vulnerabilities, not history.
const CloneDepth = 50

// CloneOrUpdate clones remoteURL into destDir (a fresh shallow clone),
// or fast-forward pulls it if destDir already holds a git checkout. The
// environment is pinned to prevent the git process from walking past
// destDir's parent in search of a repository.
func CloneOrUpdate(ctx context.Context, remoteURL, destDir string) (domain.RepoHandle, error) {
	name := filepath.Base(destDir)

	if _, err := os.Stat(filepath.Join(destDir, ".git")); err == nil {
		if err := run(ctx, filepath.Dir(destDir), "git", "-C", destDir, "pull", "--ff-only"); err != nil {
			return domain.RepoHandle{}, fmt.Errorf("gitfetch: pull %s: %w", remoteURL, err)
		}
		return domain.RepoHandle{Name: name, Path: destDir}, nil
	}

	if err := os.MkdirAll(filepath.Dir(destDir), 0o755); err != nil {
		return domain.RepoHandle{}, fmt.Errorf("gitfetch: mkdir %s: %w", destDir, err)
	}
	if err := run(ctx, filepath.Dir(destDir), "git", "clone", "--depth", fmt.Sprint(CloneDepth), remoteURL, destDir); err != nil {
		return domain.RepoHandle{}, fmt.Errorf("gitfetch: clone %s: %w", remoteURL, err)
	}
	return domain.RepoHandle{Name: name, Path: destDir}, nil
}

// run executes a git subcommand with a minimal, pinned environment so
// it cannot discover or escape into an unrelated repository above
// ceilingDir.
func run(ctx context.Context, ceilingDir string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"GIT_CEILING_DIRECTORIES=" + ceilingDir,
		"GIT_TERMINAL_PROMPT=0",
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(out))
	}
	return nil
}
