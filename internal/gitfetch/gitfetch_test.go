package gitfetch

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestCloneOrUpdate_ClonesThenPulls(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	upstream := t.TempDir()
	run(context.Background(), upstream, "git", "init", "--quiet", upstream)
	run(context.Background(), upstream, "git", "-C", upstream, "config", "user.email", "test@example.com")
	run(context.Background(), upstream, "git", "-C", upstream, "config", "user.name", "test")
	os.WriteFile(filepath.Join(upstream, "lib.rs"), []byte("fn main() {}\n"), 0o644)
	run(context.Background(), upstream, "git", "-C", upstream, "add", ".")
	run(context.Background(), upstream, "git", "-C", upstream, "commit", "--quiet", "-m", "init")

	dest := filepath.Join(t.TempDir(), "clone-of-vault")
	handle, err := CloneOrUpdate(context.Background(), upstream, dest)
	if err != nil {
		t.Fatalf("CloneOrUpdate (clone): %v", err)
	}
	if handle.Name != "clone-of-vault" {
		t.Fatalf("unexpected handle name: %s", handle.Name)
	}

	if _, err := CloneOrUpdate(context.Background(), upstream, dest); err != nil {
		t.Fatalf("CloneOrUpdate (pull): %v", err)
	}
}
