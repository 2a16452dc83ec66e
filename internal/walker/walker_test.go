package walker

import (
	"os"
	"path/filepath"
	"testing"
)

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll(%q): %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%q): %v", path, err)
	}
}

func TestWalk_FindsHostSourceFiles(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "lib.rs"), "pub fn entry() {}")
	mustWriteFile(t, filepath.Join(dir, "instructions", "deposit.rs"), "pub fn deposit() {}")

	files, err := Walk(dir)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d: %v", len(files), files)
	}
}

func TestWalk_ExcludesBannedDirs(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "lib.rs"), "pub fn entry() {}")
	mustWriteFile(t, filepath.Join(dir, "tests", "integration.rs"), "mod tests;")
	mustWriteFile(t, filepath.Join(dir, "sdk", "js", "index.rs"), "// generated")
	mustWriteFile(t, filepath.Join(dir, "target", "debug", "build.rs"), "// build artifact")

	files, err := Walk(dir)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected excluded dirs to be pruned, got %v", files)
	}
}

func TestWalk_IgnoresNonHostExtensions(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "lib.rs"), "pub fn entry() {}")
	mustWriteFile(t, filepath.Join(dir, "README.md"), "# docs")
	mustWriteFile(t, filepath.Join(dir, "Cargo.toml"), "[package]")

	files, err := Walk(dir)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected only .rs files, got %v", files)
	}
}

func TestWalk_DoesNotFollowSymlinks(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	mustWriteFile(t, filepath.Join(outside, "secret.rs"), "pub fn hidden() {}")
	mustWriteFile(t, filepath.Join(dir, "lib.rs"), "pub fn entry() {}")

	link := filepath.Join(dir, "linked")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlink creation unsupported in this environment: %v", err)
	}

	files, err := Walk(dir)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected symlinked subtree to be skipped, got %v", files)
	}
}

func TestWalk_LexicographicOrder(t *testing.T) {
	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "z.rs"), "")
	mustWriteFile(t, filepath.Join(dir, "a.rs"), "")
	mustWriteFile(t, filepath.Join(dir, "m.rs"), "")

	files, err := Walk(dir)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	for i := 1; i < len(files); i++ {
		if files[i-1] >= files[i] {
			t.Fatalf("files not in lexicographic order: %v", files)
		}
	}
}

func TestWalk_EmptyRepo(t *testing.T) {
	dir := t.TempDir()
	files, err := Walk(dir)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files in empty repo, got %v", files)
	}
}

func TestRelPath(t *testing.T) {
	root := "/repo"
	rel, err := RelPath(root, "/repo/instructions/deposit.rs")
	if err != nil {
		t.Fatalf("RelPath: %v", err)
	}
	if rel != "instructions/deposit.rs" {
		t.Fatalf("expected forward-slash relative path, got %q", rel)
	}
}
