package toolbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/solguard/solguard/internal/domain"
)

// Sandbox enforces filesystem boundaries for every tool operation. It is
// the single most critical security component in the toolbox.
//
// SECURITY MODEL:
// - All paths are resolved to absolute form before comparison
// - Symlinks are resolved to prevent symlink traversal attacks
// - The root path itself is resolved at sandbox creation time
// - No tool can access anything outside the resolved root
//
// THREAT MODEL:
// - Path traversal via "../" sequences
// - Symlink escape (symlink inside repo pointing to /etc/passwd)
// - Unicode/encoding tricks in filenames
// - Race conditions (TOCTOU) — mitigated by resolving at check time
type Sandbox struct {
	// resolvedRoot is the absolute, symlink-resolved path that forms
	// the boundary. Computed once at creation, never changed.
	resolvedRoot string
}

// NewSandbox creates a sandbox rooted at the given path. The path must
// exist and must be a directory. Symlinks are resolved immediately to
// establish a canonical root.
func NewSandbox(rootPath string) (*Sandbox, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("sandbox: failed to resolve absolute path %q: %w", rootPath, err)
	}

	// Resolve all symlinks in the root path itself. This prevents a repo
	// whose root is itself a symlink to "/" or another sensitive directory.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return nil, fmt.Errorf("sandbox: failed to resolve symlinks for %q: %w", absPath, err)
	}

	info, err := os.Stat(resolvedPath)
	if err != nil {
		return nil, fmt.Errorf("sandbox: root path %q does not exist: %w", resolvedPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox: root path %q is not a directory", resolvedPath)
	}

	return &Sandbox{resolvedRoot: resolvedPath}, nil
}

// ValidatePath checks that the given path is within the sandbox root.
// Returns the resolved absolute path if valid, or a PathEscape error.
//
// Every tool MUST call this before touching any file or directory. It:
// 1. Joins the path with root if relative
// 2. Resolves to absolute
// 3. Resolves symlinks (preventing symlink escape)
// 4. Verifies the resolved path starts with the sandbox root
func (s *Sandbox) ValidatePath(requestedPath string) (string, error) {
	var absPath string

	if filepath.IsAbs(requestedPath) {
		absPath = filepath.Clean(requestedPath)
	} else {
		absPath = filepath.Clean(filepath.Join(s.resolvedRoot, requestedPath))
	}

	// Resolve symlinks to get the real path on disk. Without this, a
	// symlink at repo/link -> /etc/shadow would pass the prefix check
	// but access files outside the sandbox.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		// Path doesn't exist yet (e.g. validating a would-be output
		// path) — fall back to checking the parent directory.
		parentDir := filepath.Dir(absPath)
		resolvedParent, parentErr := filepath.EvalSymlinks(parentDir)
		if parentErr != nil {
			return "", NewToolError(domain.KindPathEscape, fmt.Sprintf("path %q does not exist and parent cannot be resolved", requestedPath))
		}
		if !s.isWithinRoot(resolvedParent) {
			return "", NewToolError(domain.KindPathEscape, fmt.Sprintf("path %q resolves outside sandbox root", requestedPath))
		}
		return absPath, nil
	}

	if !s.isWithinRoot(resolvedPath) {
		return "", NewToolError(domain.KindPathEscape, fmt.Sprintf("path %q resolves to %q which is outside sandbox root %q", requestedPath, resolvedPath, s.resolvedRoot))
	}

	return resolvedPath, nil
}

// isWithinRoot performs the containment check. A path separator is
// appended to the root before the prefix check so root="/repo" does not
// match "/repository" or "/repo-other".
func (s *Sandbox) isWithinRoot(resolvedPath string) bool {
	if resolvedPath == s.resolvedRoot {
		return true
	}
	return strings.HasPrefix(resolvedPath, s.resolvedRoot+string(filepath.Separator))
}

// Root returns the resolved sandbox root path.
func (s *Sandbox) Root() string {
	return s.resolvedRoot
}

