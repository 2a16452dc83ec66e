// Package walker enumerates host-program source files under a repo root,
// excluding test/SDK/client trees so static and agent analysis only ever
// see on-chain program code.
package walker

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// excludedDirs names ancestor directories whose entire subtree is
// skipped: SDK/client/test trees hold no on-chain program code.
var excludedDirs = map[string]bool{
	"tests":        true,
	"test":         true,
	"client":       true,
	"clients":      true,
	"sdk":          true,
	"js":           true,
	"node_modules": true,
	"target":       true,
}

// hostSourceExts marks a file as host-program source by extension.
var hostSourceExts = map[string]bool{
	".rs": true,
}

// Walk returns every host-program source file under repoRoot, in
// lexicographic order by absolute path. Symlinks are neither followed for
// traversal nor reported as files. A file's ancestor path is checked for
// any directory named in excludedDirs; matching subtrees are pruned
// entirely rather than merely filtering their contents.
func Walk(repoRoot string) ([]string, error) {
	root, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&os.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && excludedDirs[strings.ToLower(d.Name())] {
				return filepath.SkipDir
			}
			return nil
		}
		if !hostSourceExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// RelPath returns path relative to root, using forward slashes regardless
// of platform, matching the repo-relative path shape findings carry.
func RelPath(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
