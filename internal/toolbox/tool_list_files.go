package toolbox

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/solguard/solguard/internal/domain"
)

// ListFilesTool lists the immediate children of a directory within the
// sandbox, letting the agent navigate the repo one level at a time
// rather than being handed an entire tree up front.
type ListFilesTool struct {
	sandbox *Sandbox
}

func NewListFilesTool(sandbox *Sandbox) *ListFilesTool {
	return &ListFilesTool{sandbox: sandbox}
}

func (t *ListFilesTool) Spec() Spec {
	return Spec{
		Name:        "list_files",
		Description: "List the immediate files and subdirectories of a directory in the repo. Directories are suffixed with '/'.",
		Args: []ArgSpec{
			{Name: "subdir", Type: "string", Description: "Repo-relative subdirectory to list. Omit or pass \"\" for the repo root."},
		},
	}
}

func (t *ListFilesTool) Run(ctx context.Context, args Args) Outcome {
	subdir, err := args.OptionalText("subdir")
	if err != nil {
		return failErr(err)
	}

	resolved, err := t.sandbox.ValidatePath(subdir)
	if err != nil {
		return failErr(err)
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return failf(domain.KindIoFailure, "%s", err.Error())
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	rel, relErr := filepath.Rel(t.sandbox.Root(), resolved)
	if relErr != nil || rel == "." {
		rel = ""
	}
	prefixed := make([]string, len(names))
	for i, n := range names {
		if rel == "" {
			prefixed[i] = n
		} else {
			prefixed[i] = filepath.ToSlash(filepath.Join(rel, n))
			if strings.HasSuffix(n, "/") {
				prefixed[i] += "/"
			}
		}
	}

	return Outcome{Content: strings.Join(prefixed, "\n")}
}
