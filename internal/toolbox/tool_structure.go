package toolbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/solguard/solguard/internal/astscan"
	"github.com/solguard/solguard/internal/domain"
)

// GetFileStructureTool returns a compact outline of a host-program
// file's top-level declarations, backed by the same tree-sitter grammar
// the AST pattern engine uses.
type GetFileStructureTool struct {
	sandbox *Sandbox
}

func NewGetFileStructureTool(sandbox *Sandbox) *GetFileStructureTool {
	return &GetFileStructureTool{sandbox: sandbox}
}

func (t *GetFileStructureTool) Spec() Spec {
	return Spec{
		Name:        "get_file_structure",
		Description: "Return a compact outline of a Rust file's top-level declarations (functions, structs, impls, modules).",
		Args: []ArgSpec{
			{Name: "path", Type: "string", Description: "Repo-relative path to a Rust source file.", Required: true},
		},
	}
}

func (t *GetFileStructureTool) Run(ctx context.Context, args Args) Outcome {
	path, err := args.Text("path")
	if err != nil {
		return failErr(err)
	}

	resolved, err := t.sandbox.ValidatePath(path)
	if err != nil {
		return failErr(err)
	}

	if !strings.EqualFold(filepath.Ext(resolved), ".rs") {
		return failf(domain.KindNotHostSource, "%s is not a recognized host-program source file", path)
	}

	source, err := os.ReadFile(resolved)
	if err != nil {
		return failf(domain.KindIoFailure, "%s", err.Error())
	}

	outline, err := astscan.Outline(ctx, source)
	if err != nil {
		return failf(domain.KindNotHostSource, "%s", err.Error())
	}

	return Outcome{Content: outline}
}
