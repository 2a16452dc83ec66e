package toolbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "programs", "vault", "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	src := "pub fn deposit(amount: u64) {\n    let authority = 1;\n}\n"
	if err := os.WriteFile(filepath.Join(root, "programs", "vault", "src", "lib.rs"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestExecutor_ToolSurface(t *testing.T) {
	root := writeRepo(t)
	trace := NewTrace(false)
	exec, err := NewExecutor(root, trace)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	ctx := context.Background()

	out := exec.Execute(ctx, "read_file", map[string]any{"path": "programs/vault/src/lib.rs"})
	if out.Failed {
		t.Fatalf("read_file failed: %s", out.Content)
	}

	out = exec.Execute(ctx, "search_code", map[string]any{"pattern": "authority"})
	if out.Failed {
		t.Fatalf("search_code failed: %s", out.Content)
	}

	out = exec.Execute(ctx, "search_code", map[string]any{"pattern": "("})
	if !out.Failed {
		t.Fatal("expected BadPattern failure for invalid regex")
	}

	out = exec.Execute(ctx, "get_file_structure", map[string]any{"path": "programs/vault/src/lib.rs"})
	if out.Failed {
		t.Fatalf("get_file_structure failed: %s", out.Content)
	}

	out = exec.Execute(ctx, "list_files", map[string]any{})
	if out.Failed {
		t.Fatalf("list_files failed: %s", out.Content)
	}

	out = exec.Execute(ctx, "read_file", map[string]any{"path": "../outside"})
	if !out.Failed {
		t.Fatal("expected path escape failure")
	}

	out = exec.Execute(ctx, "nonexistent_tool", map[string]any{})
	if !out.Failed {
		t.Fatal("expected unknown_tool failure")
	}

	if len(exec.Specs()) != 4 {
		t.Fatalf("expected 4 tool specs, got %d", len(exec.Specs()))
	}
}

func TestExecutor_SpecOrderStable(t *testing.T) {
	exec, err := NewExecutor(writeRepo(t), nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	want := []string{"list_files", "read_file", "search_code", "get_file_structure"}
	got := exec.Names()
	for i, name := range want {
		if got[i] != name {
			t.Fatalf("tool order changed: got %v, want %v", got, want)
		}
	}
}

func TestTrace_RecordsEveryCall(t *testing.T) {
	trace := NewTrace(false)
	exec, err := NewExecutor(writeRepo(t), trace)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	ctx := context.Background()

	exec.Execute(ctx, "list_files", map[string]any{})
	exec.Execute(ctx, "read_file", map[string]any{"path": "missing.rs"})

	calls := trace.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 trace entries, got %d", len(calls))
	}
	if calls[0].Tool != "list_files" || calls[0].Failed {
		t.Fatalf("unexpected first entry: %+v", calls[0])
	}
	if calls[1].Tool != "read_file" || !calls[1].Failed {
		t.Fatalf("expected failed read_file entry, got %+v", calls[1])
	}
}
