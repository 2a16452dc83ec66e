package regexscan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/solguard/solguard/internal/domain"
)

func writeTempRust(t *testing.T, content string) (absPath, relPath string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "lib.rs")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path, "lib.rs"
}

func TestScanFile_SOL006_AccountRevival(t *testing.T) {
	src := `pub fn close_vault(ctx: Context<CloseVault>) -> Result<()> {
    let vault = &mut ctx.accounts.vault;
    **vault.to_account_info().lamports.borrow_mut() = 0;
    Ok(())
}
`
	abs, rel := writeTempRust(t, src)
	s := New()
	findings, err := s.ScanFile(abs, rel)
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	var found bool
	for _, f := range findings {
		if f.PatternID == "SOL-006" {
			found = true
			if f.Severity != domain.SeverityCritical {
				t.Errorf("expected SOL-006 severity Critical, got %s", f.Severity)
			}
			if f.Line != 3 {
				t.Errorf("expected match at line 3, got %d", f.Line)
			}
		}
	}
	if !found {
		t.Fatalf("expected SOL-006 finding, got %+v", findings)
	}
}

func TestScanFile_SafePatternNegates(t *testing.T) {
	src := `#[account(close = destination)]
pub struct CloseVault<'info> {
    pub vault: Account<'info, Vault>,
}
`
	abs, rel := writeTempRust(t, src)
	s := New()
	findings, err := s.ScanFile(abs, rel)
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	for _, f := range findings {
		if f.PatternID == "SOL-006" {
			t.Errorf("expected safe pattern to negate SOL-006, got finding %+v", f)
		}
	}
}

func TestScanFile_CapsExcessiveMatches(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 250; i++ {
		b.WriteString("let amount -= fee;\n")
	}
	abs, rel := writeTempRust(t, b.String())
	s := New()
	findings, err := s.ScanFile(abs, rel)
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	var sol003 []domain.Finding
	for _, f := range findings {
		if f.PatternID == "SOL-003" {
			sol003 = append(sol003, f)
		}
	}
	if len(sol003) != 201 {
		t.Fatalf("expected 200 individual findings plus one aggregate when capped, got %d", len(sol003))
	}
	last := sol003[len(sol003)-1]
	if !strings.Contains(last.Title, "cap") {
		t.Errorf("expected aggregate cap finding last, got title %q", last.Title)
	}
	for _, f := range sol003[:len(sol003)-1] {
		if strings.Contains(f.Title, "cap") {
			t.Errorf("individual finding unexpectedly carries the cap marker: %q", f.Title)
		}
	}
}

func TestScanFile_EmptyFile(t *testing.T) {
	abs, rel := writeTempRust(t, "")
	s := New()
	findings, err := s.ScanFile(abs, rel)
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected no findings in empty file, got %+v", findings)
	}
}

func TestScanFile_SingleLineFile(t *testing.T) {
	abs, rel := writeTempRust(t, "unchecked { tx.origin }")
	s := New()
	if _, err := s.ScanFile(abs, rel); err != nil {
		t.Fatalf("ScanFile on single-line file: %v", err)
	}
}
