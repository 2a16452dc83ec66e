package scanctx

import (
	"testing"

	"github.com/solguard/solguard/internal/domain"
)

func TestFocusAreasFor_KnownAndUnknownCategories(t *testing.T) {
	dex := FocusAreasFor(domain.ProtocolDex)
	if len(dex) != 3 {
		t.Fatalf("expected 3 dex focus areas, got %d", len(dex))
	}
	unknown := FocusAreasFor(domain.ProtocolCategory("made-up"))
	other := FocusAreasFor(domain.ProtocolOther)
	if len(unknown) != len(other) || unknown[0] != other[0] {
		t.Fatalf("unknown category should fall back to Other, got %v", unknown)
	}
}

func TestBuild_PopulatesSiblingFindings(t *testing.T) {
	repo := domain.RepoHandle{Name: "vault", Path: "/repos/vault"}
	findings := []domain.Finding{{PatternID: "SOL-006", Severity: domain.SeverityCritical, File: "lib.rs", Line: 10}}
	budget := domain.Budget{MaxTurns: 10, CostLimitUSD: 5}

	ctx := Build(repo, domain.ProtocolLending, "lending narrative", findings, budget)

	if len(ctx.SiblingFindings) != 1 {
		t.Fatalf("expected 1 sibling finding, got %d", len(ctx.SiblingFindings))
	}
	if ctx.FocusAreas[0] != "liquidation paths" {
		t.Fatalf("expected lending focus areas, got %v", ctx.FocusAreas)
	}
}

func TestRenderFindingsTable_EmptyAndNonEmpty(t *testing.T) {
	if RenderFindingsTable(nil) == "" {
		t.Fatal("expected non-empty placeholder for no findings")
	}
	findings := []domain.Finding{{PatternID: "SOL-001", Severity: domain.SeverityHigh, File: "a.rs", Line: 3, Title: "x"}}
	out := RenderFindingsTable(findings)
	if out == "" {
		t.Fatal("expected rendered table")
	}
}
