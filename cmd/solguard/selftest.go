package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/solguard/solguard/internal/budgetplan"
	"github.com/solguard/solguard/internal/crossref"
	"github.com/solguard/solguard/internal/domain"
	"github.com/solguard/solguard/internal/pipeline"
	"github.com/solguard/solguard/internal/providers"
)

// runSelfCheck exercises the deterministic parts of the pipeline against
// a scripted model stub, backing the `solguard test` subcommand: a user
// can sanity-check an install without spending API budget.
func runSelfCheck() error {
	if err := checkBudgetPlanner(); err != nil {
		return err
	}
	if err := checkCrossRefScoring(); err != nil {
		return err
	}
	if err := checkScriptedInvestigation(); err != nil {
		return err
	}
	return nil
}

func checkBudgetPlanner() error {
	b := budgetplan.Compute(1.0, 1)
	if b.MaxTurns != 40 || math.Abs(b.CostLimitUSD-30) > 1e-9 {
		return fmt.Errorf("compute_budget(1.0, 1) = %+v, want max_turns=40 cost_limit=30", b)
	}
	b2 := budgetplan.Compute(0.2, 4)
	if b2.MaxTurns != 9 {
		return fmt.Errorf("compute_budget(0.2, 4).MaxTurns = %d, want 9", b2.MaxTurns)
	}
	return nil
}

func checkCrossRefScoring() error {
	narratives := []domain.Narrative{{ID: "n1", Title: "test narrative", Confidence: 0.8, ActiveRepos: []string{"repo-a"}}}
	findings := []domain.Finding{
		{Repo: "repo-a", Severity: domain.SeverityHigh, Validation: domain.ValidationConfirmed},
		{Repo: "repo-a", Severity: domain.SeverityMedium, Validation: domain.ValidationUnvalidated},
	}
	linked, _ := crossref.Link(narratives, findings)
	scored := crossref.Score(linked)
	want := 0.8 * (5*1.0 + 2*0.7)
	if math.Abs(scored[0].RiskScore-want) > 1e-9 {
		return fmt.Errorf("risk_score = %.4f, want %.4f", scored[0].RiskScore, want)
	}
	if scored[0].RiskLevel != domain.RiskMedium {
		return fmt.Errorf("risk_level = %s, want medium", scored[0].RiskLevel)
	}
	return nil
}

// checkScriptedInvestigation runs one deep-mode scan against a fixture
// repo using a ScriptedProvider, asserting the known SOL-006 static
// finding and the scripted agent finding both survive the merge.
func checkScriptedInvestigation() error {
	dir, err := os.MkdirTemp("", "solguard-selftest-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	programDir := filepath.Join(dir, "programs", "vault", "src")
	if err := os.MkdirAll(programDir, 0o755); err != nil {
		return err
	}
	src := `pub fn close_vault(ctx: Context<CloseVault>) -> Result<()> {
    **ctx.accounts.vault.lamports.borrow_mut() = 0;
    Ok(())
}
`
	if err := os.WriteFile(filepath.Join(programDir, "lib.rs"), []byte(src), 0o644); err != nil {
		return err
	}

	scripted := providers.NewScriptedProvider("scripted-selftest",
		providers.ScriptedTurn{Text: `[{"severity": "high", "file": "programs/vault/src/lib.rs", "line": 2, "title": "agent confirms revival risk", "description": "d"}]`},
	)

	repo := domain.RepoHandle{Name: "vault", Path: dir}
	result := pipeline.ScanRepo(context.Background(), repo, nil, pipeline.Options{
		Deep:     true,
		Provider: scripted,
	})

	hasStatic, hasAgent := false, false
	for _, f := range result.Findings {
		if f.PatternID == "SOL-006" {
			hasStatic = true
		}
		if f.PatternID == "AGENT-001" {
			hasAgent = true
		}
	}
	if !hasStatic {
		return fmt.Errorf("expected SOL-006 static finding in scripted self-check, got %+v", result.Findings)
	}
	if !hasAgent {
		return fmt.Errorf("expected AGENT-001 scripted finding in scripted self-check, got %+v", result.Findings)
	}
	return nil
}
