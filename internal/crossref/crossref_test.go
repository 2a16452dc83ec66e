package crossref

import (
	"context"
	"math"
	"testing"

	"github.com/solguard/solguard/internal/domain"
)

func TestLink_CaseInsensitiveRepoMatch(t *testing.T) {
	narratives := []domain.Narrative{
		{ID: "n1", ActiveRepos: []string{"SolSwap"}},
	}
	findings := []domain.Finding{
		{Repo: "solswap", File: "a.rs", Line: 1, PatternID: "SOL-001"},
	}
	linked, orphans := Link(narratives, findings)
	if len(linked[0].RepoFindings["SolSwap"]) != 1 {
		t.Fatalf("expected case-insensitive link, got %+v", linked[0].RepoFindings)
	}
	if len(orphans) != 0 {
		t.Fatalf("expected no orphans, got %+v", orphans)
	}
}

func TestLink_OrphanFindings(t *testing.T) {
	narratives := []domain.Narrative{{ID: "n1", ActiveRepos: []string{"SolSwap"}}}
	findings := []domain.Finding{
		{Repo: "unrelated-repo", File: "a.rs", Line: 1},
	}
	_, orphans := Link(narratives, findings)
	if len(orphans) != 1 {
		t.Fatalf("expected 1 orphan, got %d", len(orphans))
	}
}

func TestLink_TwoNarrativesSharingRepo(t *testing.T) {
	narratives := []domain.Narrative{
		{ID: "n1", ActiveRepos: []string{"SolSwap"}},
		{ID: "n2", ActiveRepos: []string{"SolSwap"}},
	}
	findings := []domain.Finding{
		{Repo: "SolSwap", File: "a.rs", Line: 1, PatternID: "SOL-001"},
	}
	linked, _ := Link(narratives, findings)
	if len(linked[0].RepoFindings["SolSwap"]) != 1 || len(linked[1].RepoFindings["SolSwap"]) != 1 {
		t.Fatalf("expected each narrative to get its own copy of the contribution, got %+v", linked)
	}
}

func TestScore_ExampleScenario(t *testing.T) {
	narratives := []domain.Narrative{
		{
			ID:         "n1",
			Title:      "restaking surge",
			Confidence: 0.8,
			RepoFindings: map[string][]domain.Finding{
				"SolSwap": {
					{Severity: domain.SeverityHigh, Validation: domain.ValidationConfirmed},
					{Severity: domain.SeverityMedium, Validation: domain.ValidationUnvalidated},
				},
			},
		},
	}
	scored := Score(narratives)
	want := 0.8 * (5*1.0 + 2*0.7)
	if math.Abs(scored[0].RiskScore-want) > 0.001 {
		t.Fatalf("expected risk_score~=%f, got %f", want, scored[0].RiskScore)
	}
	if scored[0].RiskLevel != domain.RiskMedium {
		t.Fatalf("expected risk_level=Medium, got %s", scored[0].RiskLevel)
	}
}

func TestScore_DismissedContributesZero(t *testing.T) {
	base := domain.Narrative{
		ID:         "n1",
		Confidence: 1.0,
		RepoFindings: map[string][]domain.Finding{
			"x": {{Severity: domain.SeverityCritical, Validation: domain.ValidationConfirmed}},
		},
	}
	withDismissed := base
	withDismissed.RepoFindings = map[string][]domain.Finding{
		"x": {
			{Severity: domain.SeverityCritical, Validation: domain.ValidationConfirmed},
			{Severity: domain.SeverityHigh, Validation: domain.ValidationDismissed},
		},
	}

	a := Score([]domain.Narrative{base})[0].RiskScore
	b := Score([]domain.Narrative{withDismissed})[0].RiskScore
	if a != b {
		t.Fatalf("expected dismissed finding to change score by exactly 0: %f vs %f", a, b)
	}
}

func TestScore_SortOrder(t *testing.T) {
	low := domain.Narrative{ID: "low", Title: "b", Confidence: 0.5, RiskScore: 0}
	low.RepoFindings = map[string][]domain.Finding{}
	high := domain.Narrative{ID: "high", Title: "a", Confidence: 0.9,
		RepoFindings: map[string][]domain.Finding{
			"x": {{Severity: domain.SeverityCritical, Validation: domain.ValidationConfirmed}},
		},
	}
	scored := Score([]domain.Narrative{low, high})
	if scored[0].ID != "high" {
		t.Fatalf("expected higher risk_score first, got order %+v", scored)
	}
}

func TestScore_Idempotent(t *testing.T) {
	n := domain.Narrative{
		ID:         "n1",
		Confidence: 0.6,
		RepoFindings: map[string][]domain.Finding{
			"x": {{Severity: domain.SeverityHigh, Validation: domain.ValidationConfirmed}},
		},
	}
	once := Score([]domain.Narrative{n})
	twice := Score(once)
	if once[0].RiskScore != twice[0].RiskScore || once[0].RiskLevel != twice[0].RiskLevel {
		t.Fatalf("expected Score to be idempotent on already-scored narratives")
	}
}

type fakeAnnotator struct{ note string }

func (f fakeAnnotator) Annotate(ctx context.Context, n domain.Narrative) (string, error) {
	return f.note, nil
}

func TestAnnotateRelevance_DoesNotChangeScore(t *testing.T) {
	narratives := Score([]domain.Narrative{
		{ID: "n1", Confidence: 0.5, RepoFindings: map[string][]domain.Finding{
			"x": {{Severity: domain.SeverityHigh, Validation: domain.ValidationConfirmed}},
		}},
	})
	before := narratives[0].RiskScore

	notes, err := AnnotateRelevance(context.Background(), fakeAnnotator{note: "trending"}, narratives)
	if err != nil {
		t.Fatalf("AnnotateRelevance: %v", err)
	}
	if notes["n1"] != "trending" {
		t.Fatalf("expected relevance note recorded, got %+v", notes)
	}
	if narratives[0].RiskScore != before {
		t.Fatalf("AnnotateRelevance must not mutate risk_score")
	}
}
