// Package crossref links validated findings to the narratives that
// surfaced their repos, and scores each narrative by the risk its linked
// findings represent.
package crossref

import (
	"context"
	"sort"
	"strings"

	"github.com/solguard/solguard/internal/domain"
)

// RelevanceAnnotator performs the optional LLM relevance pass: one short
// model call per narrative, returning advisory prose. It must never
// influence risk_score — callers snapshot scores before invoking this.
type RelevanceAnnotator interface {
	Annotate(ctx context.Context, narrative domain.Narrative) (string, error)
}

// Orphan is a finding whose repo matched no narrative's active_repos.
type Orphan struct {
	Repo    string
	Finding domain.Finding
}

// Link populates each narrative's RepoFindings by matching active_repos
// against each finding's Repo, case-insensitively. Findings for repos
// named by no narrative are returned separately as orphans.
func Link(narratives []domain.Narrative, findings []domain.Finding) ([]domain.Narrative, []Orphan) {
	byRepo := make(map[string][]domain.Finding)
	for _, f := range findings {
		key := strings.ToLower(f.Repo)
		byRepo[key] = append(byRepo[key], f)
	}

	linked := make(map[string]bool)
	out := make([]domain.Narrative, len(narratives))
	for i, n := range narratives {
		n.RepoFindings = make(map[string][]domain.Finding)
		for _, repo := range n.ActiveRepos {
			key := strings.ToLower(repo)
			if fs, ok := byRepo[key]; ok {
				n.RepoFindings[repo] = fs
				linked[key] = true
			}
		}
		out[i] = n
	}

	var orphans []Orphan
	for key, fs := range byRepo {
		if linked[key] {
			continue
		}
		for _, f := range fs {
			orphans = append(orphans, Orphan{Repo: f.Repo, Finding: f})
		}
	}
	sort.Slice(orphans, func(i, j int) bool {
		if orphans[i].Repo != orphans[j].Repo {
			return orphans[i].Repo < orphans[j].Repo
		}
		return orphans[i].Finding.Line < orphans[j].Finding.Line
	})

	return out, orphans
}

// Score computes risk_score and risk_level for each narrative from its
// already-linked RepoFindings, then returns narratives sorted by
// risk_score desc, confidence desc, title asc. Score is pure given its
// inputs: re-scoring an already-scored narrative yields the same result.
func Score(narratives []domain.Narrative) []domain.Narrative {
	out := make([]domain.Narrative, len(narratives))
	copy(out, narratives)

	for i, n := range out {
		var total float64
		for _, findings := range n.RepoFindings {
			for _, f := range findings {
				total += f.Severity.Weight() * f.Validation.Multiplier()
			}
		}
		total *= n.Confidence
		out[i].RiskScore = total
		out[i].RiskLevel = domain.RiskLevelFor(total)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RiskScore != b.RiskScore {
			return a.RiskScore > b.RiskScore
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Title < b.Title
	})

	return out
}

// AnnotateRelevance runs the optional LLM relevance pass over already-
// scored narratives. The annotator only ever receives a copy and its
// return value is prose, never a score, so scoring stays untouched. A
// narrative whose annotation call fails is skipped, not retried.
func AnnotateRelevance(ctx context.Context, ann RelevanceAnnotator, narratives []domain.Narrative) (map[string]string, error) {
	notes := make(map[string]string, len(narratives))
	for _, n := range narratives {
		note, err := ann.Annotate(ctx, n)
		if err != nil {
			continue
		}
		notes[n.ID] = note
	}
	return notes, nil
}
