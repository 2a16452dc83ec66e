package pipeline

import (
	"context"
	"os"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/solguard/solguard/internal/agent"
	"github.com/solguard/solguard/internal/astscan"
	"github.com/solguard/solguard/internal/budgetplan"
	"github.com/solguard/solguard/internal/crossref"
	"github.com/solguard/solguard/internal/dedup"
	"github.com/solguard/solguard/internal/domain"
	"github.com/solguard/solguard/internal/logger"
	"github.com/solguard/solguard/internal/providers"
	"github.com/solguard/solguard/internal/regexscan"
	"github.com/solguard/solguard/internal/scanctx"
	"github.com/solguard/solguard/internal/toolbox"
	"github.com/solguard/solguard/internal/validator"
	"github.com/solguard/solguard/internal/walker"
)

// Options configures one pipeline run. NRepo/NVal mirror
// config.PipelineConfig's concurrency tiers; Deep toggles whether the
// agent investigation and validator run at all, matching the `--deep`
// CLI flag.
type Options struct {
	Deep             bool
	ValidatorEnabled bool
	NRepo            int
	NVal             int
	Provider         providers.Provider
	Verbose          bool
	AuditLogDir      string

	// Category, when non-empty, overrides ClassifyRepo's name-based
	// heuristic for every repo in the run (the `investigate --category`
	// flag). Leave empty to classify per repo.
	Category domain.ProtocolCategory

	// MaxTurnsCap / CostCapUSD clamp the planner's computed budget from
	// above (config max_turns_cap / cost_cap_usd, or the --max-turns /
	// --cost-limit flags). Zero means no cap beyond the planner's own.
	MaxTurnsCap int
	CostCapUSD  float64

	// PatternOverrides remaps a pattern id to a different severity
	// (config pattern_overrides). Unknown pattern ids and invalid
	// severities are ignored.
	PatternOverrides map[string]string
}

// applyBudgetCaps clamps a planned budget to the run-level caps.
func (o Options) applyBudgetCaps(b domain.Budget) domain.Budget {
	if o.MaxTurnsCap > 0 && b.MaxTurns > o.MaxTurnsCap {
		b.MaxTurns = o.MaxTurnsCap
	}
	if o.CostCapUSD > 0 && b.CostLimitUSD > o.CostCapUSD {
		b.CostLimitUSD = o.CostCapUSD
	}
	return b
}

// applyPatternOverrides rewrites finding severities per the configured
// pattern_overrides map.
func (o Options) applyPatternOverrides(findings []domain.Finding) []domain.Finding {
	if len(o.PatternOverrides) == 0 {
		return findings
	}
	for i, f := range findings {
		if raw, ok := o.PatternOverrides[string(f.PatternID)]; ok {
			if sev := domain.Severity(strings.ToLower(raw)); sev.Valid() {
				findings[i].Severity = sev
			}
		}
	}
	return findings
}

// bestNarrativeFor pairs a repo with the single narrative whose active_repos
// named it most confidently, used to size that repo's investigation
// budget from that narrative's confidence and active-repo count.
func bestNarrativeFor(repo domain.RepoHandle, narratives []domain.Narrative) (domain.Narrative, bool) {
	var best domain.Narrative
	found := false
	for _, n := range narratives {
		for _, active := range n.ActiveRepos {
			if !sameRepoName(active, repo.Name) {
				continue
			}
			if !found || n.Confidence > best.Confidence {
				best = n
				found = true
			}
		}
	}
	return best, found
}

func sameRepoName(a, b string) bool {
	return strings.EqualFold(a, b)
}

// ScanStatic walks one repo and runs the regex and AST engines over
// every host-source file, returning a deduplicated finding set stamped
// with the repo name.
// Per-file parse failures are counted in stats but never abort the scan.
func ScanStatic(ctx context.Context, repo domain.RepoHandle) ([]domain.Finding, domain.ScanStats) {
	files, err := walker.Walk(repo.Path)
	stats := domain.ScanStats{}
	if err != nil {
		stats.AbortReason = err.Error()
		return nil, stats
	}
	stats.FilesWalked = len(files)

	rx := regexscan.New()
	ast := astscan.New()

	var all []domain.Finding
	for _, abs := range files {
		if ctx.Err() != nil {
			stats.Partial = true
			break
		}

		rel, err := walker.RelPath(repo.Path, abs)
		if err != nil {
			stats.ParseFailures++
			continue
		}

		rxFindings, err := rx.ScanFile(abs, rel)
		if err != nil {
			stats.ParseFailures++
		} else {
			stats.RegexMatches += len(rxFindings)
			all = append(all, rxFindings...)
		}

		source, err := os.ReadFile(abs)
		if err != nil {
			stats.ParseFailures++
			continue
		}
		astFindings, err := ast.ScanFile(ctx, source, rel)
		if err != nil {
			stats.ParseFailures++
			continue
		}
		stats.FilesParsed++
		stats.ASTMatches += len(astFindings)
		all = append(all, astFindings...)
	}

	for i := range all {
		all[i].Repo = repo.Name
	}
	merged := dedup.Merge(all)
	return merged, stats
}

// ScanRepo runs the full per-repo pipeline: the static scan, then, if
// opts.Deep is set, scan-context assembly, budget planning, the agent
// investigation, a second merge of the agent's findings, and
// adversarial validation. narratives provides the framing (protocol
// category inference is heuristic — ClassifyRepo — and budget sizing
// comes from the best-matching narrative's confidence and repo count).
func ScanRepo(ctx context.Context, repo domain.RepoHandle, narratives []domain.Narrative, opts Options) domain.ScanResult {
	findings, stats := ScanStatic(ctx, repo)
	findings = dedup.Merge(opts.applyPatternOverrides(findings))

	if !opts.Deep || opts.Provider == nil {
		return domain.ScanResult{Repo: repo, Findings: findings, Stats: stats}
	}

	narrative, matched := bestNarrativeFor(repo, narratives)
	confidence := 0.3
	repoCount := 1
	summary := "(no matching narrative; investigated on static findings alone)"
	if matched {
		confidence = narrative.Confidence
		repoCount = len(narrative.ActiveRepos)
		summary = narrative.Summary
	}
	budget := opts.applyBudgetCaps(budgetplan.Compute(confidence, repoCount))

	category := opts.Category
	if category == "" {
		category = ClassifyRepo(repo)
	}
	scanCtx := scanctx.Build(repo, category, summary, findings, budget)

	executor, err := toolbox.NewExecutor(repo.Path, toolbox.NewTrace(opts.Verbose))
	if err != nil {
		stats.Partial = true
		stats.AbortReason = err.Error()
		return domain.ScanResult{Repo: repo, Findings: findings, Stats: stats}
	}

	agentResult := agent.Investigate(ctx, opts.Provider, executor, scanCtx)
	merged := dedup.Merge(append(append([]domain.Finding{}, findings...), agentResult.Findings...))

	mergedStats := combineStats(stats, agentResult.Stats)

	if opts.ValidatorEnabled {
		nVal := opts.NVal
		if nVal < 1 {
			nVal = 1
		}
		surviving, audit := validator.ValidateAll(ctx, opts.Provider, executor, repo, merged, budget, nVal)
		merged = surviving
		if opts.AuditLogDir != "" {
			if err := validator.AppendAuditLog(opts.AuditLogDir, audit); err != nil {
				logger.Warning("pipeline: failed to append validator audit log for %s: %v", repo.Name, err)
			}
		}
	}

	merged = dedup.Merge(merged)
	return domain.ScanResult{Repo: repo, Findings: merged, Stats: mergedStats}
}

func combineStats(static, agentStats domain.ScanStats) domain.ScanStats {
	return domain.ScanStats{
		FilesWalked:   static.FilesWalked,
		FilesParsed:   static.FilesParsed,
		ParseFailures: static.ParseFailures,
		RegexMatches:  static.RegexMatches,
		ASTMatches:    static.ASTMatches,
		TurnsUsed:     agentStats.TurnsUsed,
		ToolCalls:     agentStats.ToolCalls,
		TokensUsed:    agentStats.TokensUsed,
		CostUSD:       agentStats.CostUSD,
		Duration:      agentStats.Duration,
		Partial:       static.Partial || agentStats.Partial,
		AbortReason:   firstNonEmpty(static.AbortReason, agentStats.AbortReason),
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Run scans every repo up to opts.NRepo concurrently, then links and
// scores the combined findings against narratives. Results are returned repo-ordered by name
// for determinism; narratives come back sorted by risk_score per
// crossref.Score.
func Run(ctx context.Context, repos []domain.RepoHandle, narratives []domain.Narrative, opts Options) ([]domain.ScanResult, []domain.Narrative, []crossref.Orphan) {
	nRepo := opts.NRepo
	if nRepo < 1 {
		nRepo = 1
	}

	results := make([]domain.ScanResult, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(nRepo)

	for i, repo := range repos {
		i, repo := i, repo
		g.Go(func() error {
			results[i] = ScanRepo(gctx, repo, narratives, opts)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Repo.Name < results[j].Repo.Name })

	var allFindings []domain.Finding
	for _, r := range results {
		allFindings = append(allFindings, r.Findings...)
	}

	linked, orphans := crossref.Link(narratives, allFindings)
	scored := crossref.Score(linked)

	return results, scored, orphans
}
