package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solguard/solguard/internal/domain"
	"github.com/solguard/solguard/internal/providers"
	"github.com/solguard/solguard/internal/toolbox"
)

// rawFinding is the JSON shape the investigation prompt asks the model
// for; PatternID is optional because agent-discovered findings have no
// catalog entry.
type rawFinding struct {
	PatternID   string  `json:"pattern_id"`
	Severity    string  `json:"severity"`
	File        string  `json:"file"`
	Line        int     `json:"line"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
}

// Investigate runs one investigation loop over ctx.Repo and returns
// the agent-discovered findings plus stats on how the loop ran. It
// never returns a transport/parse error directly — unparseable or
// aborted runs come back as a zero-finding, Partial ScanResult so the
// pipeline can continue with the other repos.
func Investigate(pctx context.Context, provider providers.Provider, executor *toolbox.Executor, scanContext domain.ScanContext) domain.ScanResult {
	systemPrompt := BuildSystemPrompt(scanContext)

	cfg := Config{
		SystemPrompt:        systemPrompt,
		InitialPrompt:       "Begin your investigation. Map the instruction surface first, then dig into the focus areas.",
		Executor:            executor,
		Provider:            provider,
		Budget:              scanContext.Budget,
		WallClockLimit:      5 * time.Minute,
		ForcedSummaryPrompt: ForcedSummaryPrompt,
		ValidateFinal:       validateFindingsJSON,
	}

	events, resultCh := Run(pctx, cfg)
	for range events {
		// Pipeline callers that want progress should wrap Run directly;
		// Investigate drains silently for the common case.
	}
	result := <-resultCh

	stats := result.Stats
	findings, err := parseFindings(result.FinalText, scanContext.Repo.Name)
	if err != nil {
		stats.Partial = true
		if stats.AbortReason == "" {
			stats.AbortReason = err.Error()
		}
		return domain.ScanResult{Repo: scanContext.Repo, Findings: nil, Stats: stats}
	}

	return domain.ScanResult{Repo: scanContext.Repo, Findings: findings, Stats: stats}
}

// validateFindingsJSON is the ValidateFinal hook: it only checks that
// the text parses as a JSON array, so the loop can nudge a malformed
// reply before committing to Aborted. Individual malformed elements are
// tolerated and dropped later by parseFindings.
func validateFindingsJSON(text string) error {
	_, err := decodeFindingsArray(text)
	return err
}

func decodeFindingsArray(text string) ([]rawFinding, error) {
	text = stripCodeFence(text)
	var raw []rawFinding
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("findings response is not a JSON array: %w", err)
	}
	return raw, nil
}

// stripCodeFence removes a leading/trailing ``` fence if the model
// wrapped its JSON despite instructions not to.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// parseFindings converts the raw JSON array into domain.Finding values,
// discarding individually malformed elements (missing file/title, or an
// invalid severity) rather than failing the whole batch.
func parseFindings(text string, repoName string) ([]domain.Finding, error) {
	raw, err := decodeFindingsArray(text)
	if err != nil {
		return nil, err
	}

	findings := make([]domain.Finding, 0, len(raw))
	for i, r := range raw {
		sev := domain.Severity(strings.ToLower(r.Severity))
		if !sev.Valid() || r.File == "" || r.Title == "" {
			continue
		}
		patternID := domain.PatternId(r.PatternID)
		if patternID == "" {
			patternID = domain.PatternId(fmt.Sprintf("AGENT-%03d", i+1))
		}
		findings = append(findings, domain.Finding{
			ID:           uuid.NewString(),
			Repo:         repoName,
			PatternID:    patternID,
			Severity:     sev,
			File:         r.File,
			Line:         r.Line,
			Title:        r.Title,
			Description:  r.Description,
			Validation:   domain.ValidationUnvalidated,
			Confidence:   1.0,
			DiscoveredAt: discoveryTime(),
		})
	}
	return findings, nil
}

// discoveryTime is a seam over time.Now so tests can freeze it if
// needed; production always wants wall-clock time.
var discoveryTime = time.Now
