// Package validator implements the adversarial second look: for
// each finding the investigation loop (or a static scanner) produced,
// an independent conversation is run with a prompt instructed to
// disprove it, reusing the shared agent.Run state machine
// at half the originating budget.
package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/solguard/solguard/internal/agent"
	"github.com/solguard/solguard/internal/domain"
	"github.com/solguard/solguard/internal/providers"
	"github.com/solguard/solguard/internal/toolbox"
)

// Verdict is the adversarial loop's parsed terminal output.
type Verdict struct {
	Status domain.ValidationStatus
	Reason string
}

type rawVerdict struct {
	Verdict string `json:"verdict"`
	Reason  string `json:"reason"`
}

// Outcome pairs a finding with its validation result and a Dismissed
// flag; ValidateAll builds the audit-sidecar record for Dismissed
// outcomes, keeping their reasoning out of the report.
type Outcome struct {
	Finding  domain.Finding
	Verdict  Verdict
	Dismissed bool
}

// Validate runs one adversarial loop against a single finding and
// returns the finding with WithValidation applied. A finding that is
// Dismissed is still returned (Validation=Dismissed) — callers filter
// it out of the report and route it to the audit sidecar instead.
func Validate(pctx context.Context, provider providers.Provider, executor *toolbox.Executor, repo domain.RepoHandle, finding domain.Finding, investigationBudget domain.Budget) Outcome {
	budget := domain.Budget{
		MaxTurns:     max1(investigationBudget.MaxTurns / 2),
		CostLimitUSD: investigationBudget.CostLimitUSD / 2,
	}

	systemPrompt := buildAdversarialPrompt(repo, finding)

	cfg := agent.Config{
		SystemPrompt:        systemPrompt,
		InitialPrompt:       "Review the reported location now and reach your verdict.",
		Executor:            executor,
		Provider:            provider,
		Budget:              budget,
		WallClockLimit:      3 * time.Minute,
		ForcedSummaryPrompt: "Your review budget is exhausted. Respond now with ONLY the verdict JSON object described in your instructions.",
		ValidateFinal:       validateVerdictJSON,
	}

	events, resultCh := agent.Run(pctx, cfg)
	for range events {
	}
	result := <-resultCh

	verdict, err := parseVerdict(result.FinalText)
	if err != nil {
		// Terminal fallback: an unparseable verdict leaves the finding
		// as Unvalidated with severity unchanged.
		v := Verdict{Status: domain.ValidationUnvalidated, Reason: "validator produced no parseable verdict: " + result.AbortReason}
		return Outcome{Finding: finding.WithValidation(v.Status, v.Reason), Verdict: v}
	}

	updated := finding.WithValidation(verdict.Status, verdict.Reason)
	return Outcome{
		Finding:   updated,
		Verdict:   verdict,
		Dismissed: verdict.Status == domain.ValidationDismissed,
	}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func buildAdversarialPrompt(repo domain.RepoHandle, finding domain.Finding) string {
	var b strings.Builder
	b.WriteString("You are an adversarial security reviewer. Your job is to try to DISPROVE the following reported vulnerability.\n")
	b.WriteString("Assume the finding is wrong until you can confirm otherwise by reading the actual code. Do not take the report's word for it.\n\n")
	b.WriteString(fmt.Sprintf("## Repository: %s\n\n", repo.Name))
	b.WriteString("## Finding Under Review\n")
	fmt.Fprintf(&b, "Pattern: %s\nSeverity: %s\nLocation: %s:%d\nTitle: %s\nDescription: %s\n\n",
		finding.PatternID, finding.Severity, finding.File, finding.Line, finding.Title, finding.Description)

	b.WriteString(`## Methodology
Use read_file to examine the exact location and its surrounding instruction handler. Use search_code if you need to check whether a guard exists elsewhere (a helper function, a macro, a constraint attribute). Use get_file_structure if you need the shape of the enclosing module.

Try hard to find the safe explanation: a signer check in a caller, a constraint attribute the line-level scan couldn't see, a type that makes the arithmetic safe, dead code that is never reachable from an entrypoint.
`)

	b.WriteString(`
## Verdict
When you are done, respond with ONLY a JSON object, no prose, no markdown fence:
  {"verdict": "confirmed|disputed|dismissed", "reason": "one or two sentences"}

- "confirmed": you could not find a safe explanation; the vulnerability is real as reported.
- "disputed": there is a partial mitigation you found, but you are not fully convinced it is safe; severity should step down one level.
- "dismissed": you found a concrete safe explanation in the code that makes this not exploitable.
`)
	return b.String()
}

func validateVerdictJSON(text string) error {
	_, err := decodeVerdict(text)
	return err
}

func decodeVerdict(text string) (rawVerdict, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		if len(lines) >= 2 {
			lines = lines[1:]
			if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
				lines = lines[:len(lines)-1]
			}
			text = strings.TrimSpace(strings.Join(lines, "\n"))
		}
	}
	var rv rawVerdict
	if err := json.Unmarshal([]byte(text), &rv); err != nil {
		return rawVerdict{}, fmt.Errorf("verdict response is not a JSON object: %w", err)
	}
	switch domain.ValidationStatus(strings.ToLower(rv.Verdict)) {
	case domain.ValidationConfirmed, domain.ValidationDisputed, domain.ValidationDismissed:
	default:
		return rawVerdict{}, fmt.Errorf("unrecognized verdict %q", rv.Verdict)
	}
	return rv, nil
}

func parseVerdict(text string) (Verdict, error) {
	rv, err := decodeVerdict(text)
	if err != nil {
		return Verdict{}, err
	}
	return Verdict{Status: domain.ValidationStatus(strings.ToLower(rv.Verdict)), Reason: rv.Reason}, nil
}
