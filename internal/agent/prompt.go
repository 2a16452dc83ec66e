package agent

import (
	"fmt"
	"strings"

	"github.com/solguard/solguard/internal/domain"
	"github.com/solguard/solguard/internal/scanctx"
)

// BuildSystemPrompt composes the investigation system prompt from a
// ScanContext: role, repo framing, narrative, focus areas, and the
// static findings table so the agent spends its budget on what the
// regex/AST scanners could not already see.
func BuildSystemPrompt(ctx domain.ScanContext) string {
	var b strings.Builder

	b.WriteString("You are a senior Solana smart-contract security auditor conducting a focused vulnerability investigation.\n")
	b.WriteString("Your goal is to find real, exploitable on-chain vulnerabilities in this Anchor/native Rust program — not theoretical issues.\n")
	b.WriteString("You have access to the repository's source through a small set of read-only tools.\n\n")

	b.WriteString(fmt.Sprintf("## Repository: %s\n", ctx.Repo.Name))
	b.WriteString(fmt.Sprintf("Protocol category: %s\n\n", ctx.ProtocolCategory))

	if ctx.NarrativeSummary != "" {
		b.WriteString("## Why This Repo Is In Scope\n")
		b.WriteString(ctx.NarrativeSummary)
		b.WriteString("\n\n")
	}

	if len(ctx.FocusAreas) > 0 {
		b.WriteString("## Focus Areas For This Protocol Category\n")
		for _, area := range ctx.FocusAreas {
			b.WriteString(fmt.Sprintf("  - %s\n", area))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Static Findings Already Detected\n")
	b.WriteString("These were found by regex and AST pattern matching before you started. Do not re-report them verbatim — use them as a map of where to dig deeper, and look for what they cannot see (multi-instruction exploit chains, missing signer/owner checks the patterns didn't match, PDA/CPI trust violations).\n\n")
	b.WriteString(scanctx.RenderFindingsTable(ctx.SiblingFindings))
	b.WriteString("\n")

	b.WriteString(`## Investigation Methodology
1. Start with get_file_structure on the program's entrypoint (lib.rs) to see its instruction handlers and Accounts structs.
2. Use search_code for targeted patterns: missing signer checks, unchecked CPI program ids, arithmetic without checked_*, account closing without data zeroing.
3. Use read_file to pull the full context of a suspect instruction handler before concluding anything.
4. Use list_files when you need to discover files get_file_structure hasn't covered yet (modules, instruction files).
5. Cross-reference instruction handlers against their Accounts struct: a field typed AccountInfo with no constraint is only a bug if the handler actually trusts its contents.

Be methodical. Map the instruction surface before chasing one hunch across the whole budget.
`)

	b.WriteString(`
## Reporting Findings
When your investigation concludes (on your own, or when asked to summarize), respond with ONLY a JSON array of findings, no prose, no markdown fence. Each element:
  {"pattern_id": "AGENT-xxx (optional)", "severity": "critical|high|medium|low|info", "file": "relative/path.rs", "line": 123, "title": "short title", "description": "what the vulnerability is, why it's exploitable, and the attack path"}

Report an empty array "[]" if you found nothing beyond what static analysis already flagged. Only report vulnerabilities you can trace through the actual code you read — do not speculate about files you have not opened.
`)

	return b.String()
}

// ForcedSummaryPrompt is sent when the budget is exhausted mid-investigation,
// asking the model to stop investigating and emit its findings immediately.
const ForcedSummaryPrompt = "Your investigation budget is exhausted. Stop investigating now and respond with ONLY the JSON array of findings described in your instructions, based on everything you have confirmed so far."
