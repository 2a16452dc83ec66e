// Package scanctx assembles the protocol-aware ScanContext the agent
// investigation loop and adversarial validator are seeded with: the repo's narrative framing, its static findings so far, and
// the focus areas a protocol category implies.
package scanctx

import (
	"fmt"
	"strings"

	"github.com/solguard/solguard/internal/domain"
)

// focusAreas maps each protocol category to the investigation angles the
// agent's system prompt should foreground.
var focusAreas = map[domain.ProtocolCategory][]string{
	domain.ProtocolDex:     {"sandwich resistance", "LP share math", "oracle manipulation"},
	domain.ProtocolLending: {"liquidation paths", "interest accrual", "collateral accounting"},
	domain.ProtocolPrivacy: {"Merkle root trust", "nullifier uniqueness", "proof verification binding"},
	domain.ProtocolStaking: {"reward distribution fairness", "slashing conditions", "withdrawal timing"},
	domain.ProtocolNft:     {"royalty enforcement", "listing race conditions", "metadata authority"},
	domain.ProtocolOther:   {"general trust-model review"},
}

// FocusAreasFor returns the focus-area tag list for a protocol category,
// falling back to the Other set for unrecognized categories.
func FocusAreasFor(category domain.ProtocolCategory) []string {
	if areas, ok := focusAreas[category]; ok {
		return areas
	}
	return focusAreas[domain.ProtocolOther]
}

// Build assembles a ScanContext for one repo investigation: static
// findings so far become SiblingFindings (deduplicated, read-only from
// the agent's perspective), and FocusAreas is derived from category.
func Build(repo domain.RepoHandle, category domain.ProtocolCategory, narrativeSummary string, staticFindings []domain.Finding, budget domain.Budget) domain.ScanContext {
	return domain.ScanContext{
		Repo:             repo,
		ProtocolCategory: category,
		NarrativeSummary: narrativeSummary,
		StaticFindings:   staticFindings,
		SiblingFindings:  staticFindings,
		FocusAreas:       FocusAreasFor(category),
		Budget:           budget,
	}
}

// RenderFindingsTable serializes sibling findings into the compact table
// the system prompt embeds, so the agent sees what the static scanners
// already flagged instead of rediscovering it from scratch.
func RenderFindingsTable(findings []domain.Finding) string {
	if len(findings) == 0 {
		return "(no static findings for this repo)"
	}
	var b strings.Builder
	b.WriteString("pattern   | severity | file:line | title\n")
	b.WriteString("----------|----------|-----------|------\n")
	for _, f := range findings {
		fmt.Fprintf(&b, "%-9s | %-8s | %s:%d | %s\n", f.PatternID, f.Severity, f.File, f.Line, f.Title)
	}
	return b.String()
}
