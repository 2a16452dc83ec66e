// Package dedup normalizes and deduplicates findings produced by the
// static engines and the agent loop into a single stable, sorted list.
package dedup

import (
	"sort"

	"github.com/solguard/solguard/internal/domain"
)

type key struct {
	file      string
	line      int
	patternID domain.PatternId
}

// Merge collapses findings by (file, line, pattern_id), keeping the first
// occurrence in input order, then sorts by (severity desc, file asc, line
// asc). Calling Merge again on its own output is a no-op: Merge is
// idempotent.
func Merge(findings []domain.Finding) []domain.Finding {
	seen := make(map[key]bool, len(findings))
	out := make([]domain.Finding, 0, len(findings))

	for _, f := range findings {
		k := key{file: f.File, line: f.Line, patternID: f.PatternID}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Severity != b.Severity {
			return a.Severity.Less(b.Severity)
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})

	return out
}
