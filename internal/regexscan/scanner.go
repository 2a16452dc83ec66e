package regexscan

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/solguard/solguard/internal/domain"
)

// Scanner holds the pre-compiled SOL-001..010 catalog.
type Scanner struct {
	patterns []compiledPattern
}

// New compiles the built-in catalog once; reused across every file and repo.
func New() *Scanner {
	s := &Scanner{patterns: make([]compiledPattern, 0, len(catalog))}
	for _, p := range catalog {
		cp := compiledPattern{pattern: p}
		for _, expr := range p.Source {
			cp.source = append(cp.source, regexp.MustCompile(expr))
		}
		for _, expr := range p.Safe {
			cp.safe = append(cp.safe, regexp.MustCompile(expr))
		}
		s.patterns = append(s.patterns, cp)
	}
	return s
}

// ScanFile applies every pattern in the catalog to the file at absPath,
// reporting findings with repo-relative path relPath. Matching is
// line-oriented: each pattern's regex is evaluated against every line
// independently so line numbers are exact.
func (s *Scanner) ScanFile(absPath, relPath string) ([]domain.Finding, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(data), "\n")

	var findings []domain.Finding
	for _, cp := range s.patterns {
		matchLines := s.matchLines(cp, lines)
		if len(matchLines) == 0 {
			continue
		}
		overflowLine := -1
		if len(matchLines) > maxMatchesPerFile {
			overflowLine = matchLines[maxMatchesPerFile]
			matchLines = matchLines[:maxMatchesPerFile]
		}
		for _, lineIdx := range matchLines {
			findings = append(findings, domain.Finding{
				PatternID:   cp.ID,
				Severity:    cp.Severity,
				File:        relPath,
				Line:        lineIdx + 1,
				Snippet:     snippet(lines, lineIdx),
				Title:       cp.Title,
				Description: cp.Description,
				Validation:  domain.ValidationUnvalidated,
				Confidence:  0.6,
			})
		}
		if overflowLine >= 0 {
			findings = append(findings, domain.Finding{
				PatternID:   cp.ID,
				Severity:    cp.Severity,
				File:        relPath,
				Line:        overflowLine + 1,
				Snippet:     snippet(lines, overflowLine),
				Title:       cp.Title + " (match cap reached)",
				Description: fmt.Sprintf("%s This file produced more than %d matches for this pattern; only the first %d are reported individually.", cp.Description, maxMatchesPerFile, maxMatchesPerFile),
				Validation:  domain.ValidationUnvalidated,
				Confidence:  0.5,
			})
		}
	}
	return findings, nil
}

// matchLines returns the 0-based line indices where cp's source patterns
// match, skipping the whole pattern for this file if any safe pattern
// negates it anywhere in the file.
func (s *Scanner) matchLines(cp compiledPattern, lines []string) []int {
	full := strings.Join(lines, "\n")
	for _, safeRe := range cp.safe {
		if safeRe.MatchString(full) {
			return nil
		}
	}

	var matched []int
	for i, line := range lines {
		for _, re := range cp.source {
			if re.MatchString(line) {
				matched = append(matched, i)
				break
			}
		}
	}
	return matched
}

// snippet joins up to three lines centered on idx (0-based), matching the
// spec's "match_line +/- 1" requirement.
func snippet(lines []string, idx int) string {
	start := idx - 1
	if start < 0 {
		start = 0
	}
	end := idx + 1
	if end >= len(lines) {
		end = len(lines) - 1
	}
	return strings.Join(lines[start:end+1], "\n")
}
