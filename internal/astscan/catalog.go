// Package astscan parses host-program source with a tree-sitter grammar
// and applies the AST-001..003 structural pattern catalog — checks that
// a line-oriented regex cannot express because they depend on the
// surrounding declaration (a struct field's enclosing derive, a doc
// comment binding to the next item, a macro's argument list) rather than
// the text of a single line.
package astscan

import "github.com/solguard/solguard/internal/domain"

// astPattern is one entry in the closed AST-001..003 catalog.
type astPattern struct {
	ID          domain.PatternId
	Severity    domain.Severity
	Title       string
	Description string
}

var catalog = map[domain.PatternId]astPattern{
	"AST-001": {
		ID:          "AST-001",
		Severity:    domain.SeverityMedium,
		Title:       "Unchecked AccountInfo field in a derived Accounts struct",
		Description: "A struct field typed as the opaque AccountInfo wrapper appears in a #[derive(Accounts)] struct without a preceding \"/// CHECK:\" comment documenting why its lack of deserialization/ownership checks is safe.",
	},
	"AST-002": {
		ID:          "AST-002",
		Severity:    domain.SeverityLow,
		Title:       "Account public key written to program logs",
		Description: "A logging macro invocation (msg!, sol_log!) includes an argument that resolves to an account public key, which is written verbatim to the transaction log and indexers.",
	},
	"AST-003": {
		ID:          "AST-003",
		Severity:    domain.SeverityHigh,
		Title:       "unsafe block in host-program crate",
		Description: "A lexical unsafe { ... } block appears in on-chain program code, bypassing Rust's memory-safety guarantees in a context where an exploit has direct financial consequences.",
	},
}
