package astscan

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/solguard/solguard/internal/domain"
)

// Engine parses host-program source with the Rust grammar and applies
// the AST-001..003 structural pattern catalog. One Engine is reused
// across every file in a scan — the parser itself is not safe for
// concurrent use, so each repo-scan goroutine owns its own Engine.
type Engine struct {
	parser *sitter.Parser
}

// New creates an Engine bound to the Rust grammar — the host language for
// every Solana on-chain program this scanner targets.
func New() *Engine {
	p := sitter.NewParser()
	p.SetLanguage(rust.GetLanguage())
	return &Engine{parser: p}
}

// ParseFailure is returned when the grammar cannot parse a file. It is
// never fatal to the scan: the caller records it in scan telemetry and
// keeps the file's regex findings.
type ParseFailure struct {
	File string
	Err  error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("astscan: parse failure in %s: %v", e.File, e.Err)
}

// ScanFile applies AST-001..003 to source, reporting findings with
// repo-relative path relPath. Returns *ParseFailure (non-fatal to the
// caller) if the grammar cannot build a tree at all; individual pattern
// mismatches never produce an error, only zero findings.
func (e *Engine) ScanFile(ctx context.Context, source []byte, relPath string) ([]domain.Finding, error) {
	tree, err := e.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, &ParseFailure{File: relPath, Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() && root.ChildCount() == 0 {
		return nil, &ParseFailure{File: relPath, Err: fmt.Errorf("empty or unparseable syntax tree")}
	}

	var findings []domain.Finding
	findings = append(findings, scanAccountsStructs(root, source, relPath)...)
	findings = append(findings, scanLoggedKeys(root, source, relPath)...)
	findings = append(findings, scanUnsafeBlocks(root, source, relPath)...)
	return findings, nil
}

func finding(id domain.PatternId, relPath string, node *sitter.Node, source []byte) domain.Finding {
	p := catalog[id]
	line := int(node.StartPoint().Row) + 1
	return domain.Finding{
		PatternID:   p.ID,
		Severity:    p.Severity,
		File:        relPath,
		Line:        line,
		Snippet:     snippetAround(source, line-1),
		Title:       p.Title,
		Description: p.Description,
		Validation:  domain.ValidationUnvalidated,
		Confidence:  0.6,
	}
}

// snippetAround joins up to three lines centered on idx (0-based).
func snippetAround(source []byte, idx int) string {
	lines := strings.Split(string(source), "\n")
	if idx < 0 || idx >= len(lines) {
		return ""
	}
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

// walk invokes visit for every node in the tree, depth-first, pre-order.
func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

// findChildOfType returns the first direct child of n with the given
// grammar node type, or nil.
func findChildOfType(n *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c.Type() == nodeType {
			return c
		}
	}
	return nil
}

// derivesAccounts reports whether an attribute_item node is a
// #[derive(Accounts)] attribute, by substring match on its raw text —
// cheaper and just as reliable as walking the meta_item tree, since
// Anchor's derive list is never programmatically generated.
func derivesAccounts(attr *sitter.Node, source []byte) bool {
	text := attr.Content(source)
	return strings.Contains(text, "derive") && strings.Contains(text, "Accounts")
}

// scanAccountsStructs implements AST-001: an AccountInfo-typed field
// inside a #[derive(Accounts)] struct with no "/// CHECK:" doc comment
// directly above it.
//
// go-tree-sitter nodes expose children but not parents, so rather than
// walking every node and asking "what attribute preceded you", this
// walks each container (the file itself, then recursively each
// mod_item's body) in document order, tracking the most recent
// attribute_item as a "pending derive" flag that attaches to the very
// next struct_item.
func scanAccountsStructs(root *sitter.Node, source []byte, relPath string) []domain.Finding {
	var findings []domain.Finding
	walkContainer(root, source, &findings, relPath)
	return findings
}

func walkContainer(container *sitter.Node, source []byte, findings *[]domain.Finding, relPath string) {
	pendingDerive := false

	for i := 0; i < int(container.ChildCount()); i++ {
		child := container.Child(i)
		switch child.Type() {
		case "attribute_item":
			pendingDerive = derivesAccounts(child, source)
			continue
		case "line_comment", "block_comment":
			continue
		case "struct_item":
			if pendingDerive {
				findings2 := scanAccountsFields(child, source, relPath)
				*findings = append(*findings, findings2...)
			}
		case "mod_item":
			if body := child.ChildByFieldName("body"); body != nil {
				walkContainer(body, source, findings, relPath)
			}
		}
		pendingDerive = false
	}
}

// scanAccountsFields inspects one #[derive(Accounts)] struct's field
// list for AccountInfo fields lacking a preceding "/// CHECK:" comment.
func scanAccountsFields(structNode *sitter.Node, source []byte, relPath string) []domain.Finding {
	var findings []domain.Finding

	fields := structNode.ChildByFieldName("body")
	if fields == nil {
		return nil
	}

	pendingDocCheck := false
	for i := 0; i < int(fields.ChildCount()); i++ {
		child := fields.Child(i)
		switch child.Type() {
		case "line_comment", "block_comment":
			if strings.Contains(child.Content(source), "CHECK") {
				pendingDocCheck = true
			}
		case "field_declaration":
			typeNode := child.ChildByFieldName("type")
			if typeNode != nil && referencesAccountInfo(typeNode.Content(source)) && !pendingDocCheck {
				findings = append(findings, finding("AST-001", relPath, child, source))
			}
			pendingDocCheck = false
		}
	}

	return findings
}

var accountInfoRe = regexp.MustCompile(`\bAccountInfo\b`)

func referencesAccountInfo(typeText string) bool {
	return accountInfoRe.MatchString(typeText)
}

// loggingMacros is the set of Solana/Anchor logging macro names whose
// arguments AST-002 inspects for leaked account public keys.
var loggingMacros = map[string]bool{
	"msg":     true,
	"sol_log": true,
}

var pubkeyArgRe = regexp.MustCompile(`\b\w*(key|pubkey|authority|owner)\w*\s*\.\s*key\s*\(\s*\)|\.key\b`)

// scanLoggedKeys implements AST-002: a logging macro invocation whose
// argument list contains an expression that resolves to an account
// public key.
func scanLoggedKeys(root *sitter.Node, source []byte, relPath string) []domain.Finding {
	var findings []domain.Finding

	walk(root, func(n *sitter.Node) {
		if n.Type() != "macro_invocation" {
			return
		}
		macroNode := n.ChildByFieldName("macro")
		if macroNode == nil || !loggingMacros[macroNode.Content(source)] {
			return
		}
		args := findChildOfType(n, "token_tree")
		if args == nil {
			return
		}
		if pubkeyArgRe.MatchString(args.Content(source)) {
			findings = append(findings, finding("AST-002", relPath, n, source))
		}
	})

	return findings
}

// scanUnsafeBlocks implements AST-003: any unsafe lexical block in a
// host-program file.
func scanUnsafeBlocks(root *sitter.Node, source []byte, relPath string) []domain.Finding {
	var findings []domain.Finding

	walk(root, func(n *sitter.Node) {
		if n.Type() == "unsafe_block" {
			findings = append(findings, finding("AST-003", relPath, n, source))
		}
	})

	return findings
}

// Outline renders a compact top-level declaration outline of source,
// backing the get_file_structure toolbox tool. Syntax errors in source
// do not make it fail; the outline lists whatever top-level declarations
// parsed. It returns a *ParseFailure only when the parser yields no tree
// (for example when ctx is cancelled); get_file_structure maps that
// error to the NotHostSource tool error.
func Outline(ctx context.Context, source []byte) (string, error) {
	e := New()
	tree, err := e.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return "", &ParseFailure{Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return "", &ParseFailure{Err: fmt.Errorf("empty syntax tree")}
	}

	var b strings.Builder
	for i := 0; i < int(root.ChildCount()); i++ {
		describeTopLevel(root.Child(i), source, &b, 0)
	}
	if b.Len() == 0 {
		return "(no top-level declarations)", nil
	}
	return b.String(), nil
}

func describeTopLevel(n *sitter.Node, source []byte, b *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	line := int(n.StartPoint().Row) + 1

	switch n.Type() {
	case "function_item":
		name := childText(n, "name", source)
		fmt.Fprintf(b, "%sfn %s (line %d)\n", indent, name, line)
	case "struct_item":
		name := childText(n, "name", source)
		fmt.Fprintf(b, "%sstruct %s (line %d)\n", indent, name, line)
	case "enum_item":
		name := childText(n, "name", source)
		fmt.Fprintf(b, "%senum %s (line %d)\n", indent, name, line)
	case "trait_item":
		name := childText(n, "name", source)
		fmt.Fprintf(b, "%strait %s (line %d)\n", indent, name, line)
	case "impl_item":
		typeNode := n.ChildByFieldName("type")
		typeText := ""
		if typeNode != nil {
			typeText = typeNode.Content(source)
		}
		fmt.Fprintf(b, "%simpl %s (line %d)\n", indent, typeText, line)
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.Type() == "declaration_list" {
				for j := 0; j < int(child.ChildCount()); j++ {
					describeTopLevel(child.Child(j), source, b, depth+1)
				}
			}
		}
	case "mod_item":
		name := childText(n, "name", source)
		fmt.Fprintf(b, "%smod %s (line %d)\n", indent, name, line)
	}
}

func childText(n *sitter.Node, field string, source []byte) string {
	c := n.ChildByFieldName(field)
	if c == nil {
		return "?"
	}
	return c.Content(source)
}
