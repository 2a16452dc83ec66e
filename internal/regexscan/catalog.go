// Package regexscan applies the fixed textual pattern catalog (SOL-001
// through SOL-010) to host-program source, emitting triaged findings. The
// pattern/compiled-pattern split and safe-pattern negation idiom follow
// the line-oriented scanner pattern common across the example corpus.
package regexscan

import (
	"regexp"

	"github.com/solguard/solguard/internal/domain"
)

// pattern is one entry in the closed SOL-001..010 catalog.
type pattern struct {
	ID          domain.PatternId
	Severity    domain.Severity
	Title       string
	Description string

	// Source is the set of regexes that, if any matches a line, indicate
	// the pattern. Safe negates a match when present anywhere in the file
	// — used sparingly since most SOL patterns are not a strict subset of
	// the reentrancy-style "guard modifier present" idiom.
	Source []string
	Safe   []string
}

// compiledPattern is a pattern with its regexes pre-compiled.
type compiledPattern struct {
	pattern
	source []*regexp.Regexp
	safe   []*regexp.Regexp
}

// maxMatchesPerFile caps per-pattern-per-file matches; beyond this an
// aggregate finding replaces the individual ones.
const maxMatchesPerFile = 200

// catalog is the closed set of SOL-001..010 detectors.
var catalog = []pattern{
	{
		ID:          "SOL-001",
		Severity:    domain.SeverityHigh,
		Title:       "Privileged account accessed without signer assertion",
		Description: "An account treated as an authority is read or used without a corresponding is_signer / Signer<'info> check.",
		Source: []string{
			`\b(admin|authority|owner)\s*:\s*(UncheckedAccount|AccountInfo)\s*<`,
			`ctx\.accounts\.\w*(admin|authority|owner)\w*\s*\.\s*key`,
		},
		Safe: []string{
			`Signer<'info>`,
			`is_signer`,
			`has_one\s*=`,
		},
	},
	{
		ID:          "SOL-002",
		Severity:    domain.SeverityHigh,
		Title:       "Deserialized account used without owner-program check",
		Description: "An account is deserialized (try_from_slice / AccountLoader) without verifying its owning program id.",
		Source: []string{
			`try_from_slice`,
			`AccountLoader::<`,
		},
		Safe: []string{
			`check_id\s*\(`,
			`owner\s*==\s*&?\w*::ID`,
			`#\[account\(`,
		},
	},
	{
		ID:          "SOL-003",
		Severity:    domain.SeverityMedium,
		Title:       "Unchecked arithmetic on token/lamport values",
		Description: "Addition, subtraction, or multiplication on a token or lamport amount uses a plain operator instead of a checked/saturating variant.",
		Source: []string{
			`\blamports\b[^;\n]*[-+*]=`,
			`\bamount\b[^;\n]*[-+*]=`,
		},
		Safe: []string{
			`checked_(add|sub|mul|div)`,
			`saturating_(add|sub|mul)`,
		},
	},
	{
		ID:          "SOL-004",
		Severity:    domain.SeverityHigh,
		Title:       "remaining_accounts iteration without bounds or identity check",
		Description: "remaining_accounts is iterated without a bounds check on length or a per-account identity/ownership check. Heuristic: expect false positives.",
		Source: []string{
			`remaining_accounts\s*\.\s*iter`,
			`remaining_accounts\s*\[`,
		},
		Safe: []string{
			`remaining_accounts\.len\(\)`,
			`require!\(.*remaining_accounts`,
		},
	},
	{
		ID:          "SOL-005",
		Severity:    domain.SeverityMedium,
		Title:       "PDA derivation without storing or re-verifying the bump",
		Description: "find_program_address is called but the returned bump is neither persisted to account state nor re-verified against a stored value on subsequent calls.",
		Source: []string{
			`find_program_address\s*\(`,
		},
		Safe: []string{
			`bump\s*=\s*ctx\.bumps`,
			`\.bump\s*=\s*bump`,
			`create_program_address\s*\(`,
		},
	},
	{
		ID:          "SOL-006",
		Severity:    domain.SeverityCritical,
		Title:       "Account closed without wiping data (revival attack)",
		Description: "An account's lamports are drained to close it, but its data buffer is not zeroed, allowing a revival attack via re-funding before garbage collection.",
		Source: []string{
			`\*\*.*\.lamports\s*\.borrow_mut\(\)\s*=\s*0`,
			`try_borrow_mut_lamports\(\)\?\s*=\s*0`,
		},
		Safe: []string{
			`#\[account\(close\s*=`,
			`\.data\.borrow_mut\(\)\.fill\(0\)`,
		},
	},
	{
		ID:          "SOL-007",
		Severity:    domain.SeverityCritical,
		Title:       "CPI target program id taken from user-controlled input",
		Description: "A cross-program invocation's target program id is read directly from an account or instruction argument rather than a hardcoded or allowlisted constant.",
		Source: []string{
			`invoke(_signed)?\s*\(\s*&\s*Instruction\s*\{[^}]*program_id\s*:\s*\w+\.key`,
			`CpiContext::new\s*\([^,]*,\s*\w*\s*\.\s*clone\(\)`,
		},
		Safe: []string{
			`program_id\s*==\s*&?\w*::ID`,
		},
	},
	{
		ID:          "SOL-008",
		Severity:    domain.SeverityHigh,
		Title:       "Untagged account deserialization (missing discriminator check)",
		Description: "Raw account data is deserialized without validating an 8-byte Anchor discriminator prefix, allowing type confusion between account kinds.",
		Source: []string{
			`\bBorsh(Deserialize|Serialize)\b.*unpack`,
			`unsafe\s*\{\s*&\s*\*\s*\(`,
		},
		Safe: []string{
			`#\[account\]`,
			`discriminator`,
		},
	},
	{
		ID:          "SOL-009",
		Severity:    domain.SeverityMedium,
		Title:       "Division performed before multiplication (precision loss)",
		Description: "An expression divides before multiplying, losing precision on integer arithmetic that a reorder would preserve.",
		Source: []string{
			`\(\s*\w+\s*/\s*\w+\s*\)\s*\*\s*\w+`,
		},
	},
	{
		ID:          "SOL-010",
		Severity:    domain.SeverityMedium,
		Title:       "Token operations lacking Token-2022 extension handling",
		Description: "Token transfer/mint logic references the legacy SPL Token program only, with no handling for Token-2022 transfer-fee, transfer-hook, or confidential-transfer extensions.",
		Source: []string{
			`spl_token::instruction::transfer\s*\(`,
			`TokenAccount\b`,
		},
		Safe: []string{
			`transfer_checked`,
			`spl_token_2022`,
			`TransferHook`,
		},
	},
}
