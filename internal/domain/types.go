// Package domain holds the core data model shared by every scanning,
// validation, and scoring component: findings, narratives, scan results,
// and the budget envelope that bounds an investigation.
package domain

import "time"

// Severity is a finding's impact classification. Order matters: the
// constants are declared most to least severe and Weight() reflects that
// ordering in the cross-reference scoring formula.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Weight returns the numeric severity weight used by the cross-reference
// scoring engine. Unrecognized severities weight as Info.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 10
	case SeverityHigh:
		return 5
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 0.5
	case SeverityInfo:
		return 0.1
	default:
		return 0.1
	}
}

// rank orders severities for comparison; lower is more severe.
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	default:
		return 5
	}
}

// Valid reports whether s is one of the five recognized severity levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// StepDown returns the next-less-severe level, or itself if already Info.
// Used by the adversarial validator when downgrading a Disputed finding
// exactly one step rather than clearing it outright.
func (s Severity) StepDown() Severity {
	order := []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}
	for i, sev := range order {
		if sev == s && i < len(order)-1 {
			return order[i+1]
		}
	}
	return SeverityInfo
}

// Less reports whether s is strictly more severe than other (for sorting
// severity-descending: Less means "sorts first").
func (s Severity) Less(other Severity) bool {
	return s.rank() < other.rank()
}

// PatternId identifies the static detector (regex or AST) that produced a
// finding, e.g. "SOL-003" or "AST-001". Findings synthesized by the agent
// loop instead carry a generated "AGENT-###" id.
type PatternId string

// ValidationStatus is the terminal outcome of adversarial review for a
// finding. Unvalidated is the default before any validator runs.
type ValidationStatus string

const (
	ValidationUnvalidated ValidationStatus = "unvalidated"
	ValidationConfirmed   ValidationStatus = "confirmed"
	ValidationDisputed    ValidationStatus = "disputed"
	ValidationDismissed   ValidationStatus = "dismissed"
)

// Multiplier returns the cross-reference scoring multiplier for this
// validation status.
func (v ValidationStatus) Multiplier() float64 {
	switch v {
	case ValidationConfirmed:
		return 1.0
	case ValidationDisputed:
		return 0.5
	case ValidationUnvalidated:
		return 0.7
	case ValidationDismissed:
		return 0.0
	default:
		return 0.7
	}
}

// Finding is a single suspected vulnerability at a specific file/line,
// produced by a regex pattern, an AST pattern, or the investigating agent.
// Findings are treated as immutable after creation; validation outcomes
// are recorded by producing a new Finding with an updated ValidationStatus
// rather than mutating in place, so dedup and audit trails stay coherent.
type Finding struct {
	ID               string           `json:"id"`
	Repo             string           `json:"repo"`
	PatternID        PatternId        `json:"pattern_id"`
	Severity         Severity         `json:"severity"`
	File             string           `json:"file"`
	Line             int              `json:"line"`
	Snippet          string           `json:"snippet,omitempty"`
	Title            string           `json:"title"`
	Description      string           `json:"description,omitempty"`
	Validation       ValidationStatus `json:"validation"`
	ValidationReason string           `json:"validation_reason,omitempty"`
	Confidence       float64          `json:"confidence,omitempty"`
	DiscoveredAt     time.Time        `json:"discovered_at"`
}

// WithValidation returns a copy of f with validation updated, enforcing
// the monotonic transition rule: severity may only be confirmed,
// stepped down one level (Disputed), or removed (Dismissed) — never
// raised.
func (f Finding) WithValidation(status ValidationStatus, reason string) Finding {
	next := f
	next.Validation = status
	next.ValidationReason = reason
	if status == ValidationDisputed {
		next.Severity = f.Severity.StepDown()
	}
	return next
}

// RepoHandle identifies a single cloned/local repository under scan.
type RepoHandle struct {
	Name string
	Path string
}

// ProtocolCategory narrows the agent's investigation focus areas. Unknown
// or unclassified repos fall back to Other.
type ProtocolCategory string

const (
	ProtocolDex     ProtocolCategory = "dex"
	ProtocolLending ProtocolCategory = "lending"
	ProtocolPrivacy ProtocolCategory = "privacy"
	ProtocolStaking ProtocolCategory = "staking"
	ProtocolNft     ProtocolCategory = "nft"
	ProtocolOther   ProtocolCategory = "other"
)

// Budget bounds a single repo investigation. Both fields are produced by
// the budget planner from a narrative's confidence and active-repo count,
// and are clamped to the ranges the planner guarantees.
type Budget struct {
	MaxTurns     int
	CostLimitUSD float64
}

// ScanStats carries implementation-level telemetry about a completed
// investigation beyond what Budget itself tracks — useful for reports and
// for deciding whether a scan was truncated.
type ScanStats struct {
	FilesWalked   int
	FilesParsed   int
	ParseFailures int
	RegexMatches  int
	ASTMatches    int
	TurnsUsed     int
	ToolCalls     int
	TokensUsed    int
	CostUSD       float64
	Duration      time.Duration
	Partial       bool
	AbortReason   string
}

// ScanContext is the composed context handed to the agent loop for one
// repo investigation: static findings to date, protocol classification,
// and narrative framing that shapes the system prompt.
type ScanContext struct {
	Repo             RepoHandle
	ProtocolCategory ProtocolCategory
	NarrativeSummary string
	StaticFindings   []Finding
	SiblingFindings  []Finding
	FocusAreas       []string
	Budget           Budget
}

// ScanResult is the output of a full investigation of one repo: the
// surviving findings (post validation) plus stats about how the scan ran.
type ScanResult struct {
	Repo     RepoHandle
	Findings []Finding
	Stats    ScanStats
}

// ErrKind is the closed taxonomy of error categories propagated across
// the pipeline. It names categories for logging and branching, not a Go
// error-type hierarchy — most of the pipeline handles these as plain
// strings embedded in tool-result text or scan stats.
type ErrKind string

const (
	KindIoFailure           ErrKind = "io_failure"
	KindParseFailure        ErrKind = "parse_failure"
	KindPathEscape          ErrKind = "path_escape"
	KindBadPattern          ErrKind = "bad_pattern"
	KindHttpFailure         ErrKind = "http_failure"
	KindProviderAuthFailure ErrKind = "provider_auth_failure"
	KindModelMalformed      ErrKind = "model_malformed"
	KindBudgetExhausted     ErrKind = "budget_exhausted"
	KindToolTimeout         ErrKind = "tool_timeout"
	KindCancelled           ErrKind = "cancelled"
	KindInternal            ErrKind = "internal"
	KindNotHostSource       ErrKind = "not_host_source"
)

// RiskLevel buckets a narrative's aggregate cross-reference risk_score.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevelFor buckets a risk_score per the cross-reference engine's
// fixed thresholds: [0,1) None, [1,5) Low, [5,15) Medium, [15,40) High,
// [40,inf) Critical.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score < 1:
		return RiskNone
	case score < 5:
		return RiskLow
	case score < 15:
		return RiskMedium
	case score < 40:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Narrative is a synthesized ecosystem trend (e.g. "restaking protocols
// surging") linked to zero or more active repos under scan. RiskScore and
// RiskLevel are populated by the cross-reference engine once linked
// repo findings are available.
type Narrative struct {
	ID           string               `json:"id"`
	Title        string               `json:"title"`
	Summary      string               `json:"summary"`
	Confidence   float64              `json:"confidence"`
	ActiveRepos  []string             `json:"active_repos"`
	RiskScore    float64              `json:"risk_score"`
	RiskLevel    RiskLevel            `json:"risk_level"`
	RepoFindings map[string][]Finding `json:"repo_findings,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	// RelevanceNote is the optional LLM relevance-pass annotation. It is
	// advisory only: populated after RiskScore is computed and never
	// read by the scoring function (see crossref.Score).
	RelevanceNote string `json:"relevance_note,omitempty"`
}
