// Package budgetplan computes per-repo investigation budgets from
// narrative confidence and active-repo count, and tracks consumption of
// that budget across an agent loop's turns.
package budgetplan

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/solguard/solguard/internal/domain"
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Compute maps narrative confidence and the number of repos it names to a
// per-repo Budget: high-confidence narratives naming few repos get deep
// per-repo scans, wide narratives get shallower ones.
func Compute(confidence float64, repoCount int) domain.Budget {
	if repoCount < 1 {
		repoCount = 1
	}
	depth := confidence / math.Sqrt(float64(repoCount))

	maxTurns := int(clamp(math.Round(5+depth*35), 5, 40))
	costLimit := clamp(2+depth*28, 2, 30)

	return domain.Budget{
		MaxTurns:     maxTurns,
		CostLimitUSD: costLimit,
	}
}

// Tracker accumulates token/cost/tool-call/duration usage against a
// Budget and reports when a limit is reached. Safe for concurrent use —
// validator fan-out within a repo records against distinct trackers, but
// a single scan's tracker may be read from a status goroutine.
type Tracker struct {
	mu        sync.Mutex
	budget    domain.Budget
	tokens    int
	costUSD   float64
	toolCalls int
	turns     int
	startedAt time.Time
	wallLimit time.Duration
}

// NewTracker creates a tracker for budget, with an optional wall-clock
// cap (0 disables the wall-clock check).
func NewTracker(budget domain.Budget, wallLimit time.Duration) *Tracker {
	return &Tracker{
		budget:    budget,
		startedAt: time.Now(),
		wallLimit: wallLimit,
	}
}

// Record adds usage from one completed turn.
func (t *Tracker) Record(inputTokens, outputTokens int, costUSD float64, toolCallsThisTurn int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokens += inputTokens + outputTokens
	t.costUSD += costUSD
	t.toolCalls += toolCallsThisTurn
	t.turns++
}

// Exceeded returns the reason the next model call should not proceed, or
// an empty string if the loop may continue. Crossing max_turns or
// cost_limit_usd triggers a forced-summary turn rather than an abort.
func (t *Tracker) Exceeded() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.budget.MaxTurns > 0 && t.turns >= t.budget.MaxTurns {
		return fmt.Sprintf("turn limit reached (%d/%d)", t.turns, t.budget.MaxTurns)
	}
	if t.budget.CostLimitUSD > 0 && t.costUSD >= t.budget.CostLimitUSD {
		return fmt.Sprintf("cost limit reached ($%.4f/$%.2f)", t.costUSD, t.budget.CostLimitUSD)
	}
	if t.wallLimit > 0 && time.Since(t.startedAt) >= t.wallLimit {
		return fmt.Sprintf("wall clock limit reached (%s/%s)", time.Since(t.startedAt).Round(time.Second), t.wallLimit)
	}
	return ""
}

// Summary returns a human-readable usage summary for logs and stats.
func (t *Tracker) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	elapsed := time.Since(t.startedAt).Round(time.Second)
	return fmt.Sprintf(
		"Tokens: %d | Cost: $%.4f | Tool calls: %d | Turns: %d | Duration: %s",
		t.tokens, t.costUSD, t.toolCalls, t.turns, elapsed,
	)
}

// Stats snapshots the tracker into domain.ScanStats.
func (t *Tracker) Stats() domain.ScanStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.ScanStats{
		TurnsUsed:  t.turns,
		ToolCalls:  t.toolCalls,
		TokensUsed: t.tokens,
		CostUSD:    t.costUSD,
		Duration:   time.Since(t.startedAt),
	}
}
