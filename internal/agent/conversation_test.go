package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/solguard/solguard/internal/domain"
	"github.com/solguard/solguard/internal/providers"
	"github.com/solguard/solguard/internal/toolbox"
)

func testExecutor(t *testing.T) *toolbox.Executor {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "lib.rs"), []byte("fn main() {}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	executor, err := toolbox.NewExecutor(dir, toolbox.NewTrace(false))
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return executor
}

func drain(events <-chan RunEvent) []RunEvent {
	var out []RunEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func readFileCall(id string) providers.ToolCall {
	return providers.ToolCall{ID: id, Name: "read_file", Args: map[string]any{"path": "lib.rs"}}
}

func TestRun_StuckLoopInjectsNudge(t *testing.T) {
	usage := providers.Usage{InputTokens: 10, OutputTokens: 10, CostUSD: 0.001}
	p := providers.NewScriptedProvider("scripted",
		providers.ScriptedTurn{ToolCalls: []providers.ToolCall{readFileCall("t1")}, Usage: usage},
		providers.ScriptedTurn{ToolCalls: []providers.ToolCall{readFileCall("t2")}, Usage: usage},
		providers.ScriptedTurn{ToolCalls: []providers.ToolCall{readFileCall("t3")}, Usage: usage},
		providers.ScriptedTurn{Text: "[]", Usage: usage},
	)

	events, resultCh := Run(context.Background(), Config{
		SystemPrompt: "auditor",
		Executor:     testExecutor(t),
		Provider:     p,
		Budget:       domain.Budget{MaxTurns: 10, CostLimitUSD: 10},
	})

	all := drain(events)
	result := <-resultCh

	if !result.Nudged {
		t.Fatal("expected the repeated (tool, args) triple to trigger a nudge")
	}
	var sawNudge bool
	for _, ev := range all {
		if ev.Type == EventNudge {
			sawNudge = true
		}
	}
	if !sawNudge {
		t.Fatal("expected a nudge event in the stream")
	}
	if result.State != StateDone {
		t.Fatalf("expected Done after the model pivots to text, got %s", result.State)
	}
}

func TestRun_BudgetExhaustionForcesSummary(t *testing.T) {
	usage := providers.Usage{InputTokens: 10, OutputTokens: 10, CostUSD: 0.001}
	// The scripted provider repeats its last turn forever: tool calls
	// every turn, so only the forced summary can end the loop.
	p := providers.NewScriptedProvider("scripted",
		providers.ScriptedTurn{ToolCalls: []providers.ToolCall{readFileCall("t1")}, Usage: usage},
	)

	events, resultCh := Run(context.Background(), Config{
		SystemPrompt:        "auditor",
		Executor:            testExecutor(t),
		Provider:            p,
		Budget:              domain.Budget{MaxTurns: 3, CostLimitUSD: 10},
		ForcedSummaryPrompt: "summarize now",
	})
	drain(events)
	result := <-resultCh

	if result.State != StateDone {
		t.Fatalf("expected forced summary to end in Done, got %s (%s)", result.State, result.AbortReason)
	}
	if result.Stats.TurnsUsed > 3+1 {
		t.Fatalf("turns_used = %d, want <= max_turns+1", result.Stats.TurnsUsed)
	}
}

func TestRun_CancellationReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := providers.NewScriptedProvider("scripted",
		providers.ScriptedTurn{Text: "[]"},
	)
	events, resultCh := Run(ctx, Config{
		SystemPrompt: "auditor",
		Provider:     p,
		Budget:       domain.Budget{MaxTurns: 5, CostLimitUSD: 5},
	})
	drain(events)
	result := <-resultCh

	if result.State != StateAborted {
		t.Fatalf("expected Aborted on pre-cancelled context, got %s", result.State)
	}
	if !result.Stats.Partial {
		t.Fatal("expected partial stats on cancellation")
	}
}

func TestCanonicalArgs_StableAcrossMapOrder(t *testing.T) {
	a := canonicalArgs(map[string]any{"path": "lib.rs", "start": 1})
	b := canonicalArgs(map[string]any{"start": 1, "path": "lib.rs"})
	if a != b {
		t.Fatalf("canonical args differ: %q vs %q", a, b)
	}
}
