// Package agent drives the multi-turn tool-use conversation shared by
// the investigation loop and the adversarial validator. Both
// are the same cooperative state machine — Init, AwaitingModel,
// DispatchingTools, ForcedSummary, Done, Aborted — differing only in
// system prompt, budget, and how the final text is interpreted. This
// file owns the state machine; package-level Investigate and the
// sibling validator package own the interpretation.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/solguard/solguard/internal/budgetplan"
	"github.com/solguard/solguard/internal/domain"
	"github.com/solguard/solguard/internal/providers"
	"github.com/solguard/solguard/internal/toolbox"
)

// State names the conversation's cooperative state machine position.
type State string

const (
	StateInit             State = "init"
	StateAwaitingModel    State = "awaiting_model"
	StateDispatchingTools State = "dispatching_tools"
	StateForcedSummary    State = "forced_summary"
	StateDone             State = "done"
	StateAborted          State = "aborted"
)

// Event types emitted on the channel returned by Run, for callers that
// want to stream progress.
const (
	EventText       = "text"
	EventToolCall   = "tool_call"
	EventToolResult = "tool_result"
	EventNudge      = "nudge"
	EventDone       = "done"
	EventAborted    = "aborted"
	EventError      = "error"
)

// RunEvent is one progress update from a running conversation.
type RunEvent struct {
	Type      string
	Text      string
	ToolName  string
	IsError   bool
	Timestamp time.Time
}

// maxTransportRetries bounds transport/model retries before the loop
// aborts; retries back off exponentially from 250ms.
const maxTransportRetries = 3

// maxConsecutiveParseFailures aborts the loop if the model's
// structured-findings text fails validation twice in a row.
const maxConsecutiveParseFailures = 2

// stuckWindow / stuckThreshold implement the stuck-loop detector: the
// same (tool, canonical args) triple appearing stuckThreshold times
// within the last stuckWindow dispatches triggers a nudge.
const (
	stuckWindow    = 5
	stuckThreshold = 3
)

// Config parameterizes one conversation. ValidateFinal, when non-nil, is
// called on every candidate final text (both a text-only AwaitingModel
// reply and the ForcedSummary reply). For an AwaitingModel reply a
// non-nil error is treated as a parse failure under the two-in-a-row
// abort rule; for the ForcedSummary reply it ends the run as Done with
// Partial stats and the error as AbortReason.
type Config struct {
	SystemPrompt        string
	InitialPrompt       string
	Executor            *toolbox.Executor
	Provider            providers.Provider
	Budget              domain.Budget
	WallClockLimit      time.Duration
	ForcedSummaryPrompt string
	ValidateFinal       func(text string) error
	MaxTokensPerTurn    int
}

// Result is the outcome of a conversation once it reaches Done or
// Aborted.
type Result struct {
	FinalText   string
	State       State
	AbortReason string
	Stats       domain.ScanStats
	Nudged      bool
}

// dispatch records one tool invocation for stuck-loop detection.
type dispatch struct {
	tool string
	args string
}

// Run drives the conversation to completion, emitting progress on the
// returned channel (closed when the run ends). It never panics and
// never blocks past its own 120s per-model-call timeout or the per-tool
// timeout toolbox.Executor enforces.
func Run(ctx context.Context, cfg Config) (<-chan RunEvent, <-chan Result) {
	events := make(chan RunEvent, 64)
	resultCh := make(chan Result, 1)
	go func() {
		defer close(events)
		res := run(ctx, cfg, events)
		resultCh <- res
		close(resultCh)
	}()
	return events, resultCh
}

func run(ctx context.Context, cfg Config, events chan<- RunEvent) Result {
	const modelCallTimeout = 120 * time.Second
	tracker := budgetplan.NewTracker(cfg.Budget, cfg.WallClockLimit)
	maxTokens := cfg.MaxTokensPerTurn
	if maxTokens == 0 {
		maxTokens = 4096
	}

	// The first turn must carry a user message — a system prompt alone is
	// not a valid conversation opener on every provider.
	initial := cfg.InitialPrompt
	if initial == "" {
		initial = "Begin."
	}
	messages := []providers.Message{{Role: "user", Text: initial}}
	var dispatches []dispatch
	transportFailures := 0
	parseFailures := 0
	forcedSummaryUsed := false
	nudged := false
	state := StateInit

	emit := func(e RunEvent) {
		e.Timestamp = time.Now()
		events <- e
	}

	finish := func(state State, text, reason string) Result {
		return Result{FinalText: text, State: state, AbortReason: reason, Stats: tracker.Stats(), Nudged: nudged}
	}

	for {
		select {
		case <-ctx.Done():
			stats := tracker.Stats()
			stats.Partial = true
			stats.AbortReason = string(domain.KindCancelled)
			return Result{State: StateAborted, AbortReason: string(domain.KindCancelled), Stats: stats}
		default:
		}

		if !forcedSummaryUsed {
			if reason := tracker.Exceeded(); reason != "" {
				state = StateForcedSummary
			}
		}

		if state == StateForcedSummary {
			forcedSummaryUsed = true
			promptMsgs := append(append([]providers.Message{}, messages...), providers.Message{
				Role: "user",
				Text: cfg.ForcedSummaryPrompt,
			})
			callCtx, cancelCall := context.WithTimeout(ctx, modelCallTimeout)
			reply, err := cfg.Provider.Complete(callCtx, providers.Request{
				System:    cfg.SystemPrompt,
				Messages:  promptMsgs,
				MaxTokens: maxTokens,
			})
			cancelCall()
			if err != nil {
				stats := tracker.Stats()
				stats.Partial = true
				return Result{State: StateAborted, AbortReason: err.Error(), Stats: stats}
			}
			if reply.Text != "" {
				emit(RunEvent{Type: EventText, Text: reply.Text})
			}
			tracker.Record(reply.Usage.InputTokens, reply.Usage.OutputTokens, reply.Usage.CostUSD, 0)
			if cfg.ValidateFinal != nil {
				if verr := cfg.ValidateFinal(reply.Text); verr != nil {
					stats := tracker.Stats()
					stats.Partial = true
					stats.AbortReason = verr.Error()
					return Result{State: StateDone, FinalText: reply.Text, AbortReason: verr.Error(), Stats: stats}
				}
			}
			return finish(StateDone, reply.Text, "")
		}

		// AwaitingModel
		callCtx, cancelCall := context.WithTimeout(ctx, modelCallTimeout)
		reply, err := cfg.Provider.Complete(callCtx, providers.Request{
			System:    cfg.SystemPrompt,
			Messages:  messages,
			Tools:     toolDefinitions(cfg.Executor),
			MaxTokens: maxTokens,
		})
		cancelCall()
		if err != nil {
			transportFailures++
			if transportFailures > maxTransportRetries {
				stats := tracker.Stats()
				stats.Partial = true
				return Result{State: StateAborted, AbortReason: err.Error(), Stats: stats}
			}
			select {
			case <-ctx.Done():
			case <-time.After(250 * time.Millisecond << (transportFailures - 1)):
			}
			continue
		}
		transportFailures = 0

		if reply.Text != "" {
			emit(RunEvent{Type: EventText, Text: reply.Text})
		}
		tracker.Record(reply.Usage.InputTokens, reply.Usage.OutputTokens, reply.Usage.CostUSD, len(reply.ToolCalls))

		messages = append(messages, providers.Message{
			Role:      "assistant",
			Text:      reply.Text,
			ToolCalls: reply.ToolCalls,
		})

		if len(reply.ToolCalls) == 0 {
			if cfg.ValidateFinal != nil {
				if verr := cfg.ValidateFinal(reply.Text); verr != nil {
					parseFailures++
					if parseFailures >= maxConsecutiveParseFailures {
						stats := tracker.Stats()
						stats.Partial = true
						return Result{State: StateAborted, AbortReason: "model_malformed: " + verr.Error(), Stats: stats}
					}
					messages = append(messages, providers.Message{
						Role: "user",
						Text: fmt.Sprintf("Your response could not be parsed (%s). Resend only the requested structured output.", verr),
					})
					continue
				}
			}
			return finish(StateDone, reply.Text, "")
		}
		parseFailures = 0

		// DispatchingTools
		var results []providers.ToolResult
		for _, tc := range reply.ToolCalls {
			emit(RunEvent{Type: EventToolCall, ToolName: tc.Name})
			out := cfg.Executor.Execute(ctx, tc.Name, tc.Args)
			emit(RunEvent{Type: EventToolResult, ToolName: tc.Name, Text: truncate(out.Content, 200), IsError: out.Failed})

			dispatches = append(dispatches, dispatch{tool: tc.Name, args: canonicalArgs(tc.Args)})
			results = append(results, providers.ToolResult{CallID: tc.ID, Output: out.Content, Failed: out.Failed})
		}

		if len(dispatches) > stuckWindow {
			dispatches = dispatches[len(dispatches)-stuckWindow:]
		}
		nudge := stuckLoopNudge(dispatches)
		if nudge != "" {
			nudged = true
			emit(RunEvent{Type: EventNudge, Text: nudge})
		}

		messages = append(messages, providers.Message{
			Role:        "user",
			Text:        nudge,
			ToolResults: results,
		})
	}
}

// toolDefinitions converts the executor's ordered tool specs into the
// JSON Schema shape providers advertise.
func toolDefinitions(executor *toolbox.Executor) []providers.ToolDefinition {
	if executor == nil {
		return nil
	}
	specs := executor.Specs()
	defs := make([]providers.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		properties := make(map[string]any, len(s.Args))
		required := []string{}
		for _, a := range s.Args {
			properties[a.Name] = map[string]any{"type": a.Type, "description": a.Description}
			if a.Required {
				required = append(required, a.Name)
			}
		}
		defs = append(defs, providers.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		})
	}
	return defs
}

// canonicalArgs stringifies tool args with sorted keys so identical
// calls compare equal regardless of JSON map ordering — required for
// the stuck-loop detector's triple-equality check and for reproducible
// transcripts given a deterministic model.
func canonicalArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		v, _ := json.Marshal(args[k])
		fmt.Fprintf(&b, "%s=%s;", k, v)
	}
	return b.String()
}

// stuckLoopNudge detects a stuck investigation: if the same (tool,
// canonical args) triple appears stuckThreshold times in the last
// stuckWindow dispatches, return a nudge message; otherwise "".
func stuckLoopNudge(recent []dispatch) string {
	counts := make(map[dispatch]int, len(recent))
	for _, d := range recent {
		counts[d]++
		if counts[d] >= stuckThreshold {
			return "you are repeating yourself; either pivot to a different file/pattern or summarize your findings now"
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
