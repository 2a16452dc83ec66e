package toolbox

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/solguard/solguard/internal/logger"
)

// Trace is the audit trail of every tool call in one scan. A security
// scanner's own run log has to show exactly what the agent read, when,
// and what came back — the trace is that record, and with echo on
// (pipeline.Options.Verbose) it doubles as a live feed through the
// project logger.
type Trace struct {
	mu    sync.Mutex
	calls []TraceEntry
	echo  bool
}

// TraceEntry is one recorded tool call.
type TraceEntry struct {
	At        time.Time `json:"at"`
	Tool      string    `json:"tool"`
	Args      Args      `json:"args"`
	Output    string    `json:"output"`
	Failed    bool      `json:"failed"`
	ElapsedMs int64     `json:"elapsed_ms"`
}

// NewTrace creates a trace; echo mirrors each call to the console.
func NewTrace(echo bool) *Trace {
	return &Trace{echo: echo}
}

// Record appends one call to the trace. Output is truncated so a chatty
// read_file doesn't balloon the audit record; the model still received
// the full content.
func (t *Trace) Record(tool string, args Args, out Outcome, elapsed time.Duration) {
	entry := TraceEntry{
		At:        time.Now(),
		Tool:      tool,
		Args:      args,
		Output:    clip(out.Content, 200),
		Failed:    out.Failed,
		ElapsedMs: elapsed.Milliseconds(),
	}

	t.mu.Lock()
	t.calls = append(t.calls, entry)
	t.mu.Unlock()

	if t.echo {
		argsJSON, _ := json.Marshal(args)
		if out.Failed {
			logger.Warning("tool %s(%s) failed in %dms: %s", tool, argsJSON, entry.ElapsedMs, entry.Output)
		} else {
			logger.Info("tool %s(%s) ok in %dms", tool, argsJSON, entry.ElapsedMs)
		}
	}
}

// Calls returns a copy of the recorded entries so callers cannot edit
// the audit trail in place.
func (t *Trace) Calls() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.calls))
	copy(out, t.calls)
	return out
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
