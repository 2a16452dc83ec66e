package toolbox

import (
	"context"
	"fmt"
	"time"

	"github.com/solguard/solguard/internal/domain"
)

// DefaultTimeout bounds any single tool call; no tool operation may
// block on I/O past it.
const DefaultTimeout = 30 * time.Second

// Executor is the only way the agent loop invokes a tool: it enforces
// the per-call timeout, records every call in the trace, and never lets
// a tool panic escape into the conversation. Tools are held as an
// ordered slice so the advertised schema order is stable.
type Executor struct {
	sandbox *Sandbox
	tools   []Tool
	trace   *Trace
	timeout time.Duration
}

// NewExecutor creates an executor rooted at rootPath with the four
// read-only repo tools registered.
func NewExecutor(rootPath string, trace *Trace) (*Executor, error) {
	sandbox, err := NewSandbox(rootPath)
	if err != nil {
		return nil, fmt.Errorf("toolbox: failed to create sandbox: %w", err)
	}
	if trace == nil {
		trace = NewTrace(false)
	}
	return &Executor{
		sandbox: sandbox,
		tools: []Tool{
			NewListFilesTool(sandbox),
			NewReadFileTool(sandbox),
			NewSearchCodeTool(sandbox),
			NewGetFileStructureTool(sandbox),
		},
		trace:   trace,
		timeout: DefaultTimeout,
	}, nil
}

// Execute runs the named tool. An unknown name, a timeout, or a
// recovered panic all surface as a failed Outcome the model reads as
// text — never as a Go error and never by crashing the loop.
func (e *Executor) Execute(ctx context.Context, name string, rawArgs map[string]any) Outcome {
	tool := e.lookup(name)
	if tool == nil {
		return Outcome{Content: fmt.Sprintf("error: unknown_tool: %q. available: %v", name, e.Names()), Failed: true}
	}

	args := Args(rawArgs)
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Outcome{Content: fmt.Sprintf("error: %s: tool %q panicked: %v", domain.KindInternal, name, r), Failed: true}
			}
		}()
		done <- tool.Run(callCtx, args)
	}()

	var out Outcome
	select {
	case <-callCtx.Done():
		out = Outcome{Content: fmt.Sprintf("error: %s: %q exceeded %s", domain.KindToolTimeout, name, e.timeout), Failed: true}
	case out = <-done:
	}

	e.trace.Record(name, args, out, time.Since(start))
	return out
}

func (e *Executor) lookup(name string) Tool {
	for _, t := range e.tools {
		if t.Spec().Name == name {
			return t
		}
	}
	return nil
}

// Specs returns every registered tool's spec in registration order, for
// providers to advertise to the model.
func (e *Executor) Specs() []Spec {
	specs := make([]Spec, len(e.tools))
	for i, t := range e.tools {
		specs[i] = t.Spec()
	}
	return specs
}

// Names returns the registered tool names in registration order.
func (e *Executor) Names() []string {
	names := make([]string, len(e.tools))
	for i, t := range e.tools {
		names[i] = t.Spec().Name
	}
	return names
}

// RootPath returns the sandbox root.
func (e *Executor) RootPath() string {
	return e.sandbox.Root()
}
