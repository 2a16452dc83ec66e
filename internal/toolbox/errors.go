package toolbox

import (
	"fmt"

	"github.com/solguard/solguard/internal/domain"
)

// ToolError is a structured tool-facing error. Tools never panic and
// never return a Go error across the provider boundary for expected
// failure modes (bad path, bad regex, unparseable file) — instead the
// error is rendered into a failed Outcome so the model sees it as text
// and can self-correct.
type ToolError struct {
	Kind domain.ErrKind
	Msg  string
}

func NewToolError(kind domain.ErrKind, msg string) *ToolError {
	return &ToolError{Kind: kind, Msg: msg}
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("error: %s: %s", e.Kind, e.Msg)
}

// failf builds a failed Outcome in the "error: <kind>: <msg>" shape
// every tool error takes.
func failf(kind domain.ErrKind, format string, args ...any) Outcome {
	return Outcome{Content: fmt.Sprintf("error: %s: %s", kind, fmt.Sprintf(format, args...)), Failed: true}
}

// failErr renders any error as a failed Outcome, preserving a
// ToolError's kind and wrapping everything else as Internal.
func failErr(err error) Outcome {
	if te, ok := err.(*ToolError); ok {
		return Outcome{Content: te.Error(), Failed: true}
	}
	return failf(domain.KindInternal, "%s", err.Error())
}
