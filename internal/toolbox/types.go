package toolbox

import "context"

// ArgSpec declares one tool argument. Args are kept as an ordered slice
// rather than a map so the schema the model sees is byte-stable across
// runs.
type ArgSpec struct {
	Name        string
	Type        string // "string" | "integer"
	Description string
	Required    bool
}

// Spec is everything a provider needs to advertise a tool to the model.
type Spec struct {
	Name        string
	Description string
	Args        []ArgSpec
}

// Outcome is what every tool execution produces. Failed marks Content
// as an error message for the model to read and self-correct on; tools
// have no separate error channel because expected failures (bad path,
// bad regex, unreadable file) must reach the model as text, never
// bubble into the loop.
type Outcome struct {
	Content string
	Failed  bool
}

// Tool is one read-only repo operation. Run receives the executor's
// per-call timeout context directly.
type Tool interface {
	Spec() Spec
	Run(ctx context.Context, args Args) Outcome
}
