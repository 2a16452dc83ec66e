// Package providers adapts the supported LLM APIs to the one contract
// the investigation pipeline consumes: a blocking Complete call that
// returns assembled text, normalized tool calls, and priced token
// usage. The pipeline dispatches tool calls strictly in the order the
// model produced them, so adapters must preserve that order when a
// reply carries several.
package providers

import "context"

// Provider is implemented by every model adapter and by the scripted
// test double.
type Provider interface {
	Name() string
	ModelID() string

	// ContextWindow returns the model's context size in tokens.
	ContextWindow() int

	// Complete sends one full conversation turn and blocks until the
	// model's reply is assembled. Transport and API errors come back as
	// the error; a reply that parsed but contains nothing useful is an
	// empty Completion, not an error.
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Request is one provider-agnostic model invocation.
type Request struct {
	System    string
	Messages  []Message
	Tools     []ToolDefinition
	MaxTokens int
}

// Message is one conversation turn. Assistant turns may carry ToolCalls
// alongside Text; user turns may carry ToolResults alongside Text (the
// loop uses the Text slot of a tool-result turn for its stuck-loop
// nudge). Adapters map this onto whatever block or role structure their
// wire format wants.
type Message struct {
	Role        string // "user" | "assistant"
	Text        string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolCall is a model-requested tool invocation with decoded JSON args.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolResult carries one tool's output back to the model.
type ToolResult struct {
	CallID string
	Output string
	Failed bool
}

// ToolDefinition advertises one tool to the model. InputSchema is a
// JSON Schema object ({"type": "object", "properties": ..., "required":
// ...}); adapters pull out the pieces their wire format names
// separately.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Completion is the assembled result of one model invocation.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
}

// Usage is the token consumption of one invocation, already priced.
type Usage struct {
	InputTokens  int
	OutputTokens int
	CostUSD      float64
}

// Pricing converts token counts to dollars for one model. The budget
// tracker accumulates CostUSD per turn against the planner's ceiling,
// so every adapter prices its own usage before returning it.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost prices a single invocation's token counts.
func (p Pricing) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1_000_000*p.InputPerMTok +
		float64(outputTokens)/1_000_000*p.OutputPerMTok
}
