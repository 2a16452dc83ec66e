package providers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicClient serves Claude models through the Messages API. The
// investigation loop consumes whole replies, so this adapter uses the
// blocking endpoint rather than streaming and assembles the reply's
// content blocks into one Completion.
type anthropicClient struct {
	api  anthropic.Client
	spec ModelSpec
}

func newAnthropicClient(apiKey string, spec ModelSpec) *anthropicClient {
	return &anthropicClient{
		api:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		spec: spec,
	}
}

func (c *anthropicClient) Name() string       { return "anthropic" }
func (c *anthropicClient) ModelID() string    { return c.spec.ID }
func (c *anthropicClient) ContextWindow() int { return c.spec.ContextWindow }

func (c *anthropicClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.spec.ID),
		MaxTokens: int64(req.MaxTokens),
		Messages:  c.buildMessages(req.Messages),
		Tools:     c.buildTools(req.Tools),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	out := &Completion{}
	var text strings.Builder
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:   b.ID,
				Name: b.Name,
				Args: decodeToolInput(b.Input),
			})
		}
	}
	out.Text = text.String()

	in, outTok := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	out.Usage = Usage{
		InputTokens:  in,
		OutputTokens: outTok,
		CostUSD:      c.spec.Pricing.Cost(in, outTok),
	}
	return out, nil
}

// decodeToolInput normalizes a tool_use block's input into a plain map.
// Round-tripping through json.Marshal covers both raw-JSON and
// already-decoded representations of the SDK's input field.
func decodeToolInput(input any) map[string]any {
	raw, err := json.Marshal(input)
	if err != nil {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return map[string]any{"_raw": string(raw)}
	}
	return args
}

// buildMessages maps the pipeline's turn model onto Anthropic content
// blocks: an assistant turn becomes text + tool_use blocks, a user turn
// becomes tool_result blocks followed by any text (the nudge rides
// after the results it comments on).
func (c *anthropicClient) buildMessages(msgs []Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		var blocks []anthropic.ContentBlockParamUnion

		if msg.Role == "assistant" && msg.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Text))
		}
		for _, tc := range msg.ToolCalls {
			argsJSON, _ := json.Marshal(tc.Args)
			blocks = append(blocks, anthropic.ContentBlockParamUnion{
				OfToolUse: &anthropic.ToolUseBlockParam{
					ID:    tc.ID,
					Name:  tc.Name,
					Input: json.RawMessage(argsJSON),
				},
			})
		}
		for _, tr := range msg.ToolResults {
			blocks = append(blocks, anthropic.NewToolResultBlock(tr.CallID, tr.Output, tr.Failed))
		}
		if msg.Role == "user" && msg.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(msg.Text))
		}

		params = append(params, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: blocks,
		})
	}
	return params
}

func (c *anthropicClient) buildTools(defs []ToolDefinition) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, td := range defs {
		tool := anthropic.ToolParam{
			Name:        td.Name,
			Description: anthropic.String(td.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: td.InputSchema["properties"],
			},
		}
		tools = append(tools, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return tools
}
