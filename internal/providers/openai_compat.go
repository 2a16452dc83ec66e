package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAICompatClient serves every model that speaks the OpenAI chat
// completion dialect (GPT, GLM, Kimi, MiniMax), differing only in base
// URL, pricing, and vendor-specific extra body fields. Like the
// Anthropic adapter it uses the blocking endpoint: the loop wants whole
// replies, and a non-streaming response carries usage without needing a
// stream-options opt-in.
type openAICompatClient struct {
	api  openai.Client
	spec ModelSpec
}

func newOpenAICompatClient(apiKey string, spec ModelSpec) *openAICompatClient {
	return &openAICompatClient{
		api: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(spec.BaseURL),
		),
		spec: spec,
	}
}

func (c *openAICompatClient) Name() string       { return "openai_compat" }
func (c *openAICompatClient) ModelID() string    { return c.spec.ID }
func (c *openAICompatClient) ContextWindow() int { return c.spec.ContextWindow }

func (c *openAICompatClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.spec.ID),
		Messages: c.buildMessages(req.System, req.Messages),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		params.Tools = c.buildTools(req.Tools)
	}

	var opts []option.RequestOption
	for key, val := range c.spec.ExtraBody {
		opts = append(opts, option.WithJSONSet(key, val))
	}

	resp, err := c.api.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai_compat: %s returned no choices", c.spec.ID)
	}
	reply := resp.Choices[0].Message

	out := &Completion{Text: reply.Content}
	for _, tc := range reply.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			args = map[string]any{"_raw": tc.Function.Arguments}
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}

	in, outTok := int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens)
	out.Usage = Usage{
		InputTokens:  in,
		OutputTokens: outTok,
		CostUSD:      c.spec.Pricing.Cost(in, outTok),
	}
	return out, nil
}

// buildMessages maps the pipeline's turn model onto the chat dialect:
// the system prompt leads, each tool result becomes its own tool-role
// message, and a user turn's text (plain prompt or nudge) follows the
// results it belongs with.
func (c *openAICompatClient) buildMessages(system string, msgs []Message) []openai.ChatCompletionMessageParamUnion {
	var out []openai.ChatCompletionMessageParamUnion

	if system != "" {
		out = append(out, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(system),
				},
			},
		})
	}

	for _, msg := range msgs {
		switch msg.Role {
		case "user":
			for _, tr := range msg.ToolResults {
				out = append(out, openai.ChatCompletionMessageParamUnion{
					OfTool: &openai.ChatCompletionToolMessageParam{
						ToolCallID: tr.CallID,
						Content: openai.ChatCompletionToolMessageParamContentUnion{
							OfString: openai.String(tr.Output),
						},
					},
				})
			}
			if msg.Text != "" {
				out = append(out, openai.ChatCompletionMessageParamUnion{
					OfUser: &openai.ChatCompletionUserMessageParam{
						Content: openai.ChatCompletionUserMessageParamContentUnion{
							OfString: openai.String(msg.Text),
						},
					},
				})
			}

		case "assistant":
			assistant := &openai.ChatCompletionAssistantMessageParam{}
			if msg.Text != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(msg.Text),
				}
			}
			for _, tc := range msg.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Args)
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(argsJSON),
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		}
	}

	return out
}

func (c *openAICompatClient) buildTools(defs []ToolDefinition) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, td := range defs {
		tools = append(tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        td.Name,
				Description: openai.String(td.Description),
				Parameters:  openai.FunctionParameters(td.InputSchema),
			},
		})
	}
	return tools
}
