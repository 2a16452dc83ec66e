package providers

import (
	"context"
	"fmt"
)

// ScriptedTurn is one canned reply. A turn with ToolCalls keeps the
// conversation going; a text-only turn ends it.
type ScriptedTurn struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
}

// ScriptedProvider replays a fixed turn sequence through the same
// Provider contract the real adapters implement, so the agent loop,
// the `solguard test` self-check, and any package test can run
// deterministic conversations without touching the network.
type ScriptedProvider struct {
	Turns []ScriptedTurn
	next  int
	model string
}

// NewScriptedProvider replays turns in order, repeating the final turn
// if Complete is called more times than there are scripted turns.
func NewScriptedProvider(modelID string, turns ...ScriptedTurn) *ScriptedProvider {
	return &ScriptedProvider{Turns: turns, model: modelID}
}

func (s *ScriptedProvider) Name() string       { return "scripted" }
func (s *ScriptedProvider) ModelID() string    { return s.model }
func (s *ScriptedProvider) ContextWindow() int { return 200000 }

func (s *ScriptedProvider) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.Turns) == 0 {
		return nil, fmt.Errorf("scripted provider: no turns configured")
	}
	idx := s.next
	if idx >= len(s.Turns) {
		idx = len(s.Turns) - 1
	}
	s.next++
	turn := s.Turns[idx]

	return &Completion{
		Text:      turn.Text,
		ToolCalls: append([]ToolCall(nil), turn.ToolCalls...),
		Usage:     turn.Usage,
	}, nil
}
