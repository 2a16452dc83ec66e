package agent

import (
	"context"
	"testing"

	"github.com/solguard/solguard/internal/domain"
	"github.com/solguard/solguard/internal/providers"
)

// fakeProvider replays canned reply texts, repeating the last one if
// exhausted.
type fakeProvider struct {
	replies []string
	calls   int
}

func (f *fakeProvider) Name() string       { return "fake" }
func (f *fakeProvider) ModelID() string    { return "fake-model" }
func (f *fakeProvider) ContextWindow() int { return 100000 }

func (f *fakeProvider) Complete(ctx context.Context, req providers.Request) (*providers.Completion, error) {
	idx := f.calls
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	f.calls++
	return &providers.Completion{
		Text:  f.replies[idx],
		Usage: providers.Usage{InputTokens: 10, OutputTokens: 10, CostUSD: 0.01},
	}, nil
}

func TestParseFindings_ValidAndMalformedElements(t *testing.T) {
	text := `[
		{"severity": "high", "file": "lib.rs", "line": 10, "title": "missing signer check", "description": "x"},
		{"severity": "bogus", "file": "lib.rs", "line": 1, "title": "dropped: bad severity"},
		{"severity": "low", "file": "", "title": "dropped: no file"}
	]`
	findings, err := parseFindings(text, "vault")
	if err != nil {
		t.Fatalf("parseFindings: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 surviving finding, got %d", len(findings))
	}
	if findings[0].PatternID != "AGENT-001" {
		t.Fatalf("expected generated pattern id, got %s", findings[0].PatternID)
	}
}

func TestStripCodeFence(t *testing.T) {
	in := "```json\n[]\n```"
	if got := stripCodeFence(in); got != "[]" {
		t.Fatalf("expected fence stripped, got %q", got)
	}
}

func TestInvestigate_TextOnlyResponseParsesFindings(t *testing.T) {
	p := &fakeProvider{replies: []string{
		`[{"severity": "critical", "file": "lib.rs", "line": 5, "title": "revival attack", "description": "closed account can be revived"}]`,
	}}

	ctx := domain.ScanContext{
		Repo:             domain.RepoHandle{Name: "vault", Path: "/tmp/vault"},
		ProtocolCategory: domain.ProtocolLending,
		Budget:           domain.Budget{MaxTurns: 5, CostLimitUSD: 5},
	}

	result := Investigate(context.Background(), p, nil, ctx)
	if len(result.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d (stats=%+v)", len(result.Findings), result.Stats)
	}
	if result.Findings[0].Severity != domain.SeverityCritical {
		t.Fatalf("expected critical severity, got %s", result.Findings[0].Severity)
	}
}
