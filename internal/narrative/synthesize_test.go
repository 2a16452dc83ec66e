package narrative

import (
	"context"
	"testing"
	"time"

	"github.com/solguard/solguard/internal/providers"
)

type fakeProvider struct {
	text string
}

func (f *fakeProvider) Name() string       { return "fake" }
func (f *fakeProvider) ModelID() string    { return "fake-model" }
func (f *fakeProvider) ContextWindow() int { return 100000 }

func (f *fakeProvider) Complete(ctx context.Context, req providers.Request) (*providers.Completion, error) {
	return &providers.Completion{Text: f.text}, nil
}

func TestMergeAndCluster_GroupsByTopicCaseInsensitive(t *testing.T) {
	results := [][]Signal{
		{{Source: "github_trending", RepoOrTopic: "Vault", Metric: 100, ObservedAt: time.Now()}},
		{{Source: "social_mention", RepoOrTopic: "vault", Metric: 50, ObservedAt: time.Now()}},
		{{Source: "ecosystem_registry", RepoOrTopic: "lend-protocol", Metric: 1, ObservedAt: time.Now()}},
	}
	clusters := MergeAndCluster(results)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	for _, c := range clusters {
		if c.Topic == "vault" && len(c.Signals) != 2 {
			t.Fatalf("expected vault cluster to merge 2 signals, got %d", len(c.Signals))
		}
	}
}

func TestSynthesize_ParsesValidResponse(t *testing.T) {
	p := &fakeProvider{text: `{"title": "Vault protocols surging", "summary": "rapid TVL growth", "confidence": 0.75}`}
	s := &Synthesizer{Provider: p}
	clusters := []Cluster{{Topic: "vault", Signals: []Signal{{Source: "github_trending", RepoOrTopic: "vault", Metric: 100}}}}

	narratives := s.Synthesize(context.Background(), clusters)
	if len(narratives) != 1 {
		t.Fatalf("expected 1 narrative, got %d", len(narratives))
	}
	if narratives[0].Title != "Vault protocols surging" {
		t.Fatalf("unexpected title: %s", narratives[0].Title)
	}
	if len(narratives[0].ActiveRepos) != 1 || narratives[0].ActiveRepos[0] != "vault" {
		t.Fatalf("unexpected active repos: %v", narratives[0].ActiveRepos)
	}
}

func TestSynthesize_SkipsUnparseableCluster(t *testing.T) {
	p := &fakeProvider{text: "not json at all"}
	s := &Synthesizer{Provider: p}
	clusters := []Cluster{{Topic: "vault", Signals: []Signal{{Source: "github_trending", RepoOrTopic: "vault"}}}}

	narratives := s.Synthesize(context.Background(), clusters)
	if len(narratives) != 0 {
		t.Fatalf("expected 0 narratives for unparseable response, got %d", len(narratives))
	}
}
