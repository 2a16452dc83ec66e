package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/solguard/solguard/internal/domain"
	"github.com/solguard/solguard/internal/providers"
)

// Cluster groups signals that name the same topic/repo set across
// sources, before each gets a single LLM synthesis call.
type Cluster struct {
	Topic   string
	Signals []Signal
}

// MergeAndCluster takes the per-source signal lists (as FetchAll
// returns them; it runs no source itself) and groups the combined
// signals by RepoOrTopic (case-insensitive), clusters sorted by topic.
// A source that failed in FetchAll contributes an empty list rather
// than failing the whole merge — narrative ingestion is best-effort:
// the scan pipeline works without it.
func MergeAndCluster(results [][]Signal) []Cluster {
	byTopic := make(map[string][]Signal)
	order := make([]string, 0)
	for _, signals := range results {
		for _, s := range signals {
			key := strings.ToLower(s.RepoOrTopic)
			if _, seen := byTopic[key]; !seen {
				order = append(order, key)
			}
			byTopic[key] = append(byTopic[key], s)
		}
	}
	sort.Strings(order)

	clusters := make([]Cluster, 0, len(order))
	for _, key := range order {
		clusters = append(clusters, Cluster{Topic: key, Signals: byTopic[key]})
	}
	return clusters
}

// FetchAll runs every configured source and collects their signals,
// logging nothing itself — callers decide how to surface per-source
// failures.
func FetchAll(ctx context.Context, sources []SignalSource) [][]Signal {
	results := make([][]Signal, len(sources))
	for i, src := range sources {
		signals, err := src.Fetch(ctx)
		if err != nil {
			continue
		}
		results[i] = signals
	}
	return results
}

type synthesisResponse struct {
	Title      string  `json:"title"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

// Synthesizer makes one short LLM call per cluster, asking for a title,
// summary, and confidence score, and assembles the resulting
// domain.Narrative.
type Synthesizer struct {
	Provider providers.Provider
}

// Synthesize produces one Narrative per cluster. A cluster whose LLM
// call fails or returns unparseable JSON is skipped rather than
// aborting the whole batch — narrative ingestion is best-effort
// relative to the scanning pipeline.
func (s *Synthesizer) Synthesize(ctx context.Context, clusters []Cluster) []domain.Narrative {
	narratives := make([]domain.Narrative, 0, len(clusters))
	for _, c := range clusters {
		n, err := s.synthesizeOne(ctx, c)
		if err != nil {
			continue
		}
		narratives = append(narratives, n)
	}
	return narratives
}

func (s *Synthesizer) synthesizeOne(ctx context.Context, c Cluster) (domain.Narrative, error) {
	reply, err := s.Provider.Complete(ctx, providers.Request{
		System:    "You are an ecosystem analyst. Respond with ONLY a JSON object {\"title\": \"...\", \"summary\": \"...\", \"confidence\": 0.0-1.0}, no prose.",
		Messages:  []providers.Message{{Role: "user", Text: buildSynthesisPrompt(c)}},
		MaxTokens: 512,
	})
	if err != nil {
		return domain.Narrative{}, err
	}

	var parsed synthesisResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply.Text)), &parsed); err != nil {
		return domain.Narrative{}, fmt.Errorf("narrative synthesis: unparseable response: %w", err)
	}

	repos := activeRepos(c)
	return domain.Narrative{
		ID:          uuid.NewString(),
		Title:       parsed.Title,
		Summary:     parsed.Summary,
		Confidence:  parsed.Confidence,
		ActiveRepos: repos,
	}, nil
}

func activeRepos(c Cluster) []string {
	seen := make(map[string]bool)
	var repos []string
	for _, s := range c.Signals {
		if !seen[s.RepoOrTopic] {
			seen[s.RepoOrTopic] = true
			repos = append(repos, s.RepoOrTopic)
		}
	}
	sort.Strings(repos)
	return repos
}

func buildSynthesisPrompt(c Cluster) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic cluster: %s\n", c.Topic)
	b.WriteString("Signals observed:\n")
	for _, s := range c.Signals {
		fmt.Fprintf(&b, "  - %s reports %s with metric %.2f\n", s.Source, s.RepoOrTopic, s.Metric)
	}
	b.WriteString("\nSummarize why this is an emerging ecosystem narrative worth investigating, and estimate your confidence.\n")
	return b.String()
}
