// Package narrative implements ecosystem-trend ingestion: four
// signal sources are merged and clustered, then one LLM call per
// cluster via the shared providers.Provider interface synthesizes a
// domain.Narrative.
package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/solguard/solguard/internal/httpclient"
)

// Signal is one raw ecosystem-trend observation, pre-synthesis.
type Signal struct {
	Source      string
	RepoOrTopic string
	Metric      float64
	ObservedAt  time.Time
}

// SignalSource fetches raw signals from one ecosystem data feed.
type SignalSource interface {
	Fetch(ctx context.Context) ([]Signal, error)
}

// GitHubTrendingSource queries GitHub's search API for repos tagged
// "solana", sorted by total star count (descending).
type GitHubTrendingSource struct {
	Client  *httpclient.Client
	BaseURL string // defaults to the public GitHub search endpoint
}

type githubSearchResponse struct {
	Items []struct {
		FullName        string `json:"full_name"`
		StargazersCount int    `json:"stargazers_count"`
	} `json:"items"`
}

func (g *GitHubTrendingSource) Fetch(ctx context.Context) ([]Signal, error) {
	base := g.BaseURL
	if base == "" {
		base = "https://api.github.com/search/repositories?q=topic:solana&sort=stars&order=desc"
	}
	body, err := g.Client.Get(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("narrative: github trending fetch: %w", err)
	}
	var resp githubSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("narrative: github trending decode: %w", err)
	}
	signals := make([]Signal, 0, len(resp.Items))
	now := time.Now()
	for _, item := range resp.Items {
		signals = append(signals, Signal{Source: "github_trending", RepoOrTopic: item.FullName, Metric: float64(item.StargazersCount), ObservedAt: now})
	}
	return signals, nil
}

// SocialMentionSource polls a configured mention-aggregation endpoint
// for repo/topic mention counts. The real network call is behind the
// same HttpClient interface every other source uses; the endpoint is
// treated as a generic JSON API returning {items: [{topic, mentions}]}.
type SocialMentionSource struct {
	Client   *httpclient.Client
	Endpoint string
}

type mentionResponse struct {
	Items []struct {
		Topic    string  `json:"topic"`
		Mentions float64 `json:"mentions"`
	} `json:"items"`
}

func (s *SocialMentionSource) Fetch(ctx context.Context) ([]Signal, error) {
	if s.Endpoint == "" {
		return nil, nil
	}
	body, err := s.Client.Get(ctx, s.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("narrative: social mention fetch: %w", err)
	}
	var resp mentionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("narrative: social mention decode: %w", err)
	}
	signals := make([]Signal, 0, len(resp.Items))
	now := time.Now()
	for _, item := range resp.Items {
		signals = append(signals, Signal{Source: "social_mention", RepoOrTopic: item.Topic, Metric: item.Mentions, ObservedAt: now})
	}
	return signals, nil
}

// EcosystemRegistrySource reads a Solana ecosystem project registry
// (JSON feed) for newly listed programs.
type EcosystemRegistrySource struct {
	Client   *httpclient.Client
	Endpoint string
}

type registryResponse struct {
	Projects []struct {
		Repo string `json:"repo"`
	} `json:"projects"`
}

func (r *EcosystemRegistrySource) Fetch(ctx context.Context) ([]Signal, error) {
	if r.Endpoint == "" {
		return nil, nil
	}
	body, err := r.Client.Get(ctx, r.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("narrative: ecosystem registry fetch: %w", err)
	}
	var resp registryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("narrative: ecosystem registry decode: %w", err)
	}
	signals := make([]Signal, 0, len(resp.Projects))
	now := time.Now()
	for _, p := range resp.Projects {
		signals = append(signals, Signal{Source: "ecosystem_registry", RepoOrTopic: p.Repo, Metric: 1, ObservedAt: now})
	}
	return signals, nil
}

// OnChainDeployFeedSource polls an indexer endpoint for recently
// deployed program ids, mapped back to source repos via Manifest.
type OnChainDeployFeedSource struct {
	Client   *httpclient.Client
	Endpoint string
	Manifest map[string]string // program id -> repo name
}

type deployFeedResponse struct {
	Deploys []struct {
		ProgramID string `json:"program_id"`
	} `json:"deploys"`
}

func (o *OnChainDeployFeedSource) Fetch(ctx context.Context) ([]Signal, error) {
	if o.Endpoint == "" {
		return nil, nil
	}
	body, err := o.Client.Get(ctx, o.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("narrative: deploy feed fetch: %w", err)
	}
	var resp deployFeedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("narrative: deploy feed decode: %w", err)
	}
	signals := make([]Signal, 0, len(resp.Deploys))
	now := time.Now()
	for _, d := range resp.Deploys {
		repo, ok := o.Manifest[d.ProgramID]
		if !ok {
			continue
		}
		signals = append(signals, Signal{Source: "onchain_deploy", RepoOrTopic: repo, Metric: 1, ObservedAt: now})
	}
	return signals, nil
}
