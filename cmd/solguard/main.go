// Command solguard is the CLI entrypoint: it wires the narrative
// ingestion layer, git acquisition, the scanning pipeline, persistence,
// and report rendering into one subcommand tree. Exit codes: 0 success
// (even with findings), 2 config/CLI error, 3 network/auth failure, 4
// partial (cancelled or budget-exhausted before useful output), 1
// internal error.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/solguard/solguard/internal/config"
	"github.com/solguard/solguard/internal/crossref"
	"github.com/solguard/solguard/internal/domain"
	"github.com/solguard/solguard/internal/gitfetch"
	"github.com/solguard/solguard/internal/logger"
	"github.com/solguard/solguard/internal/memory"
	"github.com/solguard/solguard/internal/narrative"
	"github.com/solguard/solguard/internal/pipeline"
	"github.com/solguard/solguard/internal/providers"
	"github.com/solguard/solguard/internal/report"
)

// exitCode is a sentinel error carrying the process exit code a RunE
// wants, so main can do the single os.Exit call after Cobra unwinds.
type exitCode struct {
	code int
	err  error
}

func (e *exitCode) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("exit %d", e.code)
}

func fail(code int, format string, args ...any) error {
	return &exitCode{code: code, err: fmt.Errorf(format, args...)}
}

func main() {
	root := &cobra.Command{
		Use:   "solguard",
		Short: "SolGuard — ecosystem landmine hunter for Solana source code",
		Long:  "SolGuard scans Solana on-chain program repositories for exploitable defects, using hybrid static analysis and an optional tool-using LLM investigation agent.",
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config.toml (default ~/.config/solguard/config.toml)")
	root.PersistentFlags().String("provider", "", "provider name (informational only; not read — the model id determines the provider)")
	root.PersistentFlags().String("model", "", "model id to use (default from config)")
	root.PersistentFlags().Int("max-turns", 0, "cap on agent turns per repo (0 = use budget planner)")
	root.PersistentFlags().Float64("cost-limit", 0, "cap on cost per repo in USD (0 = use budget planner)")
	root.PersistentFlags().String("output", "./solguard-output", "directory for findings.json/narratives.json/solguard-report.html")

	root.AddCommand(
		runCmd(),
		narrativesCmd(),
		scanCmd(),
		investigateCmd(),
		testCmd(),
		renderCmd(),
	)

	if err := root.Execute(); err != nil {
		var ec *exitCode
		if ok := asExitCode(err, &ec); ok {
			if ec.err != nil {
				fmt.Fprintln(os.Stderr, "Error:", ec.err)
			}
			os.Exit(ec.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func asExitCode(err error, target **exitCode) bool {
	ec, ok := err.(*exitCode)
	if ok {
		*target = ec
	}
	return ok
}

// loadedConfig resolves -c/--config and loads it, applying --model /
// --max-turns / --cost-limit overrides on top (flags beat env beat
// file).
func loadedConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fail(2, "failed to load config: %w", err)
	}

	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.Defaults.Model = model
	}
	if maxTurns, _ := cmd.Flags().GetInt("max-turns"); maxTurns > 0 {
		cfg.Pipeline.MaxTurnsCap = maxTurns
	}
	if costLimit, _ := cmd.Flags().GetFloat64("cost-limit"); costLimit > 0 {
		cfg.Pipeline.CostCapUSD = costLimit
	}
	return cfg, nil
}

func ctxWithSignal() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// --- solguard run ---

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [repo-path...]",
		Short: "Run the full pipeline: narratives -> static scan -> (optional) deep investigation -> report",
		RunE:  runRun,
	}
	cmd.Flags().Bool("deep", false, "drive the agent investigation loop and validator in addition to static scanning")
	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadedConfig(cmd)
	if err != nil {
		return err
	}
	deep, _ := cmd.Flags().GetBool("deep")
	outputDir, _ := cmd.Flags().GetString("output")

	ctx, cancel := ctxWithSignal()
	defer cancel()

	repos, err := resolveRepoHandles(ctx, args, outputDir)
	if err != nil {
		return fail(2, "resolving repos: %w", err)
	}
	if len(repos) == 0 {
		return fail(2, "run requires at least one repo path (clone candidates with the narrative layer's active_repos first)")
	}

	narratives := fetchNarratives(ctx, cfg)

	opts := pipeline.Options{
		Deep:             deep,
		ValidatorEnabled: cfg.Pipeline.ValidatorEnabled,
		NRepo:            cfg.Pipeline.NRepo,
		NVal:             cfg.Pipeline.NVal,
		AuditLogDir:      outputDir,
		MaxTurnsCap:      cfg.Pipeline.MaxTurnsCap,
		CostCapUSD:       cfg.Pipeline.CostCapUSD,
		PatternOverrides: cfg.Pipeline.PatternOverrides,
	}
	if deep {
		provider, err := buildProvider(cfg)
		if err != nil {
			return fail(3, "provider setup: %w", err)
		}
		opts.Provider = provider
	}

	results, scored, orphans := pipeline.Run(ctx, repos, narratives, opts)

	if cfg.Pipeline.EnableLLMCrossRef && opts.Provider != nil {
		scored = annotateRelevance(ctx, opts.Provider, scored)
	}

	if err := persistAndExport(results, scored, outputDir); err != nil {
		return fail(1, "persisting results: %w", err)
	}

	printSummary(results, scored, orphans)

	if ctx.Err() != nil {
		return fail(4, "run cancelled before completion")
	}
	if anyPartial(results) {
		logger.Warning("one or more repos produced a partial scan; see the PARTIAL entries in solguard-report.html")
	}
	return nil
}

// resolveRepoHandles turns positional CLI arguments into RepoHandles.
// Each argument is either a local directory already on disk, or a remote
// URL that is cloned via gitfetch into outputDir/repos first.
func resolveRepoHandles(ctx context.Context, paths []string, outputDir string) ([]domain.RepoHandle, error) {
	repos := make([]domain.RepoHandle, 0, len(paths))
	for _, p := range paths {
		if strings.Contains(p, "://") || strings.HasSuffix(p, ".git") {
			name := strings.TrimSuffix(filepath.Base(p), ".git")
			dest := filepath.Join(outputDir, "repos", name)
			handle, err := gitfetch.CloneOrUpdate(ctx, p, dest)
			if err != nil {
				return nil, err
			}
			repos = append(repos, handle)
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%q is not a local directory or clone URL", p)
		}
		repos = append(repos, domain.RepoHandle{Name: filepath.Base(abs), Path: abs})
	}
	return repos, nil
}

// fetchNarratives runs narrative ingestion best-effort: a failure to synthesize
// narratives (no sources configured, network unavailable) degrades to
// an empty narrative set rather than aborting the run, since static
// scanning and --deep investigation both work without them.
func fetchNarratives(ctx context.Context, cfg *config.Config) []domain.Narrative {
	if cfg.Keys.Anthropic == "" && cfg.Keys.OpenAI == "" {
		return nil
	}
	provider, err := buildProvider(cfg)
	if err != nil {
		return nil
	}
	sources := []narrative.SignalSource{} // no endpoints configured by default; operators wire these via config in a real deployment
	results := narrative.FetchAll(ctx, sources)
	clusters := narrative.MergeAndCluster(results)
	if len(clusters) == 0 {
		return nil
	}
	synth := &narrative.Synthesizer{Provider: provider}
	return synth.Synthesize(ctx, clusters)
}

func buildProvider(cfg *config.Config) (providers.Provider, error) {
	modelID := cfg.Defaults.Model
	if modelID == "" {
		modelID = "claude-opus-4-6"
	}
	if err := cfg.ValidateForModel(modelID); err != nil {
		return nil, err
	}
	return providers.NewProvider(modelID, cfg.ToAPIKeysMap())
}

func annotateRelevance(ctx context.Context, provider providers.Provider, narratives []domain.Narrative) []domain.Narrative {
	ann := &llmRelevanceAnnotator{provider: provider}
	notes, err := crossref.AnnotateRelevance(ctx, ann, narratives)
	if err != nil {
		return narratives
	}
	for i := range narratives {
		if note, ok := notes[narratives[i].ID]; ok {
			narratives[i].RelevanceNote = note
		}
	}
	return narratives
}

// llmRelevanceAnnotator implements crossref.RelevanceAnnotator with one
// short completion per narrative; it returns prose only and never
// touches RiskScore.
type llmRelevanceAnnotator struct {
	provider providers.Provider
}

func (a *llmRelevanceAnnotator) Annotate(ctx context.Context, n domain.Narrative) (string, error) {
	reply, err := a.provider.Complete(ctx, providers.Request{
		System: "Respond with one sentence of advisory commentary, no prose framing, no JSON.",
		Messages: []providers.Message{{Role: "user", Text: fmt.Sprintf(
			"Narrative: %s\nSummary: %s\nRisk score: %.2f (%s)\nIs this narrative worth prioritizing this week, and why?",
			n.Title, n.Summary, n.RiskScore, n.RiskLevel)}},
		MaxTokens: 128,
	})
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

func persistAndExport(results []domain.ScanResult, narratives []domain.Narrative, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	dbPath, err := memory.DefaultDBPath()
	if err != nil {
		return err
	}
	store, err := memory.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	for _, r := range results {
		repo := &memory.Repo{Name: r.Repo.Name, Path: r.Repo.Path}
		if err := store.CreateRepo(ctx, repo); err != nil {
			return err
		}
		scan := &memory.Scan{RepoID: repo.ID}
		if err := store.CreateScan(ctx, scan); err != nil {
			return err
		}
		if err := store.SaveFindings(ctx, scan.ID, r.Findings); err != nil {
			return err
		}
		for _, f := range r.Findings {
			area := &memory.InvestigatedArea{RepoID: repo.ID, ScanID: scan.ID, Path: f.File, Pattern: string(f.PatternID)}
			if err := store.MarkInvestigated(ctx, area); err != nil {
				return err
			}
		}
		if err := store.FinishScan(ctx, scan.ID, r.Stats); err != nil {
			return err
		}
	}
	if err := store.SaveNarratives(ctx, narratives); err != nil {
		return err
	}

	findingsPath := filepath.Join(outputDir, "findings.json")
	narrativesPath := filepath.Join(outputDir, "narratives.json")
	if err := store.ExportJSON(findingsPath, narrativesPath); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(outputDir, "solguard-report.html"))
	if err != nil {
		return err
	}
	defer f.Close()
	return report.Render(f, report.Data{
		Narratives:    narratives,
		Scans:         results,
		GeneratedAt:   time.Now(),
		ShowRelevance: hasAnyRelevanceNote(narratives),
	})
}

func hasAnyRelevanceNote(narratives []domain.Narrative) bool {
	for _, n := range narratives {
		if n.RelevanceNote != "" {
			return true
		}
	}
	return false
}

func anyPartial(results []domain.ScanResult) bool {
	for _, r := range results {
		if r.Stats.Partial {
			return true
		}
	}
	return false
}

func printSummary(results []domain.ScanResult, narratives []domain.Narrative, orphans []crossref.Orphan) {
	total := 0
	for _, r := range results {
		total += len(r.Findings)
		logger.Info("%s: %d findings (turns=%d cost=$%.4f partial=%v)", r.Repo.Name, len(r.Findings), r.Stats.TurnsUsed, r.Stats.CostUSD, r.Stats.Partial)
	}
	logger.Success("scan complete: %d repos, %d findings, %d narratives scored, %d orphan findings", len(results), total, len(narratives), len(orphans))
	for _, n := range narratives {
		logger.Findingf(string(n.RiskLevel), fmt.Sprintf("%s — risk_score=%.2f", n.Title, n.RiskScore))
	}
}

// --- solguard narratives ---

func narrativesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "narratives",
		Short: "Run narrative ingestion only and print ranked narratives",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadedConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := ctxWithSignal()
			defer cancel()

			narratives := fetchNarratives(ctx, cfg)
			if len(narratives) == 0 {
				fmt.Println("No narratives synthesized (no signal sources configured or no API key set).")
				return nil
			}
			for _, n := range narratives {
				fmt.Printf("%-40s confidence=%.2f repos=%v\n", n.Title, n.Confidence, n.ActiveRepos)
			}
			return nil
		},
	}
}

// --- solguard scan ---

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <repo>",
		Short: "Run the static scanners only against one local repo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return fail(2, "invalid path: %w", err)
			}
			repo := domain.RepoHandle{Name: filepath.Base(abs), Path: abs}
			findings, stats := pipeline.ScanStatic(context.Background(), repo)
			for _, f := range findings {
				logger.Findingf(string(f.Severity), fmt.Sprintf("%s %s:%d %s", f.PatternID, f.File, f.Line, f.Title))
			}
			logger.Success("scanned %s: %d files, %d findings", repo.Name, stats.FilesWalked, len(findings))
			return nil
		},
	}
}

// --- solguard investigate ---

func investigateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "investigate <repo>",
		Short: "Run the full deep-mode pipeline against one local repo",
		Args:  cobra.ExactArgs(1),
		RunE:  runInvestigate,
	}
	cmd.Flags().String("category", "", "protocol category: dex|lending|privacy|staking|nft|other (default: inferred from repo name)")
	cmd.Flags().String("narrative-summary", "", "narrative framing to seed the agent's system prompt")
	cmd.Flags().Float64("confidence", 0.5, "narrative confidence to size the investigation budget")
	return cmd
}

func runInvestigate(cmd *cobra.Command, args []string) error {
	cfg, err := loadedConfig(cmd)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(args[0])
	if err != nil {
		return fail(2, "invalid path: %w", err)
	}
	repo := domain.RepoHandle{Name: filepath.Base(abs), Path: abs}

	confidence, _ := cmd.Flags().GetFloat64("confidence")
	summary, _ := cmd.Flags().GetString("narrative-summary")
	category, _ := cmd.Flags().GetString("category")

	provider, err := buildProvider(cfg)
	if err != nil {
		return fail(3, "provider setup: %w", err)
	}

	synthetic := []domain.Narrative{{Title: "cli-seeded investigation", Summary: summary, Confidence: confidence, ActiveRepos: []string{repo.Name}}}
	ctx, cancel := ctxWithSignal()
	defer cancel()

	result := pipeline.ScanRepo(ctx, repo, synthetic, pipeline.Options{
		Deep:             true,
		ValidatorEnabled: cfg.Pipeline.ValidatorEnabled,
		NVal:             cfg.Pipeline.NVal,
		Provider:         provider,
		Category:         domain.ProtocolCategory(category),
		MaxTurnsCap:      cfg.Pipeline.MaxTurnsCap,
		CostCapUSD:       cfg.Pipeline.CostCapUSD,
		PatternOverrides: cfg.Pipeline.PatternOverrides,
	})

	for _, f := range result.Findings {
		logger.Findingf(string(f.Severity), fmt.Sprintf("%s %s:%d %s (%s)", f.PatternID, f.File, f.Line, f.Title, f.Validation))
	}
	logger.Success("investigated %s: %d findings, %d turns, $%.4f", repo.Name, len(result.Findings), result.Stats.TurnsUsed, result.Stats.CostUSD)

	outputDir, _ := cmd.Flags().GetString("output")
	if outputDir != "" {
		if err := persistAndExport([]domain.ScanResult{result}, nil, outputDir); err != nil {
			return fail(1, "persisting results: %w", err)
		}
	}
	return nil
}

// --- solguard test ---

func testCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run the scripted-model self-check suite (no API key or cost required)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runSelfCheck(); err != nil {
				return fail(1, "self-check failed: %w", err)
			}
			logger.Success("self-check passed: scripted agent loop, budget planner, and cross-reference scoring all behave as specified")
			return nil
		},
	}
}

// --- solguard render ---

func renderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Render solguard-report.html from previously exported findings.json/narratives.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputDir, _ := cmd.Flags().GetString("output")

			findingsPath := filepath.Join(outputDir, "findings.json")
			narrativesPath := filepath.Join(outputDir, "narratives.json")

			var findings []domain.Finding
			if err := readJSON(findingsPath, &findings); err != nil {
				return fail(2, "reading %s: %w", findingsPath, err)
			}
			var narratives []domain.Narrative
			if err := readJSON(narrativesPath, &narratives); err != nil {
				return fail(2, "reading %s: %w", narrativesPath, err)
			}

			byRepo := make(map[string][]domain.Finding)
			for _, f := range findings {
				byRepo[f.Repo] = append(byRepo[f.Repo], f)
			}
			var scans []domain.ScanResult
			for repoName, fs := range byRepo {
				scans = append(scans, domain.ScanResult{Repo: domain.RepoHandle{Name: repoName}, Findings: fs})
			}
			sort.Slice(scans, func(i, j int) bool { return scans[i].Repo.Name < scans[j].Repo.Name })

			f, err := os.Create(filepath.Join(outputDir, "solguard-report.html"))
			if err != nil {
				return fail(1, "creating report file: %w", err)
			}
			defer f.Close()

			if err := report.Render(f, report.Data{Narratives: narratives, Scans: scans, GeneratedAt: time.Now()}); err != nil {
				return fail(1, "rendering report: %w", err)
			}
			logger.Success("rendered %s", filepath.Join(outputDir, "solguard-report.html"))
			return nil
		},
	}
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
