// Package config loads SolGuard's configuration from a TOML file,
// overridden by environment variables, with CLI flags applying on top
// at the call site (cmd/solguard binds flags directly onto the loaded
// Config after Load returns).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/solguard/solguard/internal/providers"
)

// Config is the top-level user configuration.
type Config struct {
	Keys     APIKeys        `toml:"keys"`
	Defaults Defaults       `toml:"defaults"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

// APIKeys holds API keys for each supported provider.
type APIKeys struct {
	Anthropic string `toml:"anthropic"`
	OpenAI    string `toml:"openai"`
	GLM       string `toml:"glm"`
	Kimi      string `toml:"kimi"`
	MiniMax   string `toml:"minimax"`
}

// Defaults holds default run settings.
type Defaults struct {
	Model string `toml:"model"` // default: "claude-opus-4-6"
}

// PipelineConfig carries the pipeline-wide knobs:
// budget caps, validator toggle, concurrency tiers, and per-pattern
// severity overrides.
type PipelineConfig struct {
	MaxTurnsCap       int            `toml:"max_turns_cap"`
	CostCapUSD        float64        `toml:"cost_cap_usd"`
	ValidatorEnabled  bool           `toml:"validator_enabled"`
	EnableLLMCrossRef bool           `toml:"enable_llm_crossref"`
	NRepo             int            `toml:"n_repo"`
	NVal              int            `toml:"n_val"`
	PatternOverrides  map[string]string `toml:"pattern_overrides"` // pattern id -> severity
}

func defaultPipeline() PipelineConfig {
	return PipelineConfig{
		MaxTurnsCap:       40,
		CostCapUSD:        30,
		ValidatorEnabled:  true,
		EnableLLMCrossRef: false,
		NRepo:             4,
		NVal:              4,
	}
}

// configDir returns the path to ~/.config/solguard/
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "solguard"), nil
}

// configPath returns the full path to the config file.
func configPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads config from ~/.config/solguard/config.toml, then applies
// SOLGUARD_* environment variable overrides. A missing config file is
// not fatal — defaults plus env vars can fully configure a run.
func Load() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads config from an explicit path (the CLI's `-c` flag),
// applying the same env-override pass Load does. A missing file at path
// is not fatal, matching Load's behavior for the default location.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{
		Defaults: Defaults{Model: "claude-opus-4-6"},
		Pipeline: defaultPipeline(),
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides applies SOLGUARD_* environment variables on top of
// whatever Load parsed from the TOML file — env beats file, flags (bound
// by the caller) beat env.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SOLGUARD_ANTHROPIC_KEY"); v != "" {
		cfg.Keys.Anthropic = v
	}
	if v := os.Getenv("SOLGUARD_OPENAI_KEY"); v != "" {
		cfg.Keys.OpenAI = v
	}
	if v := os.Getenv("SOLGUARD_GLM_KEY"); v != "" {
		cfg.Keys.GLM = v
	}
	if v := os.Getenv("SOLGUARD_KIMI_KEY"); v != "" {
		cfg.Keys.Kimi = v
	}
	if v := os.Getenv("SOLGUARD_MINIMAX_KEY"); v != "" {
		cfg.Keys.MiniMax = v
	}
	if v := os.Getenv("SOLGUARD_MODEL"); v != "" {
		cfg.Defaults.Model = v
	}
	if v := os.Getenv("SOLGUARD_MAX_TURNS_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.MaxTurnsCap = n
		}
	}
	if v := os.Getenv("SOLGUARD_COST_CAP_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Pipeline.CostCapUSD = f
		}
	}
	if v := os.Getenv("SOLGUARD_VALIDATOR_ENABLED"); v != "" {
		cfg.Pipeline.ValidatorEnabled = parseBool(v, cfg.Pipeline.ValidatorEnabled)
	}
	if v := os.Getenv("SOLGUARD_ENABLE_LLM_CROSSREF"); v != "" {
		cfg.Pipeline.EnableLLMCrossRef = parseBool(v, cfg.Pipeline.EnableLLMCrossRef)
	}
	if v := os.Getenv("SOLGUARD_N_REPO"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.NRepo = n
		}
	}
	if v := os.Getenv("SOLGUARD_N_VAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.NVal = n
		}
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

// Save writes config to ~/.config/solguard/config.toml, creating the
// directory if needed.
func Save(cfg *Config) error {
	dir, err := configDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("config: failed to create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, "config.toml")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: failed to create %s: %w", path, err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("config: failed to write %s: %w", path, err)
	}

	return nil
}

// ToAPIKeysMap converts the Keys struct to the map format
// providers.NewProvider expects.
func (c *Config) ToAPIKeysMap() map[string]string {
	return map[string]string{
		"anthropic": c.Keys.Anthropic,
		"openai":    c.Keys.OpenAI,
		"glm":       c.Keys.GLM,
		"kimi":      c.Keys.Kimi,
		"minimax":   c.Keys.MiniMax,
	}
}

// ValidateForModel checks that the required API key is present for the
// given model, per the provider registry's key-name mapping.
func (c *Config) ValidateForModel(modelID string) error {
	spec, known := providers.Lookup(modelID)
	if !known {
		return fmt.Errorf("config: unknown model %q", modelID)
	}

	if c.ToAPIKeysMap()[spec.KeyName] == "" {
		return fmt.Errorf("config: API key for %q is not set — set %s or add it to ~/.config/solguard/config.toml",
			modelID, "SOLGUARD_"+strings.ToUpper(spec.KeyName)+"_KEY")
	}

	return nil
}
