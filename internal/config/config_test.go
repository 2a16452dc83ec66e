package config

import (
	"os"
	"testing"
)

func TestApplyEnvOverrides_BeatsFileDefaults(t *testing.T) {
	os.Setenv("SOLGUARD_MODEL", "glm-5")
	os.Setenv("SOLGUARD_N_REPO", "8")
	os.Setenv("SOLGUARD_VALIDATOR_ENABLED", "false")
	defer os.Unsetenv("SOLGUARD_MODEL")
	defer os.Unsetenv("SOLGUARD_N_REPO")
	defer os.Unsetenv("SOLGUARD_VALIDATOR_ENABLED")

	cfg := &Config{Defaults: Defaults{Model: "claude-opus-4-6"}, Pipeline: defaultPipeline()}
	applyEnvOverrides(cfg)

	if cfg.Defaults.Model != "glm-5" {
		t.Fatalf("expected env override for model, got %s", cfg.Defaults.Model)
	}
	if cfg.Pipeline.NRepo != 8 {
		t.Fatalf("expected env override for n_repo, got %d", cfg.Pipeline.NRepo)
	}
	if cfg.Pipeline.ValidatorEnabled {
		t.Fatal("expected validator disabled by env override")
	}
}

func TestValidateForModel_UnknownModel(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateForModel("not-a-real-model"); err == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestValidateForModel_MissingKey(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ValidateForModel("claude-opus-4-6"); err == nil {
		t.Fatal("expected error for missing anthropic key")
	}
}
