package providers

import "testing"

func TestLookup_CoversEverySupportedModel(t *testing.T) {
	for _, id := range ModelIDs() {
		spec, ok := Lookup(id)
		if !ok {
			t.Fatalf("Lookup(%q) missed a model ModelIDs advertises", id)
		}
		if spec.ID != id {
			t.Errorf("Lookup(%q) returned spec for %q", id, spec.ID)
		}
		if spec.KeyName == "" {
			t.Errorf("model %q has no API key name", id)
		}
		if spec.Pricing.InputPerMTok <= 0 || spec.Pricing.OutputPerMTok <= 0 {
			t.Errorf("model %q has unpriced tokens: %+v", id, spec.Pricing)
		}
		if spec.ContextWindow <= 0 {
			t.Errorf("model %q has no context window", id)
		}
	}
}

func TestLookup_UnknownModel(t *testing.T) {
	if _, ok := Lookup("nonexistent-model"); ok {
		t.Fatal("expected Lookup miss for unknown model")
	}
}

func TestModelIDs_DefaultFirst(t *testing.T) {
	ids := ModelIDs()
	if len(ids) != 5 {
		t.Fatalf("expected 5 supported models, got %d", len(ids))
	}
	if ids[0] != "claude-opus-4-6" {
		t.Errorf("expected the default model first, got %q", ids[0])
	}
}

func TestNewProvider_UnknownModel(t *testing.T) {
	if _, err := NewProvider("nonexistent-model", map[string]string{}); err == nil {
		t.Fatal("expected error for unknown model")
	}
}

func TestNewProvider_MissingAPIKey(t *testing.T) {
	if _, err := NewProvider("claude-opus-4-6", map[string]string{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

func TestNewProvider_Anthropic(t *testing.T) {
	p, err := NewProvider("claude-opus-4-6", map[string]string{"anthropic": "test-key-123"})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if p.Name() != "anthropic" {
		t.Errorf("expected provider name 'anthropic', got %q", p.Name())
	}
	if p.ModelID() != "claude-opus-4-6" {
		t.Errorf("expected model ID 'claude-opus-4-6', got %q", p.ModelID())
	}
	if p.ContextWindow() != 200000 {
		t.Errorf("expected 200000-token context window, got %d", p.ContextWindow())
	}
}

func TestNewProvider_OpenAICompatFamily(t *testing.T) {
	tests := []struct {
		modelID string
		keyName string
	}{
		{"gpt-5.2", "openai"},
		{"glm-5", "glm"},
		{"kimi-k2.5", "kimi"},
		{"minimax-m2.5", "minimax"},
	}

	for _, tt := range tests {
		p, err := NewProvider(tt.modelID, map[string]string{tt.keyName: "test-key"})
		if err != nil {
			t.Fatalf("%s: unexpected error: %s", tt.modelID, err)
		}
		if p.Name() != "openai_compat" {
			t.Errorf("%s: expected provider name 'openai_compat', got %q", tt.modelID, p.Name())
		}
		if p.ModelID() != tt.modelID {
			t.Errorf("expected model ID %q, got %q", tt.modelID, p.ModelID())
		}
	}
}

func TestKimiCarriesThinkingSwitch(t *testing.T) {
	spec, ok := Lookup("kimi-k2.5")
	if !ok {
		t.Fatal("kimi-k2.5 missing from catalog")
	}
	thinking, ok := spec.ExtraBody["thinking"].(map[string]string)
	if !ok || thinking["type"] != "disabled" {
		t.Fatalf("expected kimi-k2.5 to disable thinking via ExtraBody, got %+v", spec.ExtraBody)
	}
}

func TestPricing_Cost(t *testing.T) {
	p := Pricing{InputPerMTok: 5.0, OutputPerMTok: 25.0}
	got := p.Cost(1_000_000, 200_000)
	want := 5.0 + 5.0
	if got != want {
		t.Fatalf("Cost(1M, 200k) = %f, want %f", got, want)
	}
}
