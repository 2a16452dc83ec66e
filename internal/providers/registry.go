package providers

import "fmt"

// Family selects which adapter implementation serves a model.
const (
	familyAnthropic  = "anthropic"
	familyOpenAILike = "openai-compatible"
)

// ModelSpec describes one supported model: which adapter family serves
// it, where, at what price, and which config key unlocks it. KeyName is
// the lookup key into the API-key map the config layer produces.
type ModelSpec struct {
	ID            string
	Family        string
	BaseURL       string
	ContextWindow int
	Pricing       Pricing
	KeyName       string

	// ExtraBody is merged into the raw request body for providers that
	// need vendor-specific switches (e.g. disabling a thinking mode).
	ExtraBody map[string]any
}

// catalog is the ordered list of supported models; the first entry is
// the default the CLI falls back to. Order here is the order `solguard`
// presents models to the user.
var catalog = []ModelSpec{
	{
		ID:            "claude-opus-4-6",
		Family:        familyAnthropic,
		BaseURL:       "https://api.anthropic.com",
		ContextWindow: 200000,
		Pricing:       Pricing{InputPerMTok: 5.0, OutputPerMTok: 25.0},
		KeyName:       "anthropic",
	},
	{
		ID:            "gpt-5.2",
		Family:        familyOpenAILike,
		BaseURL:       "https://api.openai.com/v1",
		ContextWindow: 128000,
		Pricing:       Pricing{InputPerMTok: 10.0, OutputPerMTok: 30.0},
		KeyName:       "openai",
	},
	{
		ID:            "glm-5",
		Family:        familyOpenAILike,
		BaseURL:       "https://api.z.ai/api/paas/v4/",
		ContextWindow: 128000,
		Pricing:       Pricing{InputPerMTok: 0.50, OutputPerMTok: 2.0},
		KeyName:       "glm",
	},
	{
		ID:            "kimi-k2.5",
		Family:        familyOpenAILike,
		BaseURL:       "https://api.moonshot.ai/v1",
		ContextWindow: 256000,
		Pricing:       Pricing{InputPerMTok: 0.60, OutputPerMTok: 3.0},
		KeyName:       "kimi",
		ExtraBody: map[string]any{
			"thinking": map[string]string{"type": "disabled"},
		},
	},
	{
		ID:            "minimax-m2.5",
		Family:        familyOpenAILike,
		BaseURL:       "https://api.minimax.chat/v1",
		ContextWindow: 1000000,
		Pricing:       Pricing{InputPerMTok: 0.15, OutputPerMTok: 1.20},
		KeyName:       "minimax",
	},
}

// Lookup finds a model's spec by ID.
func Lookup(modelID string) (ModelSpec, bool) {
	for _, spec := range catalog {
		if spec.ID == modelID {
			return spec, true
		}
	}
	return ModelSpec{}, false
}

// ModelIDs returns the supported model IDs in catalog order.
func ModelIDs() []string {
	ids := make([]string, len(catalog))
	for i, spec := range catalog {
		ids[i] = spec.ID
	}
	return ids
}

// NewProvider resolves a model ID to a live adapter, erroring when the
// model is unknown or its API key is missing from apiKeys.
func NewProvider(modelID string, apiKeys map[string]string) (Provider, error) {
	spec, ok := Lookup(modelID)
	if !ok {
		return nil, fmt.Errorf("providers: unknown model %q (supported: %v)", modelID, ModelIDs())
	}

	apiKey := apiKeys[spec.KeyName]
	if apiKey == "" {
		return nil, fmt.Errorf("providers: API key %q is required for model %q", spec.KeyName, modelID)
	}

	switch spec.Family {
	case familyAnthropic:
		return newAnthropicClient(apiKey, spec), nil
	case familyOpenAILike:
		return newOpenAICompatClient(apiKey, spec), nil
	default:
		return nil, fmt.Errorf("providers: model %q has unknown family %q", modelID, spec.Family)
	}
}
