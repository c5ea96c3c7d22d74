package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ProviderConfig defines how the engine connects to an Anthropic-compatible
// messages endpoint, plus the optional budget and fallback behavior
// described in the run's engine settings.
type ProviderConfig struct {
	// APIBaseURL is the base URL for the streaming messages endpoint.
	APIBaseURL string `json:"api_base_url"`
	// APIKey is sent as the x-api-key header.
	APIKey string `json:"api_key"`
	// DefaultModel is used when no caller override is provided.
	DefaultModel string `json:"default_model"`
	// FallbackModel, if set, is tried once after DefaultModel fails
	// permanently, before the Stop hook runs.
	FallbackModel string `json:"fallback_model"`
	// ModelAliases maps friendly names to provider model ids.
	ModelAliases map[string]string `json:"model_aliases"`
	// Pricing holds per-model pricing metadata for budget enforcement.
	Pricing map[string]ModelPricing `json:"pricing"`
	// MaxBudgetUSD caps the estimated spend for one run; zero disables it.
	MaxBudgetUSD float64 `json:"max_budget_usd"`
}

// ModelPricing defines per-model pricing for budget enforcement.
type ModelPricing struct {
	// InputPer1M is the cost per 1M input tokens.
	InputPer1M float64 `json:"input_per_1m"`
	// OutputPer1M is the cost per 1M output tokens.
	OutputPer1M float64 `json:"output_per_1m"`
}

var (
	// ErrProviderConfigMissing is returned when the config file does not exist.
	ErrProviderConfigMissing = errors.New("provider config missing")
	// ErrProviderConfigInvalid is returned when required fields are missing.
	ErrProviderConfigInvalid = errors.New("provider config invalid")
)

// ProviderConfigPath returns the default provider config path.
func ProviderConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".turnengine", "config.json"), nil
}

// LoadProviderConfig reads and validates the provider config.
func LoadProviderConfig(path string) (*ProviderConfig, error) {
	if path == "" {
		var err error
		path, err = ProviderConfigPath()
		if err != nil {
			return nil, err
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrProviderConfigMissing
		}
		return nil, fmt.Errorf("read provider config: %w", err)
	}

	var cfg ProviderConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse provider config: %w", err)
	}

	if cfg.APIBaseURL == "" || cfg.APIKey == "" || cfg.DefaultModel == "" {
		return nil, ErrProviderConfigInvalid
	}

	if cfg.ModelAliases == nil {
		cfg.ModelAliases = make(map[string]string)
	}
	if cfg.Pricing == nil {
		cfg.Pricing = make(map[string]ModelPricing)
	}

	return &cfg, nil
}

// ResolveModel returns the resolved model for the run: an explicit
// override takes precedence over the configured default, and either may
// be a friendly alias.
func ResolveModel(cfg *ProviderConfig, override string) string {
	if override != "" {
		return aliasModel(cfg, override)
	}
	return aliasModel(cfg, cfg.DefaultModel)
}

// aliasModel resolves an alias to a provider model name.
func aliasModel(cfg *ProviderConfig, name string) string {
	if cfg == nil {
		return name
	}
	if aliased, ok := cfg.ModelAliases[name]; ok {
		return aliased
	}
	return name
}

// EstimateCost computes the USD cost of usage against the configured
// per-model pricing table. A model with no pricing entry costs nothing.
func EstimateCost(model string, inputTokens, outputTokens int, pricing map[string]ModelPricing) float64 {
	price, ok := pricing[model]
	if !ok {
		return 0
	}
	input := float64(inputTokens) / 1_000_000
	output := float64(outputTokens) / 1_000_000
	return input*price.InputPer1M + output*price.OutputPer1M
}
