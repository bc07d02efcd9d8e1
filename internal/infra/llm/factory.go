package llm

import (
	"fmt"
	"time"

	"github.com/fleethealth/api/internal/config"
)

// NewProvider creates an LLM provider based on the analysis configuration.
func NewProvider(cfg config.AnalysisConfig) (Provider, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	switch cfg.Provider {
	case "claude":
		return NewClaudeProvider(ClaudeConfig{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.Model,
			Timeout: timeout,
		})
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.Model,
			Timeout: timeout,
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidProvider, cfg.Provider)
	}
}
