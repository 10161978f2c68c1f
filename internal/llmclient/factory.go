// internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/api/schemas"
	"github.com/xkilldash9x/webpilot-cli/internal/config"
)

// NewClient is a factory function that creates an LLMClient based on the configuration.
func NewClient(cfg config.AgentConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	provider := cfg.LLM.Provider

	// Using constants defined in config package to avoid magic strings.
	switch provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg.LLM, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", provider, config.ProviderGemini)
	}
}
