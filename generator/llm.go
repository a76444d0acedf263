package generator

import (
	"context"
	"fmt"

	"wp_article_publisher/config"
)

// LLMClient 抽象大模型客户端，便于替换/Mock。
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int64
}

// NewLLM picks the client for cfg.Provider.
func NewLLM(cfg config.LLMConfig) (LLMClient, error) {
	settings := &LLMSettings{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Temperature: config.DefaultTemperature,
		MaxTokens:   cfg.MaxTokens,
	}
	if cfg.Temperature != nil {
		settings.Temperature = *cfg.Temperature
	}
	switch cfg.Provider {
	case "openai":
		return NewOpenAILLMFromConfig(settings)
	case "deepseek":
		// DeepSeek exposes an OpenAI-compatible API behind its own base_url.
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return NewOpenAILLMFromConfig(settings)
	case "anthropic":
		return NewAnthropicLLMFromConfig(settings)
	case "mock":
		return MockLLM{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}
