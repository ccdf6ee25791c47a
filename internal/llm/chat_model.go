package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/FinCortex/config"
)

type Role string

const (
	RoleAnalyst    Role = "analyst"
	RoleSummarizer Role = "summarizer"
	RoleLight      Role = "light"
)

const defaultDeepSeekModel = "deepseek-chat"

// ModelName resolves the configured model for a role.
func ModelName(cfg *config.Config, role Role) string {
	var name string
	switch role {
	case RoleAnalyst:
		name = cfg.AnalystLLM
	case RoleSummarizer:
		name = cfg.SummarizerLLM
	default:
		name = cfg.LightLLM
	}
	if name == "" && cfg.LLMProvider == config.ProviderDeepSeek {
		return defaultDeepSeekModel
	}
	return name
}

// NewChatModel builds the chat model serving role. Missing credentials are
// reported as config.ErrMissingCredentials.
func NewChatModel(ctx context.Context, cfg *config.Config, role Role) (model.BaseChatModel, error) {
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}

	name := ModelName(cfg, role)
	switch cfg.LLMProvider {
	case config.ProviderDeepSeek:
		// an untouched OpenAI default would point DeepSeek at the wrong host
		baseURL := cfg.BackendURL
		if baseURL == config.DefaultOpenAIBaseURL {
			baseURL = ""
		}
		cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    cfg.DeepSeekAPIKey,
			BaseURL:   baseURL,
			Model:     name,
			MaxTokens: cfg.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("create deepseek model %s: %w", name, err)
		}
		return cm, nil
	default:
		maxTokens := cfg.MaxTokens
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.BackendURL,
			APIKey:    cfg.OpenAIAPIKey,
			Model:     name,
			MaxTokens: &maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("create openai model %s: %w", name, err)
		}
		return cm, nil
	}
}
