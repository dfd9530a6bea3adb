package llm

import (
	"errors"

	"github.com/vinodsharma/lg-deepresearch-agent/internal/config"
	"github.com/vinodsharma/lg-deepresearch-agent/internal/log"
)

// ModeMock selects the mock model through AGENT_MODE.
const ModeMock = "MOCK"

// ErrMissingAPIKey is returned when no OpenRouter key is configured.
var ErrMissingAPIKey = errors.New("OPENROUTER_API_KEY environment variable not set")

// NewChatModel creates the chat model selected by the configuration.
func NewChatModel(cfg *config.Config) (ChatModel, error) {
	if cfg.AgentMode == ModeMock {
		log.Infof("AGENT_MODE=MOCK detected, using mock chat model")
		return NewMockClient(), nil
	}
	if cfg.OpenRouterAPIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return NewClient(Options{
		APIKey:      cfg.OpenRouterAPIKey,
		BaseURL:     cfg.OpenRouterBaseURL,
		Model:       cfg.ModelName,
		Temperature: cfg.ModelTemperature,
		MaxTokens:   cfg.ModelMaxTokens,
		Reasoning:   cfg.ModelReasoning,
	}), nil
}
