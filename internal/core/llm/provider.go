package llm

import (
	"context"
	"fmt"

	"github.com/markdave123-py/guardian/internal/config"
	"github.com/markdave123-py/guardian/internal/core"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Completion is a CompletionProvider that holds a client needing release.
type Completion interface {
	core.CompletionProvider
	Close() error
}

// NewCompletion builds the provider named by cfg.CompletionProvider.
func NewCompletion(ctx context.Context, cfg *config.Config) (Completion, error) {
	switch cfg.CompletionProvider {
	case ProviderOpenAI, "":
		return NewOpenAILLM(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.ChatModel, cfg.ChatTemperature, cfg.ChatMaxTokens), nil
	case ProviderGemini:
		g, err := NewGeminiLLM(ctx, cfg.GeminiAPIKey, cfg.GenModel, cfg.ChatTemperature, cfg.ChatMaxTokens)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.CompletionProvider)
	}
}

func NewSpeech(cfg *config.Config) *OpenAISpeech {
	return NewOpenAISpeech(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.TTSModel, cfg.TTSVoice, cfg.TTSSpeed)
}
