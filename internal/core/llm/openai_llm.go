package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/markdave123-py/guardian/internal/core"
	"github.com/markdave123-py/guardian/internal/models"
)

type OpenAILLM struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewOpenAILLM(apiKey, baseURL, model string, temperature float64, maxTokens int) *OpenAILLM {
	return &OpenAILLM{
		client:      openai.NewClientWithConfig(openAIConfig(apiKey, baseURL)),
		model:       model,
		temperature: float32(temperature),
		maxTokens:   maxTokens,
	}
}

func openAIConfig(apiKey, baseURL string) openai.ClientConfig {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return config
}

func (c *OpenAILLM) Complete(ctx context.Context, systemPrompt string, history []models.Message) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAILLM) Close() error { return nil }

var _ core.CompletionProvider = (*OpenAILLM)(nil)
