package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/markdave123-py/guardian/internal/core"
	"github.com/markdave123-py/guardian/internal/models"
)

type GeminiLLM struct {
	client      *genai.Client
	modelName   string
	temperature float32
	maxTokens   int32
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string, temperature float64, maxTokens int) (*GeminiLLM, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiLLM{
		client:      cl,
		modelName:   modelName,
		temperature: float32(temperature),
		maxTokens:   int32(maxTokens),
	}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Complete replays history as a chat session and sends the last user turn.
func (g *GeminiLLM) Complete(ctx context.Context, systemPrompt string, history []models.Message) (string, error) {
	if len(history) == 0 {
		return "", errors.New("gemini complete: empty history")
	}
	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(g.temperature)
	if g.maxTokens > 0 {
		m.SetMaxOutputTokens(g.maxTokens)
	}
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	cs := m.StartChat()
	last := history[len(history)-1]
	for _, msg := range history[:len(history)-1] {
		cs.History = append(cs.History, &genai.Content{
			Role:  geminiRole(msg.Role),
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini generate: no candidates")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

func geminiRole(role string) string {
	if role == models.RoleAssistant {
		return "model"
	}
	return "user"
}

var _ core.CompletionProvider = (*GeminiLLM)(nil)
