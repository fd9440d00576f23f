package llm

import (
	"context"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/markdave123-py/guardian/internal/core"
)

// OpenAISpeech synthesizes mp3 audio with the OpenAI speech endpoint.
type OpenAISpeech struct {
	client *openai.Client
	model  string
	voice  string
	speed  float64
}

func NewOpenAISpeech(apiKey, baseURL, model, voice string, speed float64) *OpenAISpeech {
	return &OpenAISpeech{
		client: openai.NewClientWithConfig(openAIConfig(apiKey, baseURL)),
		model:  model,
		voice:  voice,
		speed:  speed,
	}
}

func (s *OpenAISpeech) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          s.speed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create speech: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech body: %w", err)
	}
	return audio, nil
}

// Voice identifies the audio variant for cache keys.
func (s *OpenAISpeech) Voice() string {
	return fmt.Sprintf("%s/%s/%.2f", s.model, s.voice, s.speed)
}

var _ core.SpeechProvider = (*OpenAISpeech)(nil)
