package core

import (
	"context"

	"github.com/markdave123-py/guardian/internal/models"
)

// CompletionProvider produces the next assistant message for a transcript.
type CompletionProvider interface {
	Complete(ctx context.Context, systemPrompt string, history []models.Message) (string, error)
}

// SpeechProvider turns text into encoded audio (mp3).
type SpeechProvider interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
