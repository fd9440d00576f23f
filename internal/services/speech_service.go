package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path"
	"strings"

	"github.com/markdave123-py/guardian/internal/apperr"
	"github.com/markdave123-py/guardian/internal/core"
	objectclient "github.com/markdave123-py/guardian/internal/core/object-client"
	"github.com/markdave123-py/guardian/internal/logger"
)

const audioContentType = "audio/mpeg"

// SpeechService synthesizes guardian lines, reading through an optional object-store cache.
type SpeechService struct {
	speech  core.SpeechProvider
	objects core.ObjectClient
	bucket  string
	variant string
	log     *logger.Logger
}

// NewSpeechService builds the service. objects may be nil to disable caching;
// variant distinguishes cache entries made with different voices or speeds.
func NewSpeechService(speech core.SpeechProvider, objects core.ObjectClient, bucket, variant string, log *logger.Logger) *SpeechService {
	return &SpeechService{speech: speech, objects: objects, bucket: bucket, variant: variant, log: log.With("component", "speech")}
}

func (s *SpeechService) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Validation("text is required")
	}

	key := s.cacheKey(text)
	if s.objects != nil {
		audio, err := s.objects.GetFile(ctx, s.bucket, key)
		switch {
		case err == nil && len(audio) > 0:
			return audio, nil
		case err != nil && !errors.Is(err, objectclient.ErrObjectNotFound):
			s.log.Warn("audio cache read failed", "key", key, "error", err)
		}
	}

	if s.speech == nil {
		return nil, apperr.Upstream(errors.New("speech service not configured"))
	}
	audio, err := s.speech.Synthesize(ctx, text)
	if err != nil {
		s.log.Error("speech synthesis failed", "error", err)
		return nil, apperr.Upstream(err)
	}

	if s.objects != nil {
		if _, err := s.objects.UploadFile(ctx, s.bucket, key, bytes.NewReader(audio), audioContentType); err != nil {
			s.log.Warn("audio cache write failed", "key", key, "error", err)
		}
	}
	return audio, nil
}

func (s *SpeechService) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(s.variant + "|" + text))
	return path.Join("tts", hex.EncodeToString(sum[:])+".mp3")
}
