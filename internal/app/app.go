// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"time"

	middleware "github.com/markdave123-py/guardian/internal/api/middlewares"
	"github.com/markdave123-py/guardian/internal/config"
	"github.com/markdave123-py/guardian/internal/core"
	db "github.com/markdave123-py/guardian/internal/core/database"
	"github.com/markdave123-py/guardian/internal/core/llm"
	objectclient "github.com/markdave123-py/guardian/internal/core/object-client"
	"github.com/markdave123-py/guardian/internal/logger"
	"github.com/markdave123-py/guardian/internal/services"
)

type App struct {
	Store      core.Store
	Completion llm.Completion
	Services   *Services
	Server     *Server
	log        *logger.Logger
}

// Services is everything the HTTP layer talks to.
type Services struct {
	Mode        string
	Sessions    *services.SessionService
	Leaderboard *services.LeaderboardService
	Guardian    *services.GuardianService
	Speech      *services.SpeechService
	Tokens      *middleware.SessionTokens
}

// Deps are the collaborators NewServices wires together. Nil Completion or
// Speech leave those features answering with upstream errors; nil Objects
// disables the audio cache.
type Deps struct {
	Store       core.Store
	Completion  core.CompletionProvider
	Speech      core.SpeechProvider
	Objects     core.ObjectClient
	VoiceConfig string
}

func NewServices(cfg *config.Config, log *logger.Logger, d Deps) *Services {
	gw := db.NewGateway(d.Store, log)
	sessions := services.NewSessionService(gw, log)
	board := services.NewLeaderboardService(gw, log, cfg.LeaderboardDefaultLimit, cfg.LeaderboardMaxLimit)
	return &Services{
		Mode:        gw.Mode(),
		Sessions:    sessions,
		Leaderboard: board,
		Guardian:    services.NewGuardianService(d.Completion, sessions, board, log),
		Speech:      services.NewSpeechService(d.Speech, d.Objects, cfg.BucketName, d.VoiceConfig, log),
		Tokens:      middleware.NewSessionTokens(cfg.SessionTokenSecret),
	}
}

func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	store, err := db.NewStore(appCtx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the store: %w", err)
	}
	log.Info("store ready", "mode", store.Mode())

	completion, err := llm.NewCompletion(appCtx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("couldn't initialize the completion provider: %w", err)
	}
	if cfg.OpenAIAPIKey == "" && cfg.CompletionProvider != llm.ProviderGemini {
		log.Warn("OPENAI_API_KEY not set, completion calls will fail")
	}

	speech := llm.NewSpeech(cfg)

	deps := Deps{
		Store:       store,
		Completion:  completion,
		Speech:      speech,
		VoiceConfig: speech.Voice(),
	}
	s3, err := objectclient.NewS3Client(appCtx, cfg)
	switch {
	case err != nil:
		log.Warn("audio cache disabled", "error", err)
	case s3 != nil:
		deps.Objects = s3
		log.Info("audio cache enabled", "bucket", cfg.BucketName)
	}

	svcs := NewServices(cfg, log, deps)
	if !svcs.Tokens.Enabled() {
		log.Warn("SESSION_TOKEN_SECRET not set, session writes are unauthenticated")
	}

	return &App{
		Store:      store,
		Completion: completion,
		Services:   svcs,
		Server:     NewServer(cfg, log, svcs),
		log:        log,
	}, nil
}

func (a *App) Close() {
	if a.Completion != nil {
		if err := a.Completion.Close(); err != nil {
			a.log.Warn("close completion provider", "error", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.log.Warn("close store", "error", err)
		}
	}
}
