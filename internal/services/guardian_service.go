package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/guardian/internal/apperr"
	"github.com/markdave123-py/guardian/internal/core"
	"github.com/markdave123-py/guardian/internal/core/rating"
	"github.com/markdave123-py/guardian/internal/logger"
	"github.com/markdave123-py/guardian/internal/models"
)

// GuardianService drives the persona conversation and the end-of-session rating.
type GuardianService struct {
	llm         core.CompletionProvider
	sessions    *SessionService
	leaderboard *LeaderboardService
	log         *logger.Logger
}

func NewGuardianService(llm core.CompletionProvider, sessions *SessionService, leaderboard *LeaderboardService, log *logger.Logger) *GuardianService {
	return &GuardianService{
		llm:         llm,
		sessions:    sessions,
		leaderboard: leaderboard,
		log:         log.With("component", "guardian"),
	}
}

// FinalizeResult is what the storyteller sees once time runs out.
type FinalizeResult struct {
	Rating           *models.Rating `json:"rating"`
	Assessment       string         `json:"assessment"`
	Verdict          string         `json:"verdict"`
	Message          string         `json:"message"`
	LeaderboardSaved bool           `json:"leaderboardSaved"`
	SessionSaved     bool           `json:"sessionSaved"`
}

// Reply returns the guardian's next in-character turn.
func (g *GuardianService) Reply(ctx context.Context, history []models.Message, storyText string) (string, error) {
	return g.complete(ctx, PersonaPrompt(storyText), history)
}

// Rate returns the raw rating text for storyText without persisting anything.
func (g *GuardianService) Rate(ctx context.Context, history []models.Message, storyText string) (string, error) {
	return g.complete(ctx, RatingPrompt(storyText), history)
}

func (g *GuardianService) complete(ctx context.Context, system string, history []models.Message) (string, error) {
	if g.llm == nil {
		return "", apperr.Upstream(errors.New("completion service not configured"))
	}
	out, err := g.llm.Complete(ctx, system, history)
	if err != nil {
		g.log.Error("completion failed", "error", err)
		return "", apperr.Upstream(err)
	}
	return out, nil
}

// Finalize rates the transcript, then records the rating on the leaderboard
// and completes the session concurrently. When the rating text cannot be
// parsed the session is still completed, without a rating.
func (g *GuardianService) Finalize(ctx context.Context, sessionID, username string, history []models.Message) (FinalizeResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return FinalizeResult{}, apperr.Validation("session id is required")
	}
	story, firstStory := userStory(history)
	if story == "" {
		return FinalizeResult{}, apperr.Validation("no story provided")
	}
	username = g.resolveUsername(ctx, sessionID, username)

	raw, err := g.Rate(ctx, history, story)
	if err != nil {
		return FinalizeResult{Message: EvaluationFailedMessage}, err
	}

	res, err := rating.Parse(raw)
	if err == nil && res.Total != res.Authenticity+res.EmotionalImpact {
		err = fmt.Errorf("%w: total %d does not equal %d + %d", rating.ErrMalformed, res.Total, res.Authenticity, res.EmotionalImpact)
	}
	if err != nil {
		g.log.Warn("rating response unparseable", "session_id", sessionID, "error", err)
		out := FinalizeResult{Message: UnparseableRatingMsg}
		done := true
		_, uerr := g.sessions.UpdateSession(ctx, sessionID, models.SessionPatch{IsCompleted: &done})
		out.SessionSaved = uerr == nil
		return out, apperr.Parse(err)
	}

	authenticity, impact, total := res.Authenticity, res.EmotionalImpact, res.Total
	r, err := normalizeRating(models.RatingInput{
		UserID:          sessionID,
		Username:        username,
		StoryExcerpt:    models.Excerpt(firstStory),
		Authenticity:    &authenticity,
		EmotionalImpact: &impact,
		Total:           &total,
		Worthy:          res.Worthy,
	})
	if err != nil {
		return FinalizeResult{Message: UnparseableRatingMsg}, apperr.Parse(err)
	}

	out := FinalizeResult{
		Rating:     &r,
		Assessment: res.Assessment,
		Verdict:    rating.Verdict(r.Worthy),
		Message: rating.Summary(rating.Result{
			Assessment:      res.Assessment,
			Authenticity:    r.Authenticity,
			EmotionalImpact: r.EmotionalImpact,
			Total:           r.Total,
			Worthy:          r.Worthy,
		}),
	}

	var eg errgroup.Group
	eg.Go(func() error {
		if _, err := g.leaderboard.AddEntry(ctx, r.Input()); err != nil {
			return fmt.Errorf("leaderboard: %w", err)
		}
		out.LeaderboardSaved = true
		return nil
	})
	eg.Go(func() error {
		done, end, attached := true, r.Timestamp, r
		if _, err := g.sessions.UpdateSession(ctx, sessionID, models.SessionPatch{
			IsCompleted: &done,
			EndTime:     &end,
			Rating:      &attached,
		}); err != nil {
			return fmt.Errorf("session: %w", err)
		}
		out.SessionSaved = true
		return nil
	})
	if err := eg.Wait(); err != nil {
		g.log.Warn("finalize persisted partially", "session_id", sessionID,
			"leaderboard_saved", out.LeaderboardSaved, "session_saved", out.SessionSaved, "error", err)
	}
	return out, nil
}

func (g *GuardianService) resolveUsername(ctx context.Context, sessionID, username string) string {
	if name := strings.TrimSpace(username); name != "" {
		return name
	}
	if s := g.sessions.GetSession(ctx, sessionID); s != nil && s.Username != "" {
		return s.Username
	}
	return models.AnonymousUsername
}

// userStory joins every user turn with blank lines and also returns the first one.
func userStory(history []models.Message) (story, first string) {
	var parts []string
	for _, m := range history {
		if m.Role != models.RoleUser {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		parts = append(parts, content)
	}
	if len(parts) == 0 {
		return "", ""
	}
	return strings.Join(parts, "\n\n"), parts[0]
}
