package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/markdave123-py/guardian/internal/apperr"
	db "github.com/markdave123-py/guardian/internal/core/database"
	"github.com/markdave123-py/guardian/internal/logger"
	"github.com/markdave123-py/guardian/internal/models"
)

var errLeaderboardWrite = errors.New("leaderboard write failed")

type LeaderboardService struct {
	gw           *db.Gateway
	log          *logger.Logger
	defaultLimit int
	maxLimit     int
}

func NewLeaderboardService(gw *db.Gateway, log *logger.Logger, defaultLimit, maxLimit int) *LeaderboardService {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &LeaderboardService{
		gw:           gw,
		log:          log.With("component", "leaderboard"),
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// AddEntry validates in and merges it by best score: the stored entry for
// in.UserID is replaced only by a strictly higher total.
func (s *LeaderboardService) AddEntry(ctx context.Context, in models.RatingInput) (models.Rating, error) {
	r, err := normalizeRating(in)
	if err != nil {
		return models.Rating{}, err
	}
	if in.Worthy != "" && in.Worthy != r.Worthy {
		s.log.Info("worthy verdict normalized", "user_id", r.UserID, "submitted", in.Worthy, "stored", r.Worthy)
	}
	if !s.gw.UpsertEntry(ctx, &r) {
		return r, apperr.Storage(errLeaderboardWrite)
	}
	return r, nil
}

// GetLeaderboard returns at most limit entries ranked 1..n. Never nil.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, limit int) []models.LeaderboardEntry {
	entries := s.gw.ListEntries(ctx, s.clamp(limit))
	out := make([]models.LeaderboardEntry, len(entries))
	for i, r := range entries {
		out[i] = models.LeaderboardEntry{Rating: r, Rank: i + 1}
	}
	return out
}

// GetUserEntry looks for userID inside the same page GetLeaderboard(limit)
// would return, so the rank matches what the board shows. A user with no
// entry at all is answered without reading the page.
func (s *LeaderboardService) GetUserEntry(ctx context.Context, userID string, limit int) *models.LeaderboardEntry {
	userID = strings.TrimSpace(userID)
	if userID == "" || s.gw.GetEntry(ctx, userID) == nil {
		return nil
	}
	for _, e := range s.GetLeaderboard(ctx, limit) {
		if e.UserID == userID {
			return &e
		}
	}
	return nil
}

func (s *LeaderboardService) clamp(limit int) int {
	switch {
	case limit <= 0:
		return s.defaultLimit
	case limit > s.maxLimit:
		return s.maxLimit
	default:
		return limit
	}
}

// normalizeRating turns a submission into a storable Rating. Worthy is
// always derived from the total; timestamp defaults to now.
func normalizeRating(in models.RatingInput) (models.Rating, error) {
	var missing []string
	if strings.TrimSpace(in.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(in.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(in.StoryExcerpt) == "" {
		missing = append(missing, "storyExcerpt")
	}
	if in.Authenticity == nil {
		missing = append(missing, "authenticity")
	}
	if in.EmotionalImpact == nil {
		missing = append(missing, "emotionalImpact")
	}
	if len(missing) > 0 {
		return models.Rating{}, apperr.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}

	a, e := *in.Authenticity, *in.EmotionalImpact
	if a < 0 || a > models.MaxAxisScore {
		return models.Rating{}, apperr.Validation("authenticity must be between 0 and %d", models.MaxAxisScore)
	}
	if e < 0 || e > models.MaxAxisScore {
		return models.Rating{}, apperr.Validation("emotionalImpact must be between 0 and %d", models.MaxAxisScore)
	}
	total := a + e
	if in.Total != nil && *in.Total != total {
		return models.Rating{}, apperr.Validation("total %d does not equal authenticity + emotionalImpact (%d)", *in.Total, total)
	}
	if in.Worthy != "" {
		if _, ok := models.ParseWorthy(string(in.Worthy)); !ok {
			return models.Rating{}, apperr.Validation("worthy must be YES, MAYBE or NO")
		}
	}

	ts := models.NowMillis()
	if in.Timestamp != nil && *in.Timestamp > 0 {
		ts = *in.Timestamp
	}
	return models.Rating{
		UserID:          strings.TrimSpace(in.UserID),
		Username:        strings.TrimSpace(in.Username),
		StoryExcerpt:    clampExcerpt(in.StoryExcerpt),
		Authenticity:    a,
		EmotionalImpact: e,
		Total:           total,
		Worthy:          models.WorthyFor(total),
		Timestamp:       ts,
	}, nil
}

// clampExcerpt leaves an already-truncated excerpt alone and bounds anything longer.
func clampExcerpt(s string) string {
	s = strings.TrimSpace(s)
	trimmed := strings.TrimSuffix(s, models.ExcerptSuffix)
	if trimmed != s && utf8.RuneCountInString(trimmed) <= models.ExcerptRunes {
		return s
	}
	return models.Excerpt(s)
}
