package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/markdave123-py/guardian/internal/apperr"
	db "github.com/markdave123-py/guardian/internal/core/database"
	"github.com/markdave123-py/guardian/internal/logger"
	"github.com/markdave123-py/guardian/internal/models"
)

type SessionService struct {
	gw  *db.Gateway
	log *logger.Logger
}

func NewSessionService(gw *db.Gateway, log *logger.Logger) *SessionService {
	return &SessionService{gw: gw, log: log.With("component", "sessions")}
}

// CreateSession always returns a usable Session. saved is false when the
// record could not be written; the caller keeps going with the local copy.
func (s *SessionService) CreateSession(ctx context.Context, username string) (models.Session, bool) {
	session := models.Session{
		ID:        uuid.NewString(),
		Username:  displayName(username),
		StartTime: models.NowMillis(),
	}
	saved := s.gw.PutSession(ctx, &session)
	if !saved {
		s.log.Warn("session not persisted, continuing with local copy", "session_id", session.ID)
	}
	return session, saved
}

// GetSession returns nil when the id is unknown or the lookup failed.
func (s *SessionService) GetSession(ctx context.Context, id string) *models.Session {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return s.gw.GetSession(ctx, id)
}

// UpdateSession merges patch onto the stored session and returns the stored
// result. A nil session with a nil error means the write landed but the
// read-back did not.
func (s *SessionService) UpdateSession(ctx context.Context, id string, patch models.SessionPatch) (*models.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Validation("session id is required")
	}
	patch, err := s.normalizePatch(patch)
	if err != nil {
		return nil, err
	}

	switch err := s.gw.UpdateSession(ctx, id, patch); {
	case err == nil:
	case errors.Is(err, db.ErrSessionNotFound):
		return nil, apperr.NotFound("%w", err)
	case errors.Is(err, db.ErrSessionCompleted):
		return nil, apperr.Conflict(err)
	default:
		return nil, apperr.Storage(err)
	}
	return s.gw.GetSession(ctx, id), nil
}

func (s *SessionService) normalizePatch(p models.SessionPatch) (models.SessionPatch, error) {
	if p.Empty() {
		return p, apperr.Validation("nothing to update")
	}
	completing := p.IsCompleted != nil && *p.IsCompleted
	if !completing && (p.EndTime != nil || p.Rating != nil) {
		return p, apperr.Validation("endTime and rating can only be set when completing the session")
	}
	if p.Username != nil {
		name := displayName(*p.Username)
		p.Username = &name
	}
	if completing && p.EndTime == nil {
		now := models.NowMillis()
		p.EndTime = &now
	}
	// An attached rating is stored as given only when it is already
	// consistent: worthy is rederived from total, a zero timestamp becomes
	// now, and a total that is not the sum of the axes is rejected.
	if p.Rating != nil {
		r, err := normalizeRating(p.Rating.Input())
		if err != nil {
			return p, err
		}
		p.Rating = &r
	}
	return p, nil
}

func displayName(username string) string {
	if name := strings.TrimSpace(username); name != "" {
		return name
	}
	return models.AnonymousUsername
}
