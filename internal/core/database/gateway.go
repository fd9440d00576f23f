package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/markdave123-py/guardian/internal/core"
	"github.com/markdave123-py/guardian/internal/logger"
	"github.com/markdave123-py/guardian/internal/models"
)

// Gateway is the only path from the managers to storage. Nothing it returns
// is an I/O error: failures are logged here and come back as false, nil, an
// empty slice, or one of the package sentinels.
type Gateway struct {
	store core.Store
	log   *logger.Logger
}

func NewGateway(store core.Store, log *logger.Logger) *Gateway {
	return &Gateway{store: store, log: log.With("component", "gateway", "store", store.Mode())}
}

func (g *Gateway) Mode() string { return g.store.Mode() }

func (g *Gateway) GetSession(ctx context.Context, id string) *models.Session {
	s, err := g.store.GetSession(ctx, id)
	if err != nil {
		g.log.Error("get session failed", "session_id", id, "error", err)
		return nil
	}
	return s
}

func (g *Gateway) PutSession(ctx context.Context, s *models.Session) bool {
	if s == nil {
		return false
	}
	if err := g.store.InsertSession(ctx, s); err != nil {
		g.log.Error("insert session failed", "session_id", s.ID, "error", err)
		return false
	}
	return true
}

// UpdateSession returns nil, ErrSessionNotFound, ErrSessionCompleted or ErrStorageUnavailable.
func (g *Gateway) UpdateSession(ctx context.Context, id string, patch models.SessionPatch) error {
	err := g.store.UpdateSession(ctx, id, patch)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSessionCompleted):
		g.log.Warn("session update rejected", "session_id", id, "reason", err)
		return err
	default:
		g.log.Error("update session failed", "session_id", id, "error", err)
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
}

func (g *Gateway) GetEntry(ctx context.Context, userID string) *models.Rating {
	r, err := g.store.GetEntry(ctx, userID)
	if err != nil {
		g.log.Error("get leaderboard entry failed", "user_id", userID, "error", err)
		return nil
	}
	return r
}

// UpsertEntry reports whether the write path succeeded; a kept higher score is still success.
func (g *Gateway) UpsertEntry(ctx context.Context, r *models.Rating) bool {
	if r == nil {
		return false
	}
	applied, err := g.store.UpsertIfBetter(ctx, r)
	if err != nil {
		g.log.Error("upsert leaderboard entry failed", "user_id", r.UserID, "error", err)
		return false
	}
	if !applied {
		g.log.Debug("leaderboard entry kept, submitted total not higher", "user_id", r.UserID, "total", r.Total)
	}
	return true
}

func (g *Gateway) ListEntries(ctx context.Context, limit int) []models.Rating {
	entries, err := g.store.ListEntries(ctx, limit)
	if err != nil {
		g.log.Error("list leaderboard failed", "limit", limit, "error", err)
		return []models.Rating{}
	}
	if entries == nil {
		return []models.Rating{}
	}
	return entries
}
