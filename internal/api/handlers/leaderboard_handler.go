package handlers

import (
	"net/http"
	"strconv"
	"strings"

	middleware "github.com/markdave123-py/guardian/internal/api/middlewares"
	"github.com/markdave123-py/guardian/internal/apperr"
	"github.com/markdave123-py/guardian/internal/logger"
	"github.com/markdave123-py/guardian/internal/models"
	"github.com/markdave123-py/guardian/internal/services"
)

type LeaderboardHandler struct {
	board  *services.LeaderboardService
	tokens *middleware.SessionTokens
	log    *logger.Logger
}

func NewLeaderboardHandler(board *services.LeaderboardService, tokens *middleware.SessionTokens, log *logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, tokens: tokens, log: log}
}

// Submit stores a rating. A storage failure is still a 201 with success=false;
// the storyteller has already seen their verdict.
func (h *LeaderboardHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var in models.RatingInput
	if err := decodeJSON(r, &in, false); err != nil {
		writeError(w, err, "")
		return
	}
	if !h.tokens.Authorized(r.Context(), strings.TrimSpace(in.UserID)) {
		writeError(w, apperr.New(apperr.KindAuth, http.StatusForbidden, "forbidden", nil), "")
		return
	}

	_, err := h.board.AddEntry(r.Context(), in)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]bool{"success": true})
	case apperr.Is(err, apperr.KindStorage):
		writeJSON(w, http.StatusCreated, map[string]bool{"success": false})
	default:
		writeError(w, err, "")
	}
}

// List returns the ranked page, or a single entry (or null) when userId is given.
func (h *LeaderboardHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil {
		limit = 0
	}

	if userID := strings.TrimSpace(q.Get("userId")); userID != "" {
		writeJSON(w, http.StatusOK, h.board.GetUserEntry(r.Context(), userID, limit))
		return
	}
	writeJSON(w, http.StatusOK, h.board.GetLeaderboard(r.Context(), limit))
}
