package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	middleware "github.com/markdave123-py/guardian/internal/api/middlewares"
	"github.com/markdave123-py/guardian/internal/apperr"
	"github.com/markdave123-py/guardian/internal/logger"
	"github.com/markdave123-py/guardian/internal/models"
	"github.com/markdave123-py/guardian/internal/services"
)

type SessionHandler struct {
	sessions *services.SessionService
	guardian *services.GuardianService
	tokens   *middleware.SessionTokens
	log      *logger.Logger
}

func NewSessionHandler(sessions *services.SessionService, guardian *services.GuardianService, tokens *middleware.SessionTokens, log *logger.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, guardian: guardian, tokens: tokens, log: log}
}

type sessionResponse struct {
	models.Session
	Saved    *bool  `json:"saved,omitempty"`
	Token    string `json:"token,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

type createSessionRequest struct {
	Username string `json:"username"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, err, "")
		return
	}

	session, saved := h.sessions.CreateSession(r.Context(), req.Username)
	resp := sessionResponse{Session: session, Saved: &saved}

	token, err := h.tokens.Issue(session.ID)
	if err != nil {
		h.log.Error("issue session token failed", "session_id", session.ID, "error", err)
		writeError(w, err, "")
		return
	}
	resp.Token = token

	writeJSON(w, http.StatusCreated, resp)
}

// Get answers with a placeholder record when the session cannot be found,
// so a client whose create call was never persisted can keep playing.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("id"))
	}
	if id == "" {
		writeError(w, apperr.Validation("Session ID is required"), "")
		return
	}

	if s := h.sessions.GetSession(r.Context(), id); s != nil {
		writeJSON(w, http.StatusOK, sessionResponse{Session: *s})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Session: models.Session{
			ID:        id,
			Username:  models.AnonymousUsername,
			StartTime: models.NowMillis(),
		},
		Fallback: true,
	})
}

type updateSessionRequest struct {
	ID string `json:"id"`
	models.SessionPatch
}

type sessionEcho struct {
	ID string `json:"id"`
	models.SessionPatch
	Fallback bool `json:"fallback"`
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSessionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, err, "")
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		writeError(w, apperr.Validation("Session ID is required"), "")
		return
	}
	if !h.tokens.Authorized(r.Context(), req.ID) {
		writeError(w, apperr.New(apperr.KindAuth, http.StatusForbidden, "forbidden", nil), "")
		return
	}

	s, err := h.sessions.UpdateSession(r.Context(), req.ID, req.SessionPatch)
	switch {
	case err == nil && s != nil:
		writeJSON(w, http.StatusOK, sessionResponse{Session: *s})
	case err == nil, apperr.Is(err, apperr.KindNotFound), apperr.Is(err, apperr.KindStorage):
		writeJSON(w, http.StatusOK, sessionEcho{ID: req.ID, SessionPatch: req.SessionPatch, Fallback: true})
	default:
		writeError(w, err, "")
	}
}

type finalizeRequest struct {
	Username string           `json:"username"`
	Messages []models.Message `json:"messages"`
}

// Finalize rates the transcript for the session in the URL.
func (h *SessionHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if !h.tokens.Authorized(r.Context(), id) {
		writeError(w, apperr.New(apperr.KindAuth, http.StatusForbidden, "forbidden", nil), "")
		return
	}

	var req finalizeRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, err, "")
		return
	}
	if req.Messages == nil {
		writeError(w, apperr.Validation("Messages are required and must be an array"), "")
		return
	}

	res, err := h.guardian.Finalize(r.Context(), id, req.Username, req.Messages)
	if err != nil {
		if apperr.Is(err, apperr.KindParse) {
			writeJSON(w, http.StatusUnprocessableEntity, res)
			return
		}
		writeError(w, err, res.Message)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
