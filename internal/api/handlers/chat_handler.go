package handlers

import (
	"net/http"

	"github.com/markdave123-py/guardian/internal/apperr"
	"github.com/markdave123-py/guardian/internal/logger"
	"github.com/markdave123-py/guardian/internal/models"
	"github.com/markdave123-py/guardian/internal/services"
)

type ChatHandler struct {
	guardian *services.GuardianService
	log      *logger.Logger
}

func NewChatHandler(guardian *services.GuardianService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{guardian: guardian, log: log}
}

type ChatRequest struct {
	Messages        []models.Message `json:"messages"`
	StoryText       string           `json:"storyText"`
	IsRatingRequest bool             `json:"isRatingRequest"`
}

type ChatResponse struct {
	Message string `json:"message"`
	Role    string `json:"role"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, err, "")
		return
	}
	if req.Messages == nil {
		writeError(w, apperr.Validation("Messages are required and must be an array"), "")
		return
	}

	var (
		answer string
		err    error
	)
	if req.IsRatingRequest {
		answer, err = h.guardian.Rate(r.Context(), req.Messages, req.StoryText)
	} else {
		answer, err = h.guardian.Reply(r.Context(), req.Messages, req.StoryText)
	}
	if err != nil {
		writeError(w, err, services.MalfunctionMessage)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Message: answer, Role: models.RoleAssistant})
}
