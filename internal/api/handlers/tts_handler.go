package handlers

import (
	"net/http"
	"strconv"

	"github.com/markdave123-py/guardian/internal/logger"
	"github.com/markdave123-py/guardian/internal/services"
)

type TTSHandler struct {
	speech *services.SpeechService
	log    *logger.Logger
}

func NewTTSHandler(speech *services.SpeechService, log *logger.Logger) *TTSHandler {
	return &TTSHandler{speech: speech, log: log}
}

type ttsRequest struct {
	Text string `json:"text"`
}

func (h *TTSHandler) Speak(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, err, "")
		return
	}

	audio, err := h.speech.Synthesize(r.Context(), req.Text)
	if err != nil {
		writeError(w, err, "Failed to generate speech")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		h.log.Warn("write audio response failed", "error", err)
	}
}
