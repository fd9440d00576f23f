package handlers

import "net/http"

type HealthHandler struct {
	mode string
}

func NewHealthHandler(mode string) *HealthHandler {
	return &HealthHandler{mode: mode}
}

func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "store": h.mode})
}
