package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/markdave123-py/guardian/internal/apperr"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err through the apperr taxonomy. message is the optional
// in-persona line shown to the storyteller.
func writeError(w http.ResponseWriter, err error, message string) {
	status := apperr.StatusOf(err)
	body := errorBody{Error: strings.TrimSpace(err.Error()), Message: message}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		body.Code = ae.Code
	}
	if status >= http.StatusInternalServerError || body.Error == "" {
		body.Error = http.StatusText(status)
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched when allowEmpty is set.
func decodeJSON(r *http.Request, v any, allowEmpty bool) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && allowEmpty:
		return nil
	default:
		return apperr.Validation("invalid request body: %v", err)
	}
}
