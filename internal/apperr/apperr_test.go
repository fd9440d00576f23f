package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := Parse(errors.New("missing TOTAL"))
	wrapped := fmt.Errorf("finalize: %w", base)

	if !Is(wrapped, KindParse) {
		t.Fatalf("want parse kind, got=%q", KindOf(wrapped))
	}
	if StatusOf(wrapped) != http.StatusUnprocessableEntity {
		t.Fatalf("status: want=422 got=%d", StatusOf(wrapped))
	}
	if wrapped.Error() != "finalize: missing TOTAL" {
		t.Fatalf("message: got=%q", wrapped.Error())
	}
}

func TestStatusOfPlainError(t *testing.T) {
	if got := StatusOf(errors.New("boom")); got != http.StatusInternalServerError {
		t.Fatalf("status: want=500 got=%d", got)
	}
	if Is(nil, KindValidation) {
		t.Fatalf("nil error carries no kind")
	}
}
