package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindParse      Kind = "parse"
	KindStorage    Kind = "storage"
	KindUpstream   Kind = "upstream"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindAuth       Kind = "unauthorized"
)

// Error is the typed failure returned by services to the HTTP layer.
type Error struct {
	Kind   Kind
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("%s error (%d)", e.Kind, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, status int, code string, err error) *Error {
	return &Error{Kind: kind, Status: status, Code: code, Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, http.StatusBadRequest, "invalid_request", fmt.Errorf(format, args...))
}

func Parse(err error) *Error {
	return New(KindParse, http.StatusUnprocessableEntity, "rating_unparseable", err)
}

func Storage(err error) *Error {
	return New(KindStorage, http.StatusServiceUnavailable, "storage_unavailable", err)
}

func Upstream(err error) *Error {
	return New(KindUpstream, http.StatusBadGateway, "upstream_failed", err)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, http.StatusNotFound, "not_found", fmt.Errorf(format, args...))
}

func Conflict(err error) *Error {
	return New(KindConflict, http.StatusConflict, "conflict", err)
}

func Unauthorized(format string, args ...any) *Error {
	return New(KindAuth, http.StatusUnauthorized, "unauthorized", fmt.Errorf(format, args...))
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusOf maps err to an HTTP status, defaulting to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}
