// Package errs defines the error kinds the service layer returns and the
// request boundary maps to response codes.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the request boundary.
type Kind int

const (
	// Internal is an invariant violation the service did not expect. It is
	// the zero value so unclassified errors fall through to a 500.
	Internal Kind = iota
	// NotFound means a referenced id or parent does not exist, or a
	// mutation affected zero rows after its existence check passed.
	NotFound
	// Conflict means a uniqueness or already-exists invariant would be
	// violated.
	Conflict
	// BadRequest means structurally malformed input: a blank key, a
	// self-relation, an unparseable enum value.
	BadRequest
	// Forbidden means an authorization check failed.
	Forbidden
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case BadRequest:
		return "bad_request"
	case Forbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// E is a kinded error. Message is safe to show to API callers.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *E) Unwrap() error { return e.Err }

// New returns an error of the given kind.
func New(kind Kind, msg string) error {
	return &E{Kind: kind, Message: msg}
}

// Wrap annotates err with a kind and message, keeping err on the chain.
func Wrap(kind Kind, err error, msg string) error {
	return &E{Kind: kind, Message: msg, Err: err}
}

func NotFoundf(format string, a ...any) error {
	return &E{Kind: NotFound, Message: fmt.Sprintf(format, a...)}
}

func Conflictf(format string, a ...any) error {
	return &E{Kind: Conflict, Message: fmt.Sprintf(format, a...)}
}

func BadRequestf(format string, a ...any) error {
	return &E{Kind: BadRequest, Message: fmt.Sprintf(format, a...)}
}

func Forbiddenf(format string, a ...any) error {
	return &E{Kind: Forbidden, Message: fmt.Sprintf(format, a...)}
}

func Internalf(format string, a ...any) error {
	return &E{Kind: Internal, Message: fmt.Sprintf(format, a...)}
}

// KindOf walks the error chain and returns the first kind found. Errors
// without a kind are Internal.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the caller-safe message for err. Internal errors are
// masked so driver detail never leaves the process.
func Message(err error) string {
	var e *E
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Message
	}
	return "internal server error"
}

// HTTPStatus maps an error kind to the response code the boundary writes.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case BadRequest:
		return http.StatusBadRequest
	case Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
