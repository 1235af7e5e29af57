package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Kind classifies failures where they originate so handlers and the retry
// policy can act on structure instead of sniffing error strings.
type Kind string

const (
	KindValidation  Kind = "VALIDATION_ERROR"
	KindNotFound    Kind = "NOT_FOUND"
	KindRateLimited Kind = "RATE_LIMITED"
	KindOverloaded  Kind = "OVERLOADED"
	KindNetwork     Kind = "NETWORK"
	KindInternal    Kind = "INTERNAL_ERROR"
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf resolves the kind of an arbitrary error. Errors without an explicit
// kind are classified by their transport-level signature.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}

	var ge *googleapi.Error
	if errors.As(err, &ge) {
		switch {
		case ge.Code == http.StatusTooManyRequests:
			return KindRateLimited
		case ge.Code >= 500:
			return KindOverloaded
		case ge.Code == http.StatusBadRequest:
			return KindValidation
		case ge.Code >= 400:
			// Provider-side auth or routing faults (401/403/404) are our
			// misconfiguration, not the caller's.
			return KindInternal
		}
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return KindNetwork
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}

	return KindInternal
}

// Retryable reports whether an operation failing with err is worth retrying.
// Validation and not-found failures are deterministic and never retried.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimited, KindOverloaded, KindNetwork:
		return true
	default:
		return false
	}
}

// HTTPStatus maps a kind to the status code the handler layer should emit.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
