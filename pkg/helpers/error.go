// Package helpers holds the broker's tagged error type and its HTTP status
// mapping.
package helpers

import (
	"fmt"
	"net/http"

	"github.com/moogar0880/problems"
)

// Kind enumerates the error kinds named in spec.md §7. Startup kinds
// (ConfigInvalid, KeyLoadFailed, StoreUnavailable) abort the process;
// request kinds produce an HTTP error response.
type Kind string

const (
	ConfigInvalid    Kind = "ConfigInvalid"
	KeyLoadFailed    Kind = "KeyLoadFailed"
	StoreUnavailable Kind = "StoreUnavailable"
	BadRequest       Kind = "BadRequest"
	NotFound         Kind = "NotFound"
	Mismatch         Kind = "Mismatch"
	ProviderMismatch Kind = "ProviderMismatch"
	InvalidIdToken   Kind = "InvalidIdToken"
	UpstreamFailure  Kind = "UpstreamFailure"
	EmailSendFailure Kind = "EmailSendFailure"
	// InternalError covers failures outside the named kinds: panics
	// recovered by the crash middleware, random-source and signing
	// failures, and any error NewErrorFromError receives untagged.
	InternalError Kind = "InternalError"
)

// Error is the broker's single tagged error type, fusing I/O, JSON, and
// protocol-verification failures into one variant carrying a Kind.
type Error struct {
	Title Kind `json:"title"`
	Err   any  `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Title, e.Err)
	}
	return string(e.Title)
}

// Unwrap returns Err when it holds an error value. Wrap and
// NewErrorFromError keep only the cause's message string, so errors built
// by them unwrap to nil.
func (e *Error) Unwrap() error {
	if err, ok := e.Err.(error); ok {
		return err
	}
	return nil
}

// New creates an Error with no wrapped cause.
func New(kind Kind) *Error {
	return &Error{Title: kind}
}

// Wrap creates an Error wrapping a cause.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return New(kind)
	}
	return &Error{Title: kind, Err: err.Error()}
}

// NewErrorFromError normalizes any error into an *Error, passing one
// through unchanged and otherwise tagging it InternalError.
func NewErrorFromError(err error) *Error {
	if err == nil {
		return nil
	}
	if brokerErr, ok := err.(*Error); ok {
		return brokerErr
	}
	return &Error{Title: InternalError, Err: err.Error()}
}

// ErrorResponse is the JSON body rendered for request-scoped failures.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// StatusCode maps an Error's Kind to an HTTP status code.
func StatusCode(err error) int {
	brokerErr, ok := err.(*Error)
	if !ok {
		return http.StatusInternalServerError
	}

	switch brokerErr.Title {
	case BadRequest, Mismatch, ProviderMismatch, InvalidIdToken:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case UpstreamFailure:
		return http.StatusBadGateway
	case EmailSendFailure, ConfigInvalid, KeyLoadFailed, StoreUnavailable:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Problem404 is the RFC 7807 problem-details body for unmatched routes.
func Problem404() *problems.Problem {
	return problems.NewStatusProblem(http.StatusNotFound)
}
