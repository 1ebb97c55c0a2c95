package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of domain failure.
type Code string

const (
	CodeInvalidTransition    Code = "INVALID_TRANSITION"
	CodeInvalidInput         Code = "INVALID_INPUT"
	CodeNotAvailable         Code = "NOT_AVAILABLE"
	CodeNotExported          Code = "NOT_EXPORTED"
	CodeHistoryInconsistency Code = "HISTORY_INCONSISTENCY"
	CodeDuplicateInCart      Code = "DUPLICATE_IN_CART"
	CodeNotFound             Code = "NOT_FOUND"
	CodeConflict             Code = "CONFLICT"
	CodeStoreUnavailable     Code = "STORE_UNAVAILABLE"
	CodeInternal             Code = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrInvalidTransition    = New(CodeInvalidTransition, "invalid status transition")
	ErrInvalidInput         = New(CodeInvalidInput, "invalid input")
	ErrNotAvailable         = New(CodeNotAvailable, "tool is not available")
	ErrNotExported          = New(CodeNotExported, "tool is not exported")
	ErrHistoryInconsistency = New(CodeHistoryInconsistency, "export history is inconsistent")
	ErrDuplicateInCart      = New(CodeDuplicateInCart, "tool is already in the cart")
	ErrNotFound             = New(CodeNotFound, "not found")
	ErrConflict             = New(CodeConflict, "conflict")
	ErrStoreUnavailable     = New(CodeStoreUnavailable, "store unavailable")
)

// Metadata describes how a code is surfaced to API clients.
type Metadata struct {
	HTTPStatus int
	Retryable  bool
}

var metadataByCode = map[Code]Metadata{
	CodeInvalidTransition:    {HTTPStatus: http.StatusUnprocessableEntity},
	CodeInvalidInput:         {HTTPStatus: http.StatusBadRequest},
	CodeNotAvailable:         {HTTPStatus: http.StatusConflict},
	CodeNotExported:          {HTTPStatus: http.StatusConflict},
	CodeHistoryInconsistency: {HTTPStatus: http.StatusConflict},
	CodeDuplicateInCart:      {HTTPStatus: http.StatusConflict},
	CodeNotFound:             {HTTPStatus: http.StatusNotFound},
	CodeConflict:             {HTTPStatus: http.StatusConflict},
	CodeStoreUnavailable:     {HTTPStatus: http.StatusServiceUnavailable, Retryable: true},
	CodeInternal:             {HTTPStatus: http.StatusInternalServerError, Retryable: true},
}

// MetadataFor returns the metadata for code, falling back to CodeInternal.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a domain error with a code and an operator-facing reason.
type Error struct {
	code    Code
	message string
	cause   error
	details map[string]string
}

// New returns an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to err.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// WithDetails returns a copy of e carrying per-field details.
func (e *Error) WithDetails(details map[string]string) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.details = details
	return &clone
}

// Details returns the per-field details, if any.
func (e *Error) Details() map[string]string {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.code == t.code
}

// As returns the first *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of err, or CodeInternal if err carries none.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// Unavailable wraps a failed store call.
func Unavailable(err error, op string) *Error {
	return Wrap(CodeStoreUnavailable, err, op)
}
