package common

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorKind groups error codes by how callers react to them.
type ErrorKind string

const (
	KindInput    ErrorKind = "input"    // caller supplied bad data, never retried
	KindEngine   ErrorKind = "engine"   // recognition engine failed, retryable
	KindTimeout  ErrorKind = "timeout"  // deadline or rate-limit budget exhausted
	KindNoText   ErrorKind = "no_text"  // engine ran but found nothing
	KindInternal ErrorKind = "internal" // everything else
)

// Error codes surfaced on failed items and over the wire.
const (
	CodeDecodeError    = "decode_error"
	CodeFetchError     = "fetch_error"
	CodeMalformedInput = "malformed_input"
	CodeMalformedBatch = "malformed_batch"
	CodeEngineError    = "engine_error"
	CodeTimeout        = "timeout"
	CodeNoTextDetected = "no_text_detected"
	CodeCancelled      = "cancelled"
	CodeConfigError    = "CONFIG_ERROR"
	CodeInternal       = "internal_error"
)

var codeKinds = map[string]ErrorKind{
	CodeDecodeError:    KindInput,
	CodeFetchError:     KindInput,
	CodeMalformedInput: KindInput,
	CodeMalformedBatch: KindInput,
	CodeConfigError:    KindInput,
	CodeEngineError:    KindEngine,
	CodeTimeout:        KindTimeout,
	CodeNoTextDetected: KindNoText,
}

// AppError represents application-specific errors
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
	ErrEngine       = errors.New("recognition engine failure")
)

// NewAppError builds an AppError whose kind follows from the code.
func NewAppError(code, message string, cause error) *AppError {
	kind, ok := codeKinds[code]
	if !ok {
		kind = KindInternal
	}
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func NewEngineError(message string, cause error) *AppError {
	if cause == nil {
		cause = ErrEngine
	}
	return NewAppError(CodeEngineError, message, cause)
}

func NewTimeoutError(message string, cause error) *AppError {
	return NewAppError(CodeTimeout, message, cause)
}

func NewInputError(code, message string, cause error) *AppError {
	if cause == nil {
		cause = ErrInvalidInput
	}
	e := NewAppError(code, message, cause)
	e.Kind = KindInput
	return e
}

// AsAppError unwraps err into an AppError when one is in the chain.
func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// CodeOf maps any error to the stable code reported on items.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if ae, ok := AsAppError(err); ok {
		return ae.Code
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	}
	return CodeInternal
}

// KindOf maps any error to its kind.
func KindOf(err error) ErrorKind {
	if ae, ok := AsAppError(err); ok {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// IsRetryable reports whether the batch layer may try err again.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindEngine
}

// WrapError annotates err with a message and a stack trace.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return eris.Wrap(err, message)
}

// ToStatus converts an application error into a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	msg := err.Error()
	switch KindOf(err) {
	case KindInput:
		return status.Error(codes.InvalidArgument, msg)
	case KindEngine:
		return status.Error(codes.Unavailable, msg)
	case KindTimeout:
		return status.Error(codes.DeadlineExceeded, msg)
	case KindNoText:
		return status.Error(codes.FailedPrecondition, msg)
	}
	if errors.Is(err, ErrNotFound) {
		return status.Error(codes.NotFound, msg)
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, msg)
	}
	return status.Error(codes.Internal, msg)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}
