package errs

import (
	stdErrors "errors"
	"fmt"
)

// Code classifies a failure so callers can pick a recovery path without
// inspecting error strings.
type Code string

const (
	CodeUnknown                Code = "unknown"
	CodeProviderUnavailable    Code = "provider_unavailable"
	CodeToolExecution          Code = "tool_execution"
	CodeUnknownOperation       Code = "unknown_operation"
	CodeInvalidArguments       Code = "invalid_arguments"
	CodeMalformedModelOutput   Code = "malformed_model_output"
	CodeIterationLimitExceeded Code = "iteration_limit_exceeded"
	CodeInvalidRequest         Code = "invalid_request"
	CodeSpeechFailed           Code = "speech_failed"
)

// Error is the coded error type shared by every package.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// New creates a coded error.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
// A nil cause yields nil.
func Wrap(cause error, code Code, format string, args ...any) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Error is the message, followed by the cause when there is one. The code
// is not part of the text; use CodeOf.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches any *Error carrying the same code, so errors.Is(err, errs.New(code, ""))
// works as a code check.
func (e *Error) Is(target error) bool {
	var t *Error
	if !stdErrors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// CodeOf extracts the code of the first *Error in the chain.
func CodeOf(err error) Code {
	var e *Error
	if stdErrors.As(err, &e) && e != nil {
		return e.Code
	}
	return CodeUnknown
}

// HasCode reports whether any error in the chain carries code.
func HasCode(err error, code Code) bool {
	return stdErrors.Is(err, &Error{Code: code})
}
