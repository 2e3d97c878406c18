// Package taperrors provides structured error handling for the tap with a
// closed taxonomy of error kinds mirroring the Analytics Reporting API error
// space. The sync engine's continue/abort policy is driven entirely by the
// ErrorType attached here, so classification happens once, at the API client
// boundary, and everything above it switches on the type.
package taperrors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType categorizes an error for the sync engine's handling policy.
type ErrorType string

const (
	// ErrorTypeInvalidArgument covers malformed report definitions (HTTP 400).
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	// ErrorTypeAuthentication covers HTTP 401/402 responses.
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeRateLimit covers userRateLimitExceeded / rateLimitExceeded.
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeQuotaExceeded covers quotaExceeded.
	ErrorTypeQuotaExceeded ErrorType = "quota_exceeded"
	// ErrorTypeBackendUnavailable covers HTTP 500/503 responses. These are
	// retried inside the client and only surface once retries are exhausted.
	ErrorTypeBackendUnavailable ErrorType = "backend_unavailable"
	// ErrorTypeUnknown covers everything the taxonomy does not name.
	ErrorTypeUnknown ErrorType = "unknown"
	// ErrorTypeConfig covers configuration and catalog validation failures.
	ErrorTypeConfig ErrorType = "config"
)

// Error is a categorized error with optional key-value details and the call
// stack captured at creation.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame is a single frame of the call stack at error creation.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail attaches a key-value detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an error of the given type, capturing the call stack.
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates an error with a formatted message.
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps err with a type and message, preserving err as the cause.
// Returns nil if err is nil. If err is already an *Error its stack is kept.
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existing.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown when err carries
// no classification.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeUnknown
	}
	return e.Type
}

// IsType reports whether err carries the given type.
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// IsRetryable reports whether the error kind is transient from the API's
// point of view. Rate-limit, quota and backend errors match the non-fatal
// reason set the Reporting API documents; everything else is terminal.
func IsRetryable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeRateLimit, ErrorTypeQuotaExceeded, ErrorTypeBackendUnavailable:
		return true
	default:
		return false
	}
}

func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		frames = append(frames, StackFrame{Function: fn.Name(), File: file, Line: line})
	}

	return frames
}
