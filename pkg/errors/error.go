// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Input errors (100-199): Unordered, duplicate, or malformed bars, fatal before a run starts
//   - Configuration errors (200-299): Invalid engine, commission, or slippage parameters, fatal at startup
//   - Order rejection errors (300-399): Insufficient funds or shares, recorded while the run continues
//   - Lookahead violations (400-499): Internal invariant breaches, always fatal
//   - State/store errors (500-599): Ledger and archive store failures
//   - Feed errors (600-699): Bar feed loading and query failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeUnorderedBars, "bars out of order")
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeFeedLoadFailed, "failed to load feed", originalErr)
//
//	// Check error category
//	if errors.IsRejection(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsInput reports whether err is an input error (malformed or unordered bar feed).
// Input errors abort a backtest before simulation starts.
func IsInput(err error) bool {
	code := GetCode(err)

	return code >= 100 && code < 200
}

// IsConfiguration reports whether err is a configuration error. Configuration
// errors are fatal at startup.
func IsConfiguration(err error) bool {
	code := GetCode(err)

	return code >= 200 && code < 300
}

// IsRejection reports whether err is an order rejection. Rejections are
// recorded with the metrics recorder and the run continues.
func IsRejection(err error) bool {
	code := GetCode(err)

	return code >= 300 && code < 400
}

// IsLookahead reports whether err is a lookahead violation. A lookahead
// violation indicates an engine defect and is never recoverable by retry.
func IsLookahead(err error) bool {
	code := GetCode(err)

	return code >= 400 && code < 500
}
