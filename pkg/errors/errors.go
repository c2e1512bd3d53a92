// Package errors provides coded errors for the matome pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is an error with a classification code and optional cause.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func Validation(msg string) error {
	return New(CodeValidation, msg)
}

func Normalization(msg string) error {
	return New(CodeNormalization, msg)
}

func Client(msg string, cause error) error {
	return Wrap(CodeClient, msg, cause)
}

func StoreUnavailable(msg string, cause error) error {
	return Wrap(CodeStoreUnavailable, msg, cause)
}

func SyncInProgress(msg string) error {
	return New(CodeSyncInProgress, msg)
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

// CodeOf returns the code of err, or CodeUnknown when err carries none.
func CodeOf(err error) Code {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// IsRetryable reports whether the caller may retry the failed operation.
// Client and store failures are transient; validation and normalization
// failures are not.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeClient, CodeStoreUnavailable:
		return true
	default:
		return false
	}
}
