package browser

import (
	"errors"
	"fmt"
)

// Error codes
const (
	ErrCodeInvalidArgument = "INVALID_ARGUMENT"
	ErrCodeInvalidSession  = "INVALID_SESSION"
	ErrCodeEngineFailure   = "ENGINE_FAILURE"
)

// BrowserError is the error type surfaced by every browser operation.
type BrowserError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *BrowserError) Error() string {
	return e.Message
}

func (e *BrowserError) Unwrap() error {
	return e.Err
}

// InvalidArgument reports a caller-supplied parameter that failed validation.
func InvalidArgument(format string, args ...any) *BrowserError {
	return &BrowserError{
		Code:    ErrCodeInvalidArgument,
		Message: fmt.Sprintf(format, args...),
	}
}

// InvalidSession reports an identifier with no live session behind it.
func InvalidSession() *BrowserError {
	return &BrowserError{
		Code:    ErrCodeInvalidSession,
		Message: "Invalid session ID",
	}
}

// EngineError wraps a failure raised by the automation engine.
func EngineError(op string, err error) *BrowserError {
	var be *BrowserError
	if errors.As(err, &be) {
		return be
	}
	return &BrowserError{
		Code:    ErrCodeEngineFailure,
		Message: fmt.Sprintf("%s: %v", op, err),
		Err:     err,
	}
}

// CodeOf returns the code carried by err, or ErrCodeEngineFailure for
// errors that did not originate here.
func CodeOf(err error) string {
	var be *BrowserError
	if errors.As(err, &be) {
		return be.Code
	}
	return ErrCodeEngineFailure
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}
