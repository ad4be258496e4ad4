// Package errors provides unified error handling with structured failure codes.
// Codes distinguish outcomes callers handle differently: a timeout is retryable,
// a malformed fingerprint is not, and a trivial hash is not an error at all but
// is still reported with a code so callers can tell the cases apart.
package errors

import "fmt"

// Code classifies a failure.
type Code int

const (
	CodeUnknown Code = iota
	// CodeInvalidInput marks malformed input: bad fingerprint format,
	// wrong matrix size. Never retryable.
	CodeInvalidInput
	// CodeCaptureFailed marks a frame capture that produced no pixels,
	// e.g. protected content.
	CodeCaptureFailed
	// CodeNoSignal marks an absent result: zero captured frames or a
	// trivial fingerprint. Not a fault, just nothing usable.
	CodeNoSignal
	// CodeTimeout marks a job that exceeded its deadline.
	CodeTimeout
	// CodeQueueCleared marks a pending job rejected by a queue clear.
	CodeQueueCleared
	// CodeStoreFailed marks a blocklist store read or write failure.
	CodeStoreFailed
	// CodeSourceUnavailable marks a frame source that never became ready.
	CodeSourceUnavailable
	CodeInternal
)

var codeNames = map[Code]string{
	CodeUnknown:           "UNKNOWN",
	CodeInvalidInput:      "INVALID_INPUT",
	CodeCaptureFailed:     "CAPTURE_FAILED",
	CodeNoSignal:          "NO_SIGNAL",
	CodeTimeout:           "TIMEOUT",
	CodeQueueCleared:      "QUEUE_CLEARED",
	CodeStoreFailed:       "STORE_FAILED",
	CodeSourceUnavailable: "SOURCE_UNAVAILABLE",
	CodeInternal:          "INTERNAL",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// AppError is the base error type with structured code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// CodeOf extracts the code from an error, walking the cause chain.
func CodeOf(err error) Code {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			return appErr.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return CodeUnknown
}

// IsCode checks if an error carries a specific code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable returns true if the error is potentially retryable.
// Timeouts and unready sources may succeed on a later attempt; malformed
// input and trivial fingerprints never will.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeTimeout, CodeSourceUnavailable, CodeStoreFailed:
		return true
	default:
		return false
	}
}
