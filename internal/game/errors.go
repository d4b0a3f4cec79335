package game

import "errors"

// Code classifies a game failure.
type Code string

const (
	CodeFetchFailure      Code = "fetch_failure"
	CodeSensorUnavailable Code = "sensor_unavailable"
	CodeLoadFailure       Code = "load_failure"
)

// Error is a game failure with a user-facing message.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// NewError creates an error without a cause.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError creates an error wrapping cause.
func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is.
var (
	ErrFetchFailure      = NewError(CodeFetchFailure, "fetch failure")
	ErrSensorUnavailable = NewError(CodeSensorUnavailable, "sensor unavailable")
	ErrLoadFailure       = NewError(CodeLoadFailure, "load failure")

	// ErrClosed is returned for events sent to a closed Machine.
	ErrClosed = errors.New("game: machine closed")
)

// User-facing status messages.
const (
	MsgFetchFailure      = "Couldn't fetch content. Press start to retry."
	MsgLoadFailure       = "Couldn't load the GIF. Press reset to start over."
	MsgSensorUnavailable = "No camera available. Press reset to try again."
	MsgResult            = "We saw you laughing 😀"
)
