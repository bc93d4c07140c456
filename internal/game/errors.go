// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
)

// Code classifies every error the engine and the room service raise.
type Code string

const (
	CodeInvalidActionShape       Code = "INVALID_ACTION_SHAPE"
	CodeUnknownActionType        Code = "UNKNOWN_ACTION_TYPE"
	CodeWrongPhase               Code = "WRONG_PHASE"
	CodeNotYourTurn              Code = "NOT_YOUR_TURN"
	CodeInvalidTarget            Code = "INVALID_TARGET"
	CodeInsufficientPlayers      Code = "INSUFFICIENT_PLAYERS"
	CodeInsufficientCards        Code = "INSUFFICIENT_CARDS"
	CodeIdempotencyConflict      Code = "IDEMPOTENCY_CONFLICT"
	CodeMissingPrerequisiteState Code = "MISSING_PREREQUISITE_STATE"
	CodeRoomNotFound             Code = "ROOM_NOT_FOUND"
	CodeRoomExists               Code = "ROOM_EXISTS"
)

// Error is a classified rule or protocol error. Message is shown to the
// submitting client as is.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrInvalidActionShape       = &Error{Code: CodeInvalidActionShape}
	ErrUnknownActionType        = &Error{Code: CodeUnknownActionType}
	ErrWrongPhase               = &Error{Code: CodeWrongPhase}
	ErrNotYourTurn              = &Error{Code: CodeNotYourTurn}
	ErrInvalidTarget            = &Error{Code: CodeInvalidTarget}
	ErrInsufficientPlayers      = &Error{Code: CodeInsufficientPlayers}
	ErrInsufficientCards        = &Error{Code: CodeInsufficientCards}
	ErrIdempotencyConflict      = &Error{Code: CodeIdempotencyConflict}
	ErrMissingPrerequisiteState = &Error{Code: CodeMissingPrerequisiteState}
	ErrRoomNotFound             = &Error{Code: CodeRoomNotFound}
	ErrRoomExists               = &Error{Code: CodeRoomExists}
)

// NewError builds a classified error with a formatted message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds a classified error around an underlying cause.
func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the classification of err, or "" for unclassified errors.
func CodeOf(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

func wrongPhase(format string, args ...any) error {
	return NewError(CodeWrongPhase, format, args...)
}

func invalidTarget(format string, args ...any) error {
	return NewError(CodeInvalidTarget, format, args...)
}

func missingState(format string, args ...any) error {
	return NewError(CodeMissingPrerequisiteState, format, args...)
}
