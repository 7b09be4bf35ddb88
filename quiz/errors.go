/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiz

import "errors"

// Kind classifies an Error for the caller that receives it.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindProvider      Kind = "provider"
	KindInternal      Kind = "internal"
)

// Error is returned by every rejected operation. None of them change
// session state.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind and reason, so wrapped copies still compare
// equal to the exported values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

var (
	ErrNoQuestions    = &Error{Kind: KindValidation, Reason: "at least one question is required"}
	ErrEmptyName      = &Error{Kind: KindValidation, Reason: "name is required"}
	ErrNameTooLong    = &Error{Kind: KindValidation, Reason: "name is too long"}
	ErrInvalidOption  = &Error{Kind: KindValidation, Reason: "invalid answer option"}
	ErrHostCannotJoin = &Error{Kind: KindValidation, Reason: "host cannot join as a participant"}

	ErrRoomNotFound = &Error{Kind: KindNotFound, Reason: "room not found"}

	ErrNotAuthorized  = &Error{Kind: KindAuthorization, Reason: "not authorized"}
	ErrNotParticipant = &Error{Kind: KindAuthorization, Reason: "not a participant"}

	ErrGameInProgress  = &Error{Kind: KindState, Reason: "game already in progress"}
	ErrGameNotStarted  = &Error{Kind: KindState, Reason: "game not started"}
	ErrGameEnded       = &Error{Kind: KindState, Reason: "game has ended"}
	ErrRoundNotActive  = &Error{Kind: KindState, Reason: "round not active"}
	ErrRoundInProgress = &Error{Kind: KindState, Reason: "round still in progress"}
	ErrAlreadyAnswered = &Error{Kind: KindState, Reason: "answer already submitted"}
	ErrAlreadyJoined   = &Error{Kind: KindState, Reason: "already joined"}
	ErrSessionClosed   = &Error{Kind: KindState, Reason: "session closed"}

	ErrCodeSpaceExhausted = &Error{Kind: KindInternal, Reason: "join code space exhausted"}
)

// NewProviderError wraps a content provider failure.
func NewProviderError(cause error) error {
	return &Error{Kind: KindProvider, Reason: "failed to generate quiz", Err: cause}
}

// KindOf reports the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Reason is the caller-facing text for err.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return "internal error"
}
