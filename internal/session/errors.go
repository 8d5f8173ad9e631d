package session

import (
	"errors"
	"fmt"
)

// ErrorKind classifies session failures.
type ErrorKind string

const (
	RadioUnavailable       ErrorKind = "radio_unavailable"
	SetupFailed            ErrorKind = "setup_failed"
	InvalidState           ErrorKind = "invalid_state"
	LinkFailed             ErrorKind = "link_failed"
	MessageTooLong         ErrorKind = "message_too_long"
	EncodingFailed         ErrorKind = "encoding_failed"
	ServiceNotFound        ErrorKind = "service_not_found"
	CharacteristicNotFound ErrorKind = "characteristic_not_found"
	NotReady               ErrorKind = "not_ready"
	SendFailed             ErrorKind = "send_failed"
)

// Error is what sessions hand to Observer.Error. None of them are fatal:
// the session is always left Idle or unchanged, and the operation can be retried.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Kind)
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying transport error, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is to compare Error values by Kind
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Predefined sentinel errors, one per kind
var (
	ErrRadioUnavailable       = &Error{Kind: RadioUnavailable}
	ErrSetupFailed            = &Error{Kind: SetupFailed}
	ErrInvalidState           = &Error{Kind: InvalidState}
	ErrLinkFailed             = &Error{Kind: LinkFailed}
	ErrMessageTooLong         = &Error{Kind: MessageTooLong}
	ErrEncodingFailed         = &Error{Kind: EncodingFailed}
	ErrServiceNotFound        = &Error{Kind: ServiceNotFound}
	ErrCharacteristicNotFound = &Error{Kind: CharacteristicNotFound}
	ErrNotReady               = &Error{Kind: NotReady}
	ErrSendFailed             = &Error{Kind: SendFailed}
)

func newError(kind ErrorKind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: cause}
}

// KindOf returns the kind of a session error, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return ""
}
