package signal

import (
	"errors"
	"fmt"
)

// Kind classifies why a payload could not be turned into a canonical signal.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindDecode:
		return "decode"
	default:
		return "unexpected"
	}
}

// Error is the typed failure returned by every engine operation.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports a malformed, missing or contradictory field.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

// Unauthorized reports an unknown secret or an inactive/deleted bot.
func Unauthorized(reason string) *Error {
	return &Error{Kind: KindAuthorization, Reason: reason}
}

// NotFound reports an unknown channel.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf(format, args...)}
}

// Decode reports a cipher, Base64 or payload decoding failure.
func Decode(reason string, err error) *Error {
	return &Error{Kind: KindDecode, Reason: reason, Err: err}
}

// Unexpected wraps any other fault. Its reason is never shown to callers.
func Unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Reason: "internal error", Err: err}
}

// KindOf returns the kind carried by err, or KindUnexpected for foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnexpected
}

// ReasonOf returns the caller-facing reason for err.
func ReasonOf(err error) string {
	var se *Error
	if errors.As(err, &se) && se.Kind != KindUnexpected {
		return se.Reason
	}
	return "internal error"
}
