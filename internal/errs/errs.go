// Package errs defines the error kinds surfaced by the puppet adapter.
//
// Every error carries a stable numeric code, a human message and an optional
// free-form detail. errors.Is matches on the code, so a detailed error created
// with New still satisfies errors.Is(err, ErrNoCache).
package errs

import (
	"errors"
	"fmt"
)

// Code identifies an error kind.
type Code int

const (
	CodeInit                  Code = 1001
	CodeRequestTimeout        Code = 1002
	CodeMessageNotFound       Code = 2001
	CodeMessageTypeMismatch   Code = 2002
	CodeContactNotFound       Code = 3001
	CodeContactCardParse      Code = 3002
	CodeRoomNotFound          Code = 4001
	CodeRoomOperationFailed   Code = 4002
	CodeRateLimitQueueMissing Code = 5001
	CodeInvalidIdentifier     Code = 6001
)

var messages = map[Code]string{
	CodeInit:                  "not initialized",
	CodeRequestTimeout:        "request timeout",
	CodeMessageNotFound:       "message not found",
	CodeMessageTypeMismatch:   "message type mismatch",
	CodeContactNotFound:       "contact not found",
	CodeContactCardParse:      "contact card parse failed",
	CodeRoomNotFound:          "room not found",
	CodeRoomOperationFailed:   "room operation failed",
	CodeRateLimitQueueMissing: "rate limit queue missing",
	CodeInvalidIdentifier:     "invalid identifier",
}

// Error is the concrete error type for all kinds.
type Error struct {
	Code    Code
	Message string
	Detail  string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s (code %d): %s", e.Message, e.Code, e.Detail)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrNoCache               = &Error{Code: CodeInit, Message: "no cache"}
	ErrRequestTimeout        = kind(CodeRequestTimeout)
	ErrMessageNotFound       = kind(CodeMessageNotFound)
	ErrMessageTypeMismatch   = kind(CodeMessageTypeMismatch)
	ErrContactNotFound       = kind(CodeContactNotFound)
	ErrContactCardParse      = kind(CodeContactCardParse)
	ErrRoomNotFound          = kind(CodeRoomNotFound)
	ErrRoomOperationFailed   = kind(CodeRoomOperationFailed)
	ErrRateLimitQueueMissing = kind(CodeRateLimitQueueMissing)
	ErrInvalidIdentifier     = kind(CodeInvalidIdentifier)
)

func kind(code Code) *Error {
	return &Error{Code: code, Message: messages[code]}
}

// New returns an error of the given kind with a formatted detail.
func New(code Code, format string, args ...any) *Error {
	msg, ok := messages[code]
	if !ok {
		msg = "unknown error"
	}
	return &Error{Code: code, Message: msg, Detail: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or 0.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}
