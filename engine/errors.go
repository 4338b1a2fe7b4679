// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import "net/http"

// Kind classifies request failures
type Kind int

const (
	KindValidation Kind = iota + 1
	KindRateLimited
	KindNotFound
	KindForbidden
	KindConflict
	KindMethodNotAllowed
	KindInternal
)

// Status maps the kind to its HTTP status code
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "internal"
	}
}

// Error is returned by every Engine operation. Message is safe to show to
// clients; Err is only logged.
type Error struct {
	Kind             Kind
	Message          string
	RequiresPassword bool
	Err              error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client-facing messages
const (
	MsgPollNotFound      = "Poll not found"
	MsgPollExpired       = "This poll has expired"
	MsgInvalidOption     = "Invalid option"
	MsgAlreadyVoted      = "You have already voted on this poll"
	MsgIncorrectPassword = "Incorrect password"
	MsgViewOnlyVoting    = "Voting is disabled in view-only mode. Use the direct poll link to vote."
	MsgMethodNotAllowed  = "Method not allowed"
)

func validationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// MethodNotAllowed is returned by handlers for unsupported HTTP methods
func MethodNotAllowed() *Error {
	return &Error{Kind: KindMethodNotAllowed, Message: MsgMethodNotAllowed}
}
