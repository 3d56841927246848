// Package errorx defines the error taxonomy shared by the matching, blocking,
// meeting and messaging services. Every error carries a Kind (used by the API
// layer to pick a status code) and a short machine-readable Code.
package errorx

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindAuthorization
	KindState
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Codes reported to clients alongside the kind.
const (
	CodeInvalidProfile  = "invalid_profile"
	CodeSelfAction      = "self_action"
	CodeProfileNotFound = "profile_not_found"
	CodeMatchNotFound   = "match_not_found"
	CodeThreadNotFound  = "thread_not_found"
	CodeMeetingNotFound = "meeting_not_found"
	CodeTerminalMatch   = "terminal_match"
	CodeDuplicate       = "duplicate"
	CodeNotParticipant  = "not_a_participant"
	CodeNoContact       = "no_contact"
	CodeBlocked         = "blocked"
	CodeNotConfirmed    = "not_confirmed"
	CodeMissingLink     = "missing_link"
	CodeInvalidState    = "invalid_state"
	CodeTimeout         = "timeout"
	CodeInternal        = "internal"
)

// CodeError is the concrete error type. It supports %w-style wrapping through
// Unwrap, so errors.Is/errors.As see the underlying cause.
type CodeError struct {
	Kind  Kind
	Code  string
	Msg   string
	cause error
}

func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.cause)
	}
	return e.Msg
}

func (e *CodeError) Unwrap() error {
	return e.cause
}

// Is matches another *CodeError with the same Kind and Code, which lets the
// package-level sentinels below be used with errors.Is.
func (e *CodeError) Is(target error) bool {
	t, ok := target.(*CodeError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// New creates a CodeError.
func New(kind Kind, code, msg string) *CodeError {
	return &CodeError{Kind: kind, Code: code, Msg: msg}
}

// Newf creates a CodeError with a formatted message.
func Newf(kind Kind, code, format string, args ...any) *CodeError {
	return &CodeError{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind, code and message to an underlying error.
func Wrap(err error, kind Kind, code, msg string) *CodeError {
	return &CodeError{Kind: kind, Code: code, Msg: msg, cause: err}
}

// Internal wraps an infrastructure failure.
func Internal(err error, msg string) *CodeError {
	return Wrap(err, KindInternal, CodeInternal, msg)
}

// KindOf extracts the Kind of err. Errors outside the taxonomy are internal.
func KindOf(err error) Kind {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// CodeOf extracts the Code of err.
func CodeOf(err error) string {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeInternal
}

// IsKind reports whether err belongs to kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotParticipant = New(KindAuthorization, CodeNotParticipant, "not a participant of this thread")
	ErrNoContact      = New(KindAuthorization, CodeNoContact, "no conversation or match with this user")
	ErrBlocked        = New(KindAuthorization, CodeBlocked, "interaction blocked between these users")
	ErrThreadNotFound = New(KindNotFound, CodeThreadNotFound, "thread not found")
	ErrMatchNotFound  = New(KindNotFound, CodeMatchNotFound, "match not found")
	ErrProfileMissing = New(KindNotFound, CodeProfileNotFound, "profile not found")
	ErrMeetingMissing = New(KindNotFound, CodeMeetingNotFound, "meeting not found")
	ErrTerminalMatch  = New(KindConflict, CodeTerminalMatch, "match is already finalized")
	ErrDuplicate      = New(KindConflict, CodeDuplicate, "record already exists")
	ErrNotConfirmed   = New(KindState, CodeNotConfirmed, "match is not confirmed")
	ErrMissingLink    = New(KindState, CodeMissingLink, "external_link meeting requires a link")
	ErrSelfAction     = New(KindValidation, CodeSelfAction, "cannot target yourself")
	ErrTimeout        = New(KindTimeout, CodeTimeout, "operation timed out")
)
