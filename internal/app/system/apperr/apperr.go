// Package apperr defines the error taxonomy shared by stores, services, and
// handlers. Services return *Error values (usually one of the sentinels
// below); the transport layer maps Kind to a status code and renders Code and
// Message. Anything that is not an *Error is treated as internal.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport boundary.
type Kind string

const (
	KindNotFound         Kind = "NotFound"
	KindNotAuthorized    Kind = "NotAuthorized"
	KindValidation       Kind = "ValidationError"
	KindConflict         Kind = "Conflict"
	KindInvalidReference Kind = "InvalidReference"
	KindInvalidState     Kind = "InvalidState"
	KindCredential       Kind = "CredentialError"
	KindRateLimited      Kind = "RateLimited"
	KindInternal         Kind = "Internal"
)

// Error is a domain error with a stable code and a user-safe message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return e.Code + ": " + e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is matches on Code so that a message-customized copy still matches its
// sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of e carrying a different user-facing message.
func (e *Error) WithMessage(msg string) *Error {
	c := *e
	c.Message = msg
	return &c
}

// Wrap returns a copy of e that also carries cause for logging.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.cause = cause
	return &c
}

// New builds an ad-hoc error of the given kind.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Validation builds a ValidationError with code VALIDATION_FAILED.
func Validation(msg string) *Error {
	return New(KindValidation, "VALIDATION_FAILED", msg)
}

// KindOf returns the kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// Not found.
var (
	ErrProjectNotFound = New(KindNotFound, "PROJECT_NOT_FOUND", "Project not found")
	ErrTaskNotFound    = New(KindNotFound, "TASK_NOT_FOUND", "Task not found")
	ErrUserNotFound    = New(KindNotFound, "USER_NOT_FOUND", "User not found")
	ErrMemberNotFound  = New(KindNotFound, "MEMBER_NOT_FOUND", "User is not a member of this project")
	ErrAdminNotFound   = New(KindNotFound, "ADMIN_NOT_FOUND", "User is not an admin of this project")
)

// Authorization.
var (
	ErrNotAuthorized = New(KindNotAuthorized, "NOT_AUTHORIZED", "You are not authorized to perform this action")
)

// Validation and conflicts.
var (
	ErrProjectNameRequired = New(KindValidation, "PROJECT_NAME_REQUIRED", "Project name is required")
	ErrProjectNameExists   = New(KindConflict, "PROJECT_NAME_EXISTS", "You already have a project with this name")
	ErrUserExists          = New(KindConflict, "USER_ALREADY_EXISTS", "A user with this name or email already exists")
	ErrEmailTaken          = New(KindConflict, "EMAIL_TAKEN", "This email is already in use")
	ErrConcurrentUpdate    = New(KindConflict, "CONCURRENT_UPDATE", "The record was modified by another request; please retry")
)

// Invalid references.
var (
	ErrInvalidUsers     = New(KindInvalidReference, "ONE_OR_MORE_USER_INVALID", "One or more users are invalid")
	ErrInvalidAssignees = New(KindInvalidReference, "INVALID_ASSIGNEES", "One or more assignees are invalid")
	ErrUserNotInProject = New(KindInvalidReference, "USER_NOT_IN_PROJECT", "One or more users are not part of this project")
)

// Invalid state transitions.
var (
	ErrUserNotAssigned          = New(KindInvalidState, "USER_NOT_ASSIGNED", "User is not assigned to this task")
	ErrAlreadyCompleted         = New(KindInvalidState, "ALREADY_COMPLETED", "Task is already completed")
	ErrCannotRemoveLastAssignee = New(KindInvalidState, "CANNOT_REMOVE_LAST_ASSIGNEE", "A task must keep at least one assignee")
	ErrCannotRemoveOwner        = New(KindInvalidState, "CANNOT_REMOVE_OWNER", "The project owner cannot be removed")
	ErrCannotAssignSelf         = New(KindInvalidState, "CANNOT_ASSIGN_SELF", "You cannot assign yourself to a task")
	ErrAlreadyVerified          = New(KindInvalidState, "ALREADY_VERIFIED", "Account is already verified")
)

// Credentials.
var (
	ErrInvalidCredentials = New(KindCredential, "INVALID_CREDENTIALS", "Invalid email or password")
	ErrAccountNotVerified = New(KindCredential, "VERIFY_ACCOUNT", "Please verify your account before signing in")
	ErrOTPExpired         = New(KindCredential, "OTP_EXPIRED", "The code has expired; request a new one")
	ErrInvalidOTP         = New(KindCredential, "INVALID_OTP", "The code is incorrect")
	ErrTooManyAttempts    = New(KindCredential, "TOO_MANY_ATTEMPTS", "Too many incorrect codes; request a new one")
	ErrResetNotVerified   = New(KindCredential, "RESET_NOT_VERIFIED", "Verify the reset code before choosing a new password")
	ErrInvalidToken       = New(KindCredential, "INVALID_TOKEN", "Invalid or expired token")
)

// Rate limiting.
var (
	ErrRateLimited = New(KindRateLimited, "TOO_MANY_REQUESTS", "Too many requests; please try again later")
)
