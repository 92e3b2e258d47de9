package errors

import (
	"errors"
	"fmt"
)

const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeWeakPassword = "WEAK_PASSWORD"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrForbidden          = errors.New("insufficient permissions")

	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateEmail  = errors.New("email is already registered")
	ErrAccountInactive = errors.New("user account is not activated")
	ErrInvalidUserRole = errors.New("invalid user role")

	ErrInvalidInput = errors.New("invalid input data")
	ErrWeakPassword = errors.New("password does not meet requirements")

	ErrTokenNotFound    = errors.New("token not found")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenAlreadyUsed = errors.New("token has already been used")
	ErrTokenInvalid     = errors.New("token is invalid")

	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewValidationError wraps a malformed-input failure so it surfaces as ErrInvalidInput.
func NewValidationError(message string, err error) *AppError {
	if err == nil {
		err = ErrInvalidInput
	} else {
		err = errors.Join(ErrInvalidInput, err)
	}
	return NewAppError(CodeValidation, message, err)
}

// Unavailable marks err as an outage of an external collaborator (database, broker, mail).
func Unavailable(what string, err error) error {
	return fmt.Errorf("%s: %w", what, errors.Join(ErrDependencyUnavailable, err))
}

// IsTokenStateError reports whether err describes a missing, expired or consumed token.
func IsTokenStateError(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenAlreadyUsed) ||
		errors.Is(err, ErrTokenInvalid)
}
