package user

import appErrors "account-service/pkg/errors"

var (
	ErrUserNotFound    = appErrors.ErrUserNotFound
	ErrDuplicateEmail  = appErrors.ErrDuplicateEmail
	ErrAccountInactive = appErrors.ErrAccountInactive
	ErrInvalidUserRole = appErrors.ErrInvalidUserRole
)
