package token

import (
	appErrors "account-service/pkg/errors"
	"errors"
)

var (
	ErrTokenNotFound    = appErrors.ErrTokenNotFound
	ErrTokenExpired     = appErrors.ErrTokenExpired
	ErrTokenAlreadyUsed = appErrors.ErrTokenAlreadyUsed

	ErrInvalidKind     = errors.New("invalid token kind")
	ErrInvalidLifetime = errors.New("token must expire after it is issued")
	ErrEmptyValue      = errors.New("token value hash is empty")
)
