package handler

import (
	"account-service/internal/logger"
	"account-service/internal/middleware"
	appErrors "account-service/pkg/errors"
	"account-service/pkg/utils"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: the first sentinel found in the chain decides the response.
var errorMappings = []errorMapping{
	{appErrors.ErrDependencyUnavailable, http.StatusServiceUnavailable, "DEPENDENCY_UNAVAILABLE"},
	{appErrors.ErrDuplicateEmail, http.StatusConflict, "DUPLICATE_EMAIL"},
	{appErrors.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{appErrors.ErrAccountInactive, http.StatusForbidden, "ACCOUNT_INACTIVE"},
	{appErrors.ErrTokenNotFound, http.StatusNotFound, "TOKEN_NOT_FOUND"},
	{appErrors.ErrTokenExpired, http.StatusGone, "TOKEN_EXPIRED"},
	{appErrors.ErrTokenAlreadyUsed, http.StatusGone, "TOKEN_ALREADY_USED"},
	{appErrors.ErrTokenInvalid, http.StatusUnauthorized, "TOKEN_INVALID"},
	{appErrors.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{appErrors.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{appErrors.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{appErrors.ErrInvalidUserRole, http.StatusBadRequest, appErrors.CodeValidation},
}

func respondWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var appErr *appErrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case appErrors.CodeValidation, appErrors.CodeWeakPassword:
			utils.ErrorResponseWithCode(c, http.StatusBadRequest, appErr.Code, appErr.Message)
			return
		}
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError {
				logError(c, err)
			}
			utils.ErrorResponseWithCode(c, m.status, m.code, m.target.Error())
			return
		}
	}

	logError(c, err)
	utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
}

// respondWithTokenError collapses every token-state failure to 401 for endpoints
// that authenticate with the token itself.
func respondWithTokenError(c *gin.Context, err error) {
	if appErrors.IsTokenStateError(err) {
		utils.ErrorResponseWithCode(c, http.StatusUnauthorized, "TOKEN_INVALID", "Refresh token is invalid or expired")
		return
	}
	respondWithError(c, err)
}

func respondWithBindError(c *gin.Context, err error) {
	logger.WithRequestID(middleware.GetRequestID(c)).Debug("Request binding failed", zap.Error(err))
	utils.ErrorResponseWithCode(c, http.StatusBadRequest, appErrors.CodeValidation, "Invalid request body")
}

func logError(c *gin.Context, err error) {
	logger.Error("Request failed",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.Error(err),
	)
}
