package middleware

import (
	"account-service/internal/usecase/auth"
	appErrors "account-service/pkg/errors"
	"account-service/pkg/utils"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	PrincipalKey = "principal"
	UserIDKey    = "userID"
	RoleKey      = "role"
)

func AuthMiddleware(guard *auth.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Authorization header required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.ErrorResponse(c, http.StatusUnauthorized, "Invalid authorization header format")
			c.Abort()
			return
		}

		principal, err := guard.Authenticate(strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, appErrors.ErrTokenExpired) {
				utils.ErrorResponseWithCode(c, http.StatusUnauthorized, "TOKEN_EXPIRED", "Access token has expired")
			} else {
				utils.ErrorResponseWithCode(c, http.StatusUnauthorized, "TOKEN_INVALID", "Invalid access token")
			}
			c.Abort()
			return
		}

		c.Set(PrincipalKey, principal)
		c.Set(UserIDKey, principal.UserID)
		c.Set(RoleKey, principal.Role)

		c.Next()
	}
}

// GetPrincipal returns the caller set by AuthMiddleware.
func GetPrincipal(c *gin.Context) (*auth.Principal, bool) {
	value, exists := c.Get(PrincipalKey)
	if !exists {
		return nil, false
	}
	principal, ok := value.(*auth.Principal)
	return principal, ok
}
