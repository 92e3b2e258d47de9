package middleware

import (
	domainUser "account-service/internal/domain/user"
	"account-service/internal/usecase/auth"
	"account-service/pkg/utils"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireRole admits callers whose role is at least required.
func RequireRole(required domainUser.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, _ := GetPrincipal(c)

		if err := auth.Authorize(principal, required); err != nil {
			if principal == nil {
				utils.ErrorResponse(c, http.StatusUnauthorized, "Authentication required")
			} else {
				utils.ErrorResponse(c, http.StatusForbidden, "Insufficient permissions")
			}
			c.Abort()
			return
		}

		c.Next()
	}
}
