package handler

import (
	domainUser "account-service/internal/domain/user"
	"account-service/internal/middleware"
	"account-service/internal/usecase/auth"
	"account-service/pkg/utils"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AdminHandler struct {
	service *auth.Service
}

func NewAdminHandler(service *auth.Service) *AdminHandler {
	return &AdminHandler{service: service}
}

// RegisterRoutes expects router to already run AuthMiddleware.
func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup) {
	admin := router.Group("/admin")
	{
		admin.GET("/users", middleware.RequireRole(domainUser.RoleModerator), h.ListUsers)
		admin.POST("/users/:user_id/activate", middleware.RequireRole(domainUser.RoleAdmin), h.ActivateUser)
		admin.PUT("/users/:user_id/role", middleware.RequireRole(domainUser.RoleAdmin), h.ChangeRole)
	}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	var req auth.ListUsersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondWithBindError(c, err)
		return
	}

	users, err := h.service.ListUsers(c.Request.Context(), principal, &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Users retrieved successfully", users)
}

func (h *AdminHandler) ActivateUser(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	user, err := h.service.ActivateUser(c.Request.Context(), principal, userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "User activated", user)
}

func (h *AdminHandler) ChangeRole(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	userID, ok := parseUserID(c)
	if !ok {
		return
	}

	var req auth.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithBindError(c, err)
		return
	}

	user, err := h.service.ChangeRole(c.Request.Context(), principal, userID, &req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "User role updated", user)
}

func parseUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		utils.ErrorResponseWithCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid user ID")
		return uuid.Nil, false
	}
	return userID, true
}
