package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Tafsirchy/thikana/internal/models"
	"github.com/Tafsirchy/thikana/internal/services"
)

// RestUserHandler handles the authenticated user's own settings.
type RestUserHandler struct {
	userService services.IUserService
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(userService services.IUserService) *RestUserHandler {
	return &RestUserHandler{userService: userService}
}

type pushTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// GetMe handles GET /v1/me
func (h *RestUserHandler) GetMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := h.userService.FindByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to retrieve user")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":                       user.ID.Hex(),
		"name":                     user.Name,
		"email":                    user.Email,
		"notification_preferences": user.Preferences(),
		"push_devices":             len(user.PushTokens),
	})
}

// UpdatePreferences handles PUT /v1/me/notification-preferences
func (h *RestUserHandler) UpdatePreferences(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var prefs models.NotificationPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := h.userService.UpdateNotificationPreferences(c.Request.Context(), userID, prefs); err != nil {
		respondError(c, err, "Failed to update preferences")
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// RegisterPushToken handles POST /v1/me/push-token
func (h *RestUserHandler) RegisterPushToken(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req pushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	if err := h.userService.AddPushToken(c.Request.Context(), userID, strings.TrimSpace(req.Token)); err != nil {
		respondError(c, err, "Failed to register push token")
		return
	}
	c.Status(http.StatusNoContent)
}

// RemovePushToken handles DELETE /v1/me/push-token
func (h *RestUserHandler) RemovePushToken(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req pushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	if err := h.userService.RemovePushToken(c.Request.Context(), userID, req.Token); err != nil {
		respondError(c, err, "Failed to remove push token")
		return
	}
	c.Status(http.StatusNoContent)
}
