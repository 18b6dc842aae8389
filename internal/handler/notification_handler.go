package handler

import (
	"net/http"

	"socialhub/internal/services"
	"socialhub/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// NotificationHandler lets the friendship, like and comment collaborators
// hand a notification to the realtime layer.
type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// Register mounts the notification routes on an authenticated group.
func (h *NotificationHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/notifications", h.Create)
}

// Create stores a notification from the authenticated user and pushes it to
// the receiver's live sessions.
func (h *NotificationHandler) Create(c *gin.Context) {
	var req httpdto.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	n, delivered, err := h.service.Notify(c.Request.Context(), services.NotifyInput{
		ReceiverID: req.ReceiverID,
		SenderID:   userID,
		SenderName: req.SenderName,
		Type:       req.Type,
		Content:    req.Content,
		Metadata:   string(req.Metadata),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	if n == nil {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CreateNotificationResponse{Skipped: true}))
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.CreateNotificationResponse{
		Notification: httpdto.FromNotification(n),
		Delivered:    delivered,
	}))
}
