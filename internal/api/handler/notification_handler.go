package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"parkingspace/internal/service"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
}

func NewNotificationHandler(ns *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: ns}
}

// GET /api/v1/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	notifications, err := h.notificationService.List(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err, "could not list notifications")
		return
	}
	c.JSON(http.StatusOK, notifications)
}

// POST /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.notificationService.MarkRead(c.Request.Context(), actor, id); err != nil {
		respondError(c, err, "could not update notification")
		return
	}
	c.Status(http.StatusNoContent)
}
