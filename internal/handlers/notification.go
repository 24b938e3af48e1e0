package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/social-graph/social-graph/internal/config"
	"github.com/social-graph/social-graph/internal/middleware"
	"github.com/social-graph/social-graph/internal/services"
)

type NotificationHandler struct {
	notifications *services.NotificationService
	cfg           *config.GraphConfig
}

func NewNotificationHandler(notifications *services.NotificationService, cfg *config.GraphConfig) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		cfg:           cfg,
	}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	offset, limit := parsePagination(c, h.cfg.DefaultPageSize, h.cfg.MaxPageSize)
	notifications, total, err := h.notifications.List(c.Request.Context(), userID, offset, limit)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"total":         total,
		"offset":        offset,
		"limit":         limit,
	})
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	count, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// StreamUnreadCount pushes unread-count changes as server-sent events until
// the client disconnects. Replaces the old fixed-interval client poll.
func (h *NotificationHandler) StreamUnreadCount(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	updates, err := h.notifications.WatchUnreadCount(c.Request.Context(), userID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		count, ok := <-updates
		if !ok {
			return false
		}
		c.SSEvent("unread_count", count)
		return true
	})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	if err := h.notifications.MarkAsRead(c.Request.Context(), userID, c.Param("id")); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	if err := h.notifications.MarkAllAsRead(c.Request.Context(), userID); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read"})
}
