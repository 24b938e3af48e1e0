package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/social-graph/social-graph/internal/config"
	"github.com/social-graph/social-graph/internal/middleware"
	"github.com/social-graph/social-graph/internal/models"
	"github.com/social-graph/social-graph/internal/services"
)

type GraphHandler struct {
	graphService *services.GraphService
	cfg          *config.GraphConfig
}

func NewGraphHandler(graphService *services.GraphService, cfg *config.GraphConfig) *GraphHandler {
	return &GraphHandler{
		graphService: graphService,
		cfg:          cfg,
	}
}

type followBody struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *GraphHandler) pagination(c *gin.Context) (int, int) {
	return parsePagination(c, h.cfg.DefaultPageSize, h.cfg.MaxPageSize)
}

// Follow creates a direct edge to a public account. Private targets are
// reported back with a redirect hint to the request flow.
func (h *GraphHandler) Follow(c *gin.Context) {
	followerID := middleware.GetUserID(c)
	if followerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req followBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.graphService.Follow(c.Request.Context(), followerID, req.UserID)
	if err != nil {
		if errors.Is(err, services.ErrPrivateAccount) {
			c.JSON(http.StatusForbidden, gin.H{
				"error":  err.Error(),
				"status": "request_required",
			})
			return
		}
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Followed successfully",
		"status":  "following",
	})
}

func (h *GraphHandler) Unfollow(c *gin.Context) {
	followerID := middleware.GetUserID(c)
	if followerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	if err := h.graphService.Unfollow(c.Request.Context(), followerID, c.Param("id")); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Unfollowed successfully",
		"status":  "not_following",
	})
}

func (h *GraphHandler) SendFollowRequest(c *gin.Context) {
	fromUserID := middleware.GetUserID(c)
	if fromUserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req followBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.graphService.SendFollowRequest(c.Request.Context(), fromUserID, req.UserID)
	if err != nil {
		if errors.Is(err, services.ErrAlreadyFollowing) {
			c.JSON(http.StatusOK, gin.H{"status": "following"})
			return
		}
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	status := "pending_approval"
	if request.Status == models.RequestAccepted {
		status = "following"
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":  status,
		"request": request,
	})
}

func (h *GraphHandler) GetFollowRequests(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	offset, limit := h.pagination(c)
	requests, err := h.graphService.GetFollowRequests(c.Request.Context(), userID, offset, limit)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"offset":   offset,
		"limit":    limit,
	})
}

func (h *GraphHandler) AcceptFollowRequest(c *gin.Context) {
	if err := h.graphService.AcceptFollowRequest(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Follow request accepted"})
}

func (h *GraphHandler) RejectFollowRequest(c *gin.Context) {
	if err := h.graphService.RejectFollowRequest(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Follow request rejected"})
}

func (h *GraphHandler) GetFollowers(c *gin.Context) {
	offset, limit := h.pagination(c)
	followers, err := h.graphService.GetFollowers(c.Request.Context(), c.Param("id"), offset, limit)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"followers": followers,
		"offset":    offset,
		"limit":     limit,
	})
}

func (h *GraphHandler) GetFollowing(c *gin.Context) {
	offset, limit := h.pagination(c)
	following, err := h.graphService.GetFollowing(c.Request.Context(), c.Param("id"), offset, limit)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"following": following,
		"offset":    offset,
		"limit":     limit,
	})
}

func (h *GraphHandler) GetFollowStats(c *gin.Context) {
	stats, err := h.graphService.GetFollowStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *GraphHandler) IsFollowing(c *gin.Context) {
	viewerID := middleware.GetUserID(c)
	if viewerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	following, err := h.graphService.IsFollowing(c.Request.Context(), viewerID, c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"is_following": following})
}

func (h *GraphHandler) StoriesVisibility(c *gin.Context) {
	viewerID := middleware.GetUserID(c)
	if viewerID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	visible, err := h.graphService.CanSeeUserStories(c.Request.Context(), viewerID, c.Param("id"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"can_see_stories": visible})
}
