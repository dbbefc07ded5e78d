package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"parkingspace/internal/domain"
	"parkingspace/internal/service"
)

type CommentHandler struct {
	commentService *service.CommentService
}

func NewCommentHandler(cs *service.CommentService) *CommentHandler {
	return &CommentHandler{commentService: cs}
}

// POST /api/v1/comments
func (h *CommentHandler) Add(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var dto domain.AddCommentDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	comment, err := h.commentService.AddComment(c.Request.Context(), actor, dto)
	if err != nil {
		respondError(c, err, "could not add comment")
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// POST /api/v1/comments/:id/replies
func (h *CommentHandler) Reply(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	commentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var dto domain.AddReplyDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reply, err := h.commentService.AddReply(c.Request.Context(), actor, commentID, dto)
	if err != nil {
		respondError(c, err, "could not add reply")
		return
	}
	c.JSON(http.StatusCreated, reply)
}

// GET /api/v1/comments?booking_id=
func (h *CommentHandler) Thread(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var bookingID *int
	if raw := c.Query("booking_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking_id"})
			return
		}
		bookingID = &id
	}
	comments, err := h.commentService.GetThread(c.Request.Context(), actor, bookingID)
	if err != nil {
		respondError(c, err, "could not load comments")
		return
	}
	c.JSON(http.StatusOK, comments)
}
