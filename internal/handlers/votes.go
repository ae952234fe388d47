package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vibeai/backend/internal/logger"
	"github.com/vibeai/backend/internal/util"
	"github.com/vibeai/backend/internal/voting"
	"go.uber.org/zap"
)

// SubmitVote runs a like toggle through the admission pipeline
// POST /api/v1/vote
func (h *Handlers) SubmitVote(c *gin.Context) {
	receivedAt := time.Now()

	var req voting.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		d := voting.Malformed()
		c.JSON(d.Status, d.Body())
		return
	}

	caller := voting.Caller{
		IP:         c.ClientIP(),
		RequestID:  c.GetString("request_id"),
		ReceivedAt: receivedAt,
	}
	if principal, ok := util.GetPrincipalFromContext(c); ok {
		caller.PrincipalID = principal
	}

	// on error the decision is already the generic storage failure
	decision, err := h.pipeline.Submit(c.Request.Context(), &req, caller)
	if err != nil {
		_ = c.Error(err)
	}

	if decision.Status >= http.StatusBadRequest {
		logger.Log.Debug("Vote refused",
			logger.WithRequestID(caller.RequestID),
			logger.WithStage(decision.Stage),
			logger.WithStatus(decision.Status),
		)
	}
	c.JSON(decision.Status, decision.Body())
}

// GetLikeStatus returns the like count of a post and whether a session likes it
// GET /api/v1/posts/:id/likes?sessionId=
func (h *Handlers) GetLikeStatus(c *gin.Context) {
	postID := c.Param("id")
	if postID == "" {
		util.RespondBadRequest(c, "post id is required")
		return
	}

	ctx := c.Request.Context()
	count, err := h.likes.CountLikes(ctx, postID)
	if err != nil {
		logger.Log.Error("Failed to count likes", logger.WithPostID(postID), zap.Error(err))
		util.RespondInternalError(c)
		return
	}

	resp := gin.H{"postId": postID, "count": count}
	if sessionID := c.Query("sessionId"); sessionID != "" {
		liked, err := h.likes.IsLiked(ctx, postID, sessionID)
		if err != nil {
			logger.Log.Error("Failed to read like state", logger.WithPostID(postID), zap.Error(err))
			util.RespondInternalError(c)
			return
		}
		resp["liked"] = liked
	}
	c.JSON(http.StatusOK, resp)
}
