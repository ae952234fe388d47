package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/vibeai/backend/internal/util"
)

// Register mounts the API on r. limitChallenges guards challenge issuance.
func (h *Handlers) Register(r gin.IRouter, limitChallenges gin.HandlerFunc) {
	r.GET("/health", h.Health)
	if engine, ok := r.(*gin.Engine); ok {
		engine.NoRoute(func(c *gin.Context) {
			util.RespondNotFound(c, "route")
		})
	}

	api := r.Group("/api/v1")
	{
		api.POST("/vote", h.SubmitVote)
		api.GET("/posts/:id/likes", h.GetLikeStatus)

		challenges := api.Group("/challenges")
		if limitChallenges != nil {
			challenges.Use(limitChallenges)
		}
		{
			challenges.GET("/pow", h.IssueProofOfWork)
			challenges.GET("/time", h.IssueTimeChallenge)
		}
	}
}
