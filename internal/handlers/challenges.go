package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/vibeai/backend/internal/errors"
	"github.com/vibeai/backend/internal/logger"
	"github.com/vibeai/backend/internal/metrics"
	"github.com/vibeai/backend/internal/util"
	"go.uber.org/zap"
)

// IssueProofOfWork hands out a fresh puzzle. The tier is clamped to the
// configured range.
// GET /api/v1/challenges/pow?tier=
func (h *Handlers) IssueProofOfWork(c *gin.Context) {
	raw := c.DefaultQuery("tier", "0")
	if _, err := strconv.Atoi(raw); err != nil {
		util.RespondWithAPIError(c, errors.InvalidField("tier", "tier must be an integer"))
		return
	}
	tier := util.ClampInt(util.ParseInt(raw, 0), 0, h.maxTier)

	challenge, err := h.pow.Issue(tier)
	if err != nil {
		logger.Log.Error("Failed to issue proof of work", zap.Error(err))
		util.RespondInternalError(c)
		return
	}
	metrics.Get().ChallengesIssuedTotal.WithLabelValues("pow").Inc()
	c.JSON(http.StatusOK, challenge)
}

// IssueTimeChallenge hands out a signed dwell-time token
// GET /api/v1/challenges/time
func (h *Handlers) IssueTimeChallenge(c *gin.Context) {
	challenge, err := h.time.Issue()
	if err != nil {
		logger.Log.Error("Failed to issue time challenge", zap.Error(err))
		util.RespondInternalError(c)
		return
	}
	metrics.Get().ChallengesIssuedTotal.WithLabelValues("time").Inc()
	c.JSON(http.StatusOK, challenge)
}
