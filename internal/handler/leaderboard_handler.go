package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/response"
)

type leaderboardReader interface {
	Top(ctx context.Context, examID uuid.UUID, limit int) ([]model.LeaderboardEntry, error)
	ForUser(ctx context.Context, examID, userID uuid.UUID) (*model.LeaderboardEntry, error)
}

// LeaderboardHandler serves exam leaderboards.
type LeaderboardHandler struct {
	leaderboard leaderboardReader
	log         zerolog.Logger
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(leaderboard leaderboardReader, log zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboard: leaderboard,
		log:         log.With().Str("component", "leaderboard_handler").Logger(),
	}
}

// Top godoc
// GET /api/v1/student/exams/:exam_id/leaderboard?limit=10
func (h *LeaderboardHandler) Top(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"limit": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := h.leaderboard.Top(c.Request.Context(), examID, limit)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"entries": entries})
}

// Mine godoc
// GET /api/v1/student/exams/:exam_id/leaderboard/me
func (h *LeaderboardHandler) Mine(c *gin.Context) {
	claims := claimsOrFail(c)
	if claims == nil {
		return
	}
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	entry, err := h.leaderboard.ForUser(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"entry": entry})
}
