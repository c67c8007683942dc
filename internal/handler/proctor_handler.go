package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/response"
	"github.com/stemsi/exam-engine/internal/validator"
)

const defaultForceSubmitMessage = "Your attempt was submitted by a proctor."

type proctorChannel interface {
	Announce(ctx context.Context, examID uuid.UUID, text string) error
	Warn(ctx context.Context, examID, userID uuid.UUID, text string) error
	ForceSubmit(ctx context.Context, a *model.Attempt, text string) error
}

type attemptForcer interface {
	ForceSubmit(ctx context.Context, attemptID uuid.UUID, reason model.SubmitReason) (*model.Attempt, error)
}

type paperRefresher interface {
	Refresh(ctx context.Context, examID uuid.UUID) (int, error)
}

// ProctorHandler handles proctor commands issued over REST.
type ProctorHandler struct {
	channel proctorChannel
	forcer  attemptForcer
	papers  paperRefresher
	log     zerolog.Logger
}

// NewProctorHandler creates a new ProctorHandler.
func NewProctorHandler(channel proctorChannel, forcer attemptForcer, papers paperRefresher, log zerolog.Logger) *ProctorHandler {
	return &ProctorHandler{
		channel: channel,
		forcer:  forcer,
		papers:  papers,
		log:     log.With().Str("component", "proctor_handler").Logger(),
	}
}

// Announce godoc
// POST /api/v1/proctor/exams/:exam_id/announcements
func (h *ProctorHandler) Announce(c *gin.Context) {
	claims := claimsOrFail(c)
	if claims == nil {
		return
	}
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	var req model.AnnouncementRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.channel.Announce(c.Request.Context(), examID, req.Message); err != nil {
		failWith(c, h.log, err)
		return
	}

	h.log.Info().
		Str("exam_id", examID.String()).
		Str("proctor_id", claims.UserID.String()).
		Msg("Announcement sent")
	response.Success(c, http.StatusAccepted, gin.H{"sent": true})
}

// Warn godoc
// POST /api/v1/proctor/exams/:exam_id/users/:user_id/warnings
func (h *ProctorHandler) Warn(c *gin.Context) {
	claims := claimsOrFail(c)
	if claims == nil {
		return
	}
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}

	var req model.WarningRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.channel.Warn(c.Request.Context(), examID, userID, req.Message); err != nil {
		failWith(c, h.log, err)
		return
	}

	h.log.Info().
		Str("exam_id", examID.String()).
		Str("user_id", userID.String()).
		Str("proctor_id", claims.UserID.String()).
		Msg("Warning sent")
	response.Success(c, http.StatusAccepted, gin.H{"sent": true})
}

// ForceSubmit godoc
// POST /api/v1/proctor/attempts/:attempt_id/force-submit
// Finalizes the attempt server side, then tells the student's client.
// The attempt is closed even when the client cannot be reached.
func (h *ProctorHandler) ForceSubmit(c *gin.Context) {
	claims := claimsOrFail(c)
	if claims == nil {
		return
	}
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.ForceSubmitRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}
	if req.Message == "" {
		req.Message = defaultForceSubmitMessage
	}

	ctx := c.Request.Context()
	a, err := h.forcer.ForceSubmit(ctx, attemptID, model.SubmitProctor)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	notified := true
	if err := h.channel.ForceSubmit(ctx, a, req.Message); err != nil {
		notified = false
		h.log.Warn().Err(err).
			Str("attempt_id", attemptID.String()).
			Msg("Attempt finalized but force_submit not delivered")
	}

	h.log.Info().
		Str("attempt_id", attemptID.String()).
		Str("proctor_id", claims.UserID.String()).
		Msg("Attempt force-submitted")
	response.Success(c, http.StatusOK, gin.H{"attempt": a, "notified": notified})
}

// RefreshPaper godoc
// POST /api/v1/proctor/exams/:exam_id/paper/refresh
// Drops and reloads the cached paper after an out-of-band edit.
func (h *ProctorHandler) RefreshPaper(c *gin.Context) {
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	n, err := h.papers.Refresh(c.Request.Context(), examID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"items": n})
}
