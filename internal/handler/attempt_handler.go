package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/response"
	"github.com/stemsi/exam-engine/internal/validator"
)

type attemptLifecycle interface {
	Start(ctx context.Context, userID, examID uuid.UUID) (*model.Attempt, error)
	Get(ctx context.Context, attemptID, userID uuid.UUID) (*model.AttemptView, error)
	Paper(ctx context.Context, attemptID, userID uuid.UUID) (*model.PresentedPaper, error)
	Submit(ctx context.Context, attemptID, userID uuid.UUID) (*model.Attempt, error)
	Expire(ctx context.Context, attemptID, userID uuid.UUID) (*model.Attempt, error)
}

type answerGrader interface {
	SubmitAnswer(ctx context.Context, attemptID, userID uuid.UUID, req model.SubmitAnswerRequest) (*model.AnswerReceipt, error)
}

// AttemptHandler handles the student side of an attempt: start, paper,
// answers and submission.
type AttemptHandler struct {
	lifecycle attemptLifecycle
	grader    answerGrader
	log       zerolog.Logger
	now       func() time.Time
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(lifecycle attemptLifecycle, grader answerGrader, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		lifecycle: lifecycle,
		grader:    grader,
		log:       log.With().Str("component", "attempt_handler").Logger(),
		now:       time.Now,
	}
}

// StartAttempt godoc
// POST /api/v1/student/exams/:exam_id/attempts
// Starts an attempt, or returns the caller's running one (idempotent).
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims := claimsOrFail(c)
	if claims == nil {
		return
	}
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	a, err := h.lifecycle.Start(c.Request.Context(), claims.UserID, examID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	view := model.AttemptView{Attempt: *a, RemainingSeconds: a.RemainingSeconds(h.now())}
	response.Success(c, http.StatusOK, gin.H{"attempt": view})
}

// GetAttempt godoc
// GET /api/v1/student/attempts/:attempt_id
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	claims := claimsOrFail(c)
	if claims == nil {
		return
	}
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	view, err := h.lifecycle.Get(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": view})
}

// GetPaper godoc
// GET /api/v1/student/attempts/:attempt_id/paper
// Returns the questions in this attempt's order, without answer keys.
func (h *AttemptHandler) GetPaper(c *gin.Context) {
	claims := claimsOrFail(c)
	if claims == nil {
		return
	}
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	paper, err := h.lifecycle.Paper(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// SubmitAnswer godoc
// POST /api/v1/student/attempts/:attempt_id/answers
// Grades one answer. Re-answering an item replaces the previous answer.
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	claims := claimsOrFail(c)
	if claims == nil {
		return
	}
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.SubmitAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	receipt, err := h.grader.SubmitAnswer(c.Request.Context(), attemptID, claims.UserID, req)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"answer": receipt})
}

// SubmitAttempt godoc
// POST /api/v1/student/attempts/:attempt_id/submit
// Finalizes the attempt. Submitting twice returns the stored result.
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	h.finish(c, h.lifecycle.Submit)
}

// ExpireAttempt godoc
// POST /api/v1/student/attempts/:attempt_id/expire
// Called by the client when its countdown reaches zero.
func (h *AttemptHandler) ExpireAttempt(c *gin.Context) {
	h.finish(c, h.lifecycle.Expire)
}

func (h *AttemptHandler) finish(c *gin.Context, fn func(ctx context.Context, attemptID, userID uuid.UUID) (*model.Attempt, error)) {
	claims := claimsOrFail(c)
	if claims == nil {
		return
	}
	attemptID, ok := uuidParam(c, "attempt_id")
	if !ok {
		return
	}

	a, err := fn(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": a})
}
