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

type registrar interface {
	Register(ctx context.Context, userID, examID uuid.UUID, password string) (*model.Registration, bool, error)
	Get(ctx context.Context, userID, examID uuid.UUID) (*model.Registration, error)
}

// RegistrationHandler handles exam registration for students.
type RegistrationHandler struct {
	registrations registrar
	log           zerolog.Logger
}

// NewRegistrationHandler creates a new RegistrationHandler.
func NewRegistrationHandler(registrations registrar, log zerolog.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		registrations: registrations,
		log:           log.With().Str("component", "registration_handler").Logger(),
	}
}

// Register godoc
// POST /api/v1/student/exams/:exam_id/registration
// Registers the caller. Returns 201 for a new registration, 200 for an existing one.
func (h *RegistrationHandler) Register(c *gin.Context) {
	claims := claimsOrFail(c)
	if claims == nil {
		return
	}
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	var req model.RegisterRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	reg, created, err := h.registrations.Register(c.Request.Context(), claims.UserID, examID, req.Password)
	if err != nil {
		failWith(c, h.log, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.Success(c, status, gin.H{"registration": reg})
}

// GetRegistration godoc
// GET /api/v1/student/exams/:exam_id/registration
func (h *RegistrationHandler) GetRegistration(c *gin.Context) {
	claims := claimsOrFail(c)
	if claims == nil {
		return
	}
	examID, ok := uuidParam(c, "exam_id")
	if !ok {
		return
	}

	reg, err := h.registrations.Get(c.Request.Context(), claims.UserID, examID)
	if err != nil {
		failWith(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"registration": reg})
}
