package model

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus enumerates registration approval states.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
	RegistrationRejected RegistrationStatus = "rejected"
)

// Registration links a user to an exam and tracks retake accounting.
type Registration struct {
	ID           uuid.UUID          `json:"id"`
	ExamID       uuid.UUID          `json:"exam_id"`
	UserID       uuid.UUID          `json:"user_id"`
	Status       RegistrationStatus `json:"status"`
	AttemptsUsed int                `json:"attempts_used"`
	NextRetakeAt *time.Time         `json:"next_retake_at,omitempty"`
	RegisteredAt time.Time          `json:"registered_at"`
}

// RegisterRequest is the payload for registering to an exam.
type RegisterRequest struct {
	Password string `json:"password" binding:"omitempty,max=128"`
}
