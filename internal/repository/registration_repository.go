package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exam-engine/internal/model"
)

// RegistrationRepository handles registration data access.
type RegistrationRepository struct {
	db DBTX
}

// NewRegistrationRepository creates a new RegistrationRepository.
func NewRegistrationRepository(db DBTX) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Get retrieves the registration of a user for an exam.
func (r *RegistrationRepository) Get(ctx context.Context, examID, userID uuid.UUID) (*model.Registration, error) {
	reg := &model.Registration{}
	err := r.db.QueryRow(ctx,
		`SELECT id, exam_id, user_id, status, attempts_used, next_retake_at, registered_at
		 FROM registrations
		 WHERE exam_id = $1 AND user_id = $2`, examID, userID,
	).Scan(&reg.ID, &reg.ExamID, &reg.UserID, &reg.Status, &reg.AttemptsUsed, &reg.NextRetakeAt, &reg.RegisteredAt)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Create inserts a registration. A concurrent duplicate yields pgx.ErrNoRows.
func (r *RegistrationRepository) Create(ctx context.Context, reg *model.Registration) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO registrations (exam_id, user_id, status, registered_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (exam_id, user_id) DO NOTHING
		 RETURNING id`,
		reg.ExamID, reg.UserID, reg.Status, reg.RegisteredAt,
	).Scan(&reg.ID)
}

// RecordAttempt increments attempts_used and sets the next retake time
// (NULL clears it).
func (r *RegistrationRepository) RecordAttempt(ctx context.Context, id uuid.UUID, nextRetakeAt *time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE registrations
		 SET attempts_used = attempts_used + 1, next_retake_at = $2
		 WHERE id = $1`, id, nextRetakeAt)
	return err
}
