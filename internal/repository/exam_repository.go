package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/exam-engine/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	db DBTX
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(db DBTX) *ExamRepository {
	return &ExamRepository{db: db}
}

const examColumns = `id, title, paper_id, scheduled_start, scheduled_end,
	duration_minutes, buffer_minutes, access_policy, password_hash,
	max_attempts, retake_delay_minutes, negative_marking, negative_marking_fraction,
	passing_score, shuffle_questions, shuffle_options, allow_navigation, allow_review,
	status, registered_count, attempted_count, average_score, created_at, updated_at`

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.db.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.PaperID, &e.ScheduledStart, &e.ScheduledEnd,
		&e.DurationMinutes, &e.BufferMinutes, &e.AccessPolicy, &e.PasswordHash,
		&e.MaxAttempts, &e.RetakeDelayMinutes, &e.NegativeMarking, &e.NegativeMarkingFraction,
		&e.PassingScore, &e.ShuffleQuestions, &e.ShuffleOptions, &e.AllowNavigation, &e.AllowReview,
		&e.Status, &e.RegisteredCount, &e.AttemptedCount, &e.AverageScore, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListLive returns all exams currently in the live status.
func (r *ExamRepository) ListLive(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+examColumns+` FROM exams WHERE status = $1 ORDER BY scheduled_start`, model.ExamStatusLive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.PaperID, &e.ScheduledStart, &e.ScheduledEnd,
			&e.DurationMinutes, &e.BufferMinutes, &e.AccessPolicy, &e.PasswordHash,
			&e.MaxAttempts, &e.RetakeDelayMinutes, &e.NegativeMarking, &e.NegativeMarkingFraction,
			&e.PassingScore, &e.ShuffleQuestions, &e.ShuffleOptions, &e.AllowNavigation, &e.AllowReview,
			&e.Status, &e.RegisteredCount, &e.AttemptedCount, &e.AverageScore, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// IncrementRegistered bumps registered_count after a new registration.
func (r *ExamRepository) IncrementRegistered(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE exams SET registered_count = registered_count + 1, updated_at = NOW() WHERE id = $1`, id)
	return err
}

// RecordSubmission stores the recomputed average and counts one more submitted attempt.
func (r *ExamRepository) RecordSubmission(ctx context.Context, id uuid.UUID, averageScore float64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE exams
		 SET attempted_count = attempted_count + 1, average_score = $2, updated_at = NOW()
		 WHERE id = $1`, id, averageScore)
	return err
}

// SetPasswordHash replaces the bcrypt hash guarding a private exam.
func (r *ExamRepository) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE exams SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRowsAffected
	}
	return nil
}
