package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/exam-engine/internal/model"
)

// AnswerRepository handles answer data access.
type AnswerRepository struct {
	db DBTX
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(db DBTX) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// Upsert writes the answer for (attempt, item). A repeat overwrites the
// grading fields and keeps the original first_viewed_at.
func (r *AnswerRepository) Upsert(ctx context.Context, a *model.Answer) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO answers (attempt_id, item_id, selected_option, is_correct, marks_obtained,
		                      negative_marks, flagged, reviewed, time_spent_seconds,
		                      first_viewed_at, last_viewed_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, $10)
		 ON CONFLICT (attempt_id, item_id) DO UPDATE
		 SET selected_option    = EXCLUDED.selected_option,
		     is_correct         = EXCLUDED.is_correct,
		     marks_obtained     = EXCLUDED.marks_obtained,
		     negative_marks     = EXCLUDED.negative_marks,
		     flagged            = EXCLUDED.flagged,
		     reviewed           = EXCLUDED.reviewed,
		     time_spent_seconds = EXCLUDED.time_spent_seconds,
		     last_viewed_at     = EXCLUDED.last_viewed_at,
		     updated_at         = EXCLUDED.updated_at
		 RETURNING id, first_viewed_at`,
		a.AttemptID, a.ItemID, a.SelectedOption, a.IsCorrect, a.MarksObtained,
		a.NegativeMarks, a.Flagged, a.Reviewed, a.TimeSpentSeconds, a.UpdatedAt,
	).Scan(&a.ID, &a.FirstViewedAt)
}

// Recount derives progress counters from the answers table.
func (r *AnswerRepository) Recount(ctx context.Context, attemptID uuid.UUID) (model.AnswerCounts, error) {
	var c model.AnswerCounts
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE selected_option <> ''),
		        COUNT(*) FILTER (WHERE selected_option <> '' AND is_correct),
		        COUNT(*) FILTER (WHERE selected_option <> '' AND NOT is_correct),
		        COALESCE(SUM(time_spent_seconds), 0)
		 FROM answers WHERE attempt_id = $1`, attemptID,
	).Scan(&c.Attempted, &c.Correct, &c.Incorrect, &c.TimeSpentSeconds)
	return c, err
}

// SumMarks returns the summed marks_obtained and negative_marks of an attempt.
func (r *AnswerRepository) SumMarks(ctx context.Context, attemptID uuid.UUID) (float64, float64, error) {
	var total, negative float64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(marks_obtained), 0)::float8, COALESCE(SUM(negative_marks), 0)::float8
		 FROM answers WHERE attempt_id = $1`, attemptID,
	).Scan(&total, &negative)
	return total, negative, err
}

// ListByAttempt returns all answers recorded for an attempt.
func (r *AnswerRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, attempt_id, item_id, selected_option, is_correct, marks_obtained, negative_marks,
		        flagged, reviewed, time_spent_seconds, first_viewed_at, last_viewed_at, updated_at
		 FROM answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.AttemptID, &a.ItemID, &a.SelectedOption, &a.IsCorrect,
			&a.MarksObtained, &a.NegativeMarks, &a.Flagged, &a.Reviewed, &a.TimeSpentSeconds,
			&a.FirstViewedAt, &a.LastViewedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
