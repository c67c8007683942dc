package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exam-engine/internal/model"
)

// AttemptRepository handles attempt data access.
type AttemptRepository struct {
	db DBTX
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(db DBTX) *AttemptRepository {
	return &AttemptRepository{db: db}
}

const attemptColumns = `id, exam_id, user_id, registration_id, attempt_number, status,
	started_at, scheduled_end_at, submitted_at, submit_reason, shuffle_seed,
	total_questions, attempted_questions, correct_answers, incorrect_answers,
	skipped_questions, time_spent_seconds, total_marks, negative_marks,
	final_score, percentage, rank, percentile, result`

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(&a.ID, &a.ExamID, &a.UserID, &a.RegistrationID, &a.AttemptNumber, &a.Status,
		&a.StartedAt, &a.ScheduledEndAt, &a.SubmittedAt, &a.SubmitReason, &a.ShuffleSeed,
		&a.TotalQuestions, &a.AttemptedQuestions, &a.CorrectAnswers, &a.IncorrectAnswers,
		&a.SkippedQuestions, &a.TimeSpentSeconds, &a.TotalMarks, &a.NegativeMarks,
		&a.FinalScore, &a.Percentage, &a.Rank, &a.Percentile, &a.Result)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an attempt without locking.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.db.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id))
}

// GetForUpdate retrieves an attempt and holds an exclusive row lock until
// the surrounding transaction ends.
func (r *AttemptRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.db.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = $1 FOR UPDATE`, id))
}

// GetForGrading retrieves an attempt under FOR NO KEY UPDATE. Answers to the
// same attempt queue behind each other and finalization waits for them.
func (r *AttemptRepository) GetForGrading(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.db.QueryRow(ctx, `SELECT `+attemptColumns+` FROM attempts WHERE id = $1 FOR NO KEY UPDATE`, id))
}

// GetInProgress returns the running attempt of a user for an exam, if any.
func (r *AttemptRepository) GetInProgress(ctx context.Context, examID, userID uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.db.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE exam_id = $1 AND user_id = $2 AND status = 'in_progress'`, examID, userID))
}

// Create inserts a new in_progress attempt. When the partial unique index
// already holds a running attempt for (exam, user) nothing is inserted and
// pgx.ErrNoRows is returned.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO attempts (exam_id, user_id, registration_id, attempt_number, status,
		                       started_at, scheduled_end_at, shuffle_seed, total_questions, skipped_questions)
		 VALUES ($1, $2, $3, $4, 'in_progress', $5, $6, $7, $8, $8)
		 ON CONFLICT (exam_id, user_id) WHERE status = 'in_progress' DO NOTHING
		 RETURNING id`,
		a.ExamID, a.UserID, a.RegistrationID, a.AttemptNumber,
		a.StartedAt, a.ScheduledEndAt, a.ShuffleSeed, a.TotalQuestions,
	).Scan(&a.ID)
}

// UpdateProgress writes freshly recounted answer counters onto a running attempt.
func (r *AttemptRepository) UpdateProgress(ctx context.Context, id uuid.UUID, c model.AnswerCounts) error {
	_, err := r.db.Exec(ctx,
		`UPDATE attempts
		 SET attempted_questions = $2, correct_answers = $3, incorrect_answers = $4,
		     skipped_questions = GREATEST(total_questions - $2, 0), time_spent_seconds = $5
		 WHERE id = $1 AND status = 'in_progress'`,
		id, c.Attempted, c.Correct, c.Incorrect, c.TimeSpentSeconds)
	return err
}

// Finalize moves an attempt to submitted and stores its results. Only an
// in_progress row is touched; ErrNoRowsAffected means it was already final.
func (r *AttemptRepository) Finalize(ctx context.Context, id uuid.UUID, out model.Outcome) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE attempts
		 SET status = 'submitted', submitted_at = $2, submit_reason = $3,
		     attempted_questions = $4, correct_answers = $5, incorrect_answers = $6,
		     skipped_questions = $7, time_spent_seconds = $8,
		     total_marks = $9, negative_marks = $10, final_score = $11,
		     percentage = $12, result = $13
		 WHERE id = $1 AND status = 'in_progress'`,
		id, out.SubmittedAt, out.Reason,
		out.Counts.Attempted, out.Counts.Correct, out.Counts.Incorrect,
		out.Skipped, out.Counts.TimeSpentSeconds,
		out.TotalMarks, out.NegativeMarks, out.FinalScore,
		out.Percentage, out.Result)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRowsAffected
	}
	return nil
}

// SetStanding stores the rank snapshot computed at finalization.
func (r *AttemptRepository) SetStanding(ctx context.Context, id uuid.UUID, st model.Standing) error {
	_, err := r.db.Exec(ctx,
		`UPDATE attempts SET rank = $2, percentile = $3 WHERE id = $1`, id, st.Rank, st.Percentile)
	return err
}

// ListSubmittedScores returns every submitted attempt of an exam in ranking order.
func (r *AttemptRepository) ListSubmittedScores(ctx context.Context, examID uuid.UUID) ([]model.ScoredAttempt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, COALESCE(final_score, 0), submitted_at
		 FROM attempts
		 WHERE exam_id = $1 AND status = 'submitted'
		 ORDER BY final_score DESC, submitted_at ASC, id ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []model.ScoredAttempt
	for rows.Next() {
		var s model.ScoredAttempt
		if err := rows.Scan(&s.AttemptID, &s.FinalScore, &s.SubmittedAt); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// ListOverdue returns in_progress attempts whose deadline plus the exam's
// buffer has passed at now.
func (r *AttemptRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx,
		`SELECT a.id
		 FROM attempts a
		 JOIN exams e ON e.id = a.exam_id
		 WHERE a.status = 'in_progress'
		   AND a.scheduled_end_at + make_interval(mins => e.buffer_minutes) < $1
		 ORDER BY a.scheduled_end_at
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListInProgressByExam returns the running attempts of an exam for proctors.
func (r *AttemptRepository) ListInProgressByExam(ctx context.Context, examID uuid.UUID) ([]model.Attempt, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts
		 WHERE exam_id = $1 AND status = 'in_progress'
		 ORDER BY started_at`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, *a)
	}
	return attempts, rows.Err()
}
