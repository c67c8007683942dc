package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exam-engine/internal/model"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every repository
// runs unchanged inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ExamStore reads exams and maintains their aggregate counters.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListLive(ctx context.Context) ([]model.Exam, error)
	IncrementRegistered(ctx context.Context, id uuid.UUID) error
	RecordSubmission(ctx context.Context, id uuid.UUID, averageScore float64) error
	SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

// RegistrationStore is the registration ledger boundary.
type RegistrationStore interface {
	Get(ctx context.Context, examID, userID uuid.UUID) (*model.Registration, error)
	Create(ctx context.Context, reg *model.Registration) error
	RecordAttempt(ctx context.Context, id uuid.UUID, nextRetakeAt *time.Time) error
}

// AttemptStore persists attempts. Create returns pgx.ErrNoRows when another
// in_progress attempt already exists for the same exam and user.
type AttemptStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	GetForGrading(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	GetInProgress(ctx context.Context, examID, userID uuid.UUID) (*model.Attempt, error)
	Create(ctx context.Context, a *model.Attempt) error
	UpdateProgress(ctx context.Context, id uuid.UUID, counts model.AnswerCounts) error
	Finalize(ctx context.Context, id uuid.UUID, out model.Outcome) error
	SetStanding(ctx context.Context, id uuid.UUID, st model.Standing) error
	ListSubmittedScores(ctx context.Context, examID uuid.UUID) ([]model.ScoredAttempt, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListInProgressByExam(ctx context.Context, examID uuid.UUID) ([]model.Attempt, error)
}

// AnswerStore persists graded answers, one row per (attempt, item).
type AnswerStore interface {
	Upsert(ctx context.Context, a *model.Answer) error
	Recount(ctx context.Context, attemptID uuid.UUID) (model.AnswerCounts, error)
	SumMarks(ctx context.Context, attemptID uuid.UUID) (total, negative float64, err error)
	ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error)
}

// LeaderboardStore keeps the best score per (exam, user).
type LeaderboardStore interface {
	// Upsert inserts the entry or replaces the stored one only when the new
	// score is strictly higher. It reports whether a row was written.
	Upsert(ctx context.Context, e *model.LeaderboardEntry) (bool, error)
	Top(ctx context.Context, examID uuid.UUID, limit int) ([]model.LeaderboardEntry, error)
	Get(ctx context.Context, examID, userID uuid.UUID) (*model.LeaderboardEntry, error)
}

// Store groups the transactional repositories.
type Store interface {
	Exams() ExamStore
	Registrations() RegistrationStore
	Attempts() AttemptStore
	Answers() AnswerStore
	Leaderboard() LeaderboardStore

	// LockExam takes a transaction-scoped lock serializing finalization per exam.
	// It must be called inside WithinTx.
	LockExam(ctx context.Context, examID uuid.UUID) error

	// WithinTx runs fn against a Store bound to a single transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// PgStore is the PostgreSQL implementation of Store.
type PgStore struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

// NewPgStore creates a PgStore backed by pool.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool, db: pool}
}

func (s *PgStore) Exams() ExamStore                 { return NewExamRepository(s.db) }
func (s *PgStore) Registrations() RegistrationStore { return NewRegistrationRepository(s.db) }
func (s *PgStore) Attempts() AttemptStore           { return NewAttemptRepository(s.db) }
func (s *PgStore) Answers() AnswerStore             { return NewAnswerRepository(s.db) }
func (s *PgStore) Leaderboard() LeaderboardStore    { return NewLeaderboardRepository(s.db) }

// LockExam acquires pg_advisory_xact_lock keyed by the exam id.
func (s *PgStore) LockExam(ctx context.Context, examID uuid.UUID) error {
	if !s.inTx {
		return fmt.Errorf("lock exam %s: not inside a transaction", examID)
	}
	_, err := s.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, examID.String())
	return err
}

// WithinTx begins a transaction, or reuses the current one when nested.
func (s *PgStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PgStore{pool: s.pool, db: tx, inTx: true})
	})
}
