package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/metrics"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/repository"
	"github.com/stemsi/exam-engine/internal/shuffle"
)

// LifecycleService starts, resumes and closes attempts.
type LifecycleService struct {
	store     repository.Store
	papers    repository.PaperReader
	finalizer *FinalizeService
	log       zerolog.Logger
	now       func() time.Time
	newSeed   func() int64
}

// NewLifecycleService creates a new LifecycleService.
func NewLifecycleService(store repository.Store, papers repository.PaperReader, finalizer *FinalizeService, log zerolog.Logger) *LifecycleService {
	return &LifecycleService{
		store:     store,
		papers:    papers,
		finalizer: finalizer,
		log:       log.With().Str("component", "lifecycle_service").Logger(),
		now:       time.Now,
		newSeed:   shuffle.NewSeed,
	}
}

// Start opens an attempt for userID, or returns the one already running.
func (s *LifecycleService) Start(ctx context.Context, userID, examID uuid.UUID) (*model.Attempt, error) {
	exam, err := s.store.Exams().GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	reg, err := s.store.Registrations().Get(ctx, examID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotRegistered
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	if reg.Status != model.RegistrationApproved {
		return nil, ErrNotRegistered
	}

	// Resume before the window check so a reload after the window closed
	// still lands on the running attempt.
	existing, err := s.store.Attempts().GetInProgress(ctx, examID, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check running attempt: %w", err)
	}

	now := s.now()
	if !exam.AcceptingAttempts(now) {
		return nil, ErrWindowClosed
	}
	if exam.MaxAttempts > 0 && reg.AttemptsUsed >= exam.MaxAttempts {
		return nil, ErrAttemptsExhausted
	}
	if reg.NextRetakeAt != nil && now.Before(*reg.NextRetakeAt) {
		return nil, ErrRetakeLocked
	}

	items, err := s.papers.Items(ctx, exam.PaperID)
	if err != nil {
		return nil, fmt.Errorf("load paper: %w", err)
	}

	attempt := &model.Attempt{
		ExamID:           examID,
		UserID:           userID,
		RegistrationID:   reg.ID,
		AttemptNumber:    reg.AttemptsUsed + 1,
		Status:           model.AttemptInProgress,
		StartedAt:        now,
		ScheduledEndAt:   now.Add(exam.Duration()),
		ShuffleSeed:      s.newSeed(),
		TotalQuestions:   len(items),
		SkippedQuestions: len(items),
	}

	if err := s.store.Attempts().Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent start won the partial unique index.
			winner, fetchErr := s.store.Attempts().GetInProgress(ctx, examID, userID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	metrics.AttemptsStarted.Inc()
	s.log.Info().
		Str("exam_id", examID.String()).
		Str("user_id", userID.String()).
		Str("attempt_id", attempt.ID.String()).
		Int("attempt_number", attempt.AttemptNumber).
		Time("scheduled_end_at", attempt.ScheduledEndAt).
		Msg("Attempt started")
	return attempt, nil
}

// Get returns the caller's attempt with its remaining time.
func (s *LifecycleService) Get(ctx context.Context, attemptID, userID uuid.UUID) (*model.AttemptView, error) {
	a, err := s.owned(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	return &model.AttemptView{Attempt: *a, RemainingSeconds: a.RemainingSeconds(s.now())}, nil
}

// Submit finalizes the caller's attempt on request.
func (s *LifecycleService) Submit(ctx context.Context, attemptID, userID uuid.UUID) (*model.Attempt, error) {
	if _, err := s.owned(ctx, attemptID, userID); err != nil {
		return nil, err
	}
	return s.finalizer.Finalize(ctx, attemptID, model.SubmitManual)
}

// Expire is the client's timeout callback: it finalizes the caller's attempt
// with reason timeout.
func (s *LifecycleService) Expire(ctx context.Context, attemptID, userID uuid.UUID) (*model.Attempt, error) {
	if _, err := s.owned(ctx, attemptID, userID); err != nil {
		return nil, err
	}
	return s.finalizer.Finalize(ctx, attemptID, model.SubmitTimeout)
}

// ForceSubmit finalizes an attempt without ownership or deadline checks.
// Calling it on a submitted attempt returns the stored result.
func (s *LifecycleService) ForceSubmit(ctx context.Context, attemptID uuid.UUID, reason model.SubmitReason) (*model.Attempt, error) {
	return s.finalizer.Finalize(ctx, attemptID, reason)
}

// VerifyAttempt checks that userID owns a running attempt attemptID of examID.
func (s *LifecycleService) VerifyAttempt(ctx context.Context, attemptID, userID, examID uuid.UUID) (*model.Attempt, error) {
	a, err := s.owned(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if a.ExamID != examID {
		return nil, ErrAttemptForbidden
	}
	if a.IsSubmitted() {
		return nil, ErrAttemptNotActive
	}
	return a, nil
}

// Paper renders the attempt's paper. A submitted attempt can only be
// reviewed when the exam allows it.
func (s *LifecycleService) Paper(ctx context.Context, attemptID, userID uuid.UUID) (*model.PresentedPaper, error) {
	a, err := s.owned(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	exam, err := s.store.Exams().GetByID(ctx, a.ExamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if a.IsSubmitted() && !exam.AllowReview {
		return nil, ErrAttemptNotActive
	}

	items, err := s.papers.Items(ctx, exam.PaperID)
	if err != nil {
		return nil, fmt.Errorf("load paper: %w", err)
	}
	catalog, err := s.papers.CatalogQuestions(ctx, catalogRefs(items))
	if err != nil {
		return nil, fmt.Errorf("load catalog questions: %w", err)
	}

	presented, err := Present(a, exam, items, catalog)
	if err != nil {
		return nil, err
	}

	answers, err := s.store.Answers().ListByAttempt(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	byItem := make(map[uuid.UUID]*model.Answer, len(answers))
	for i := range answers {
		byItem[answers[i].ItemID] = &answers[i]
	}
	for i := range presented {
		if ans, ok := byItem[presented[i].ItemID]; ok {
			presented[i].SelectedOption = ans.SelectedOption
			presented[i].Flagged = ans.Flagged
		}
	}

	return &model.PresentedPaper{
		AttemptID:        a.ID,
		ExamID:           exam.ID,
		Title:            exam.Title,
		AllowNavigation:  exam.AllowNavigation,
		AllowReview:      exam.AllowReview,
		RemainingSeconds: a.RemainingSeconds(s.now()),
		Items:            presented,
	}, nil
}

// ListRunning returns an exam's in-progress attempts.
func (s *LifecycleService) ListRunning(ctx context.Context, examID uuid.UUID) ([]model.Attempt, error) {
	attempts, err := s.store.Attempts().ListInProgressByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list running attempts: %w", err)
	}
	return attempts, nil
}

func (s *LifecycleService) owned(ctx context.Context, attemptID, userID uuid.UUID) (*model.Attempt, error) {
	a, err := s.store.Attempts().GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if a.UserID != userID {
		return nil, ErrAttemptForbidden
	}
	return a, nil
}
