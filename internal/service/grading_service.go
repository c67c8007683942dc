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
)

// GradingService grades answers as they arrive.
type GradingService struct {
	store  repository.Store
	papers repository.PaperReader
	log    zerolog.Logger
	now    func() time.Time
}

// NewGradingService creates a new GradingService.
func NewGradingService(store repository.Store, papers repository.PaperReader, log zerolog.Logger) *GradingService {
	return &GradingService{
		store:  store,
		papers: papers,
		log:    log.With().Str("component", "grading_service").Logger(),
		now:    time.Now,
	}
}

// gradeAnswer scores one selection. A blank selection scores nothing either
// way; a wrong one records the penalty in NegativeMarks and leaves
// MarksObtained at zero.
func gradeAnswer(item *model.PaperItem, penaltyFraction float64, selected, correct string) (isCorrect bool, marks, negative float64) {
	switch {
	case selected == "":
		return false, 0, 0
	case selected == correct:
		return true, item.Marks, 0
	default:
		return false, 0, penaltyFraction * item.Marks
	}
}

// SubmitAnswer grades and stores the caller's answer for one item. The
// attempt's own deadline is the cutoff, not the exam window.
func (s *GradingService) SubmitAnswer(ctx context.Context, attemptID, userID uuid.UUID, req model.SubmitAnswerRequest) (*model.AnswerReceipt, error) {
	if !model.ValidOption(req.SelectedOption) {
		return nil, ErrInvalidOption
	}

	var receipt *model.AnswerReceipt
	var outcome string

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		a, err := tx.Attempts().GetForGrading(ctx, attemptID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("lock attempt: %w", err)
		}
		if a.UserID != userID {
			return ErrAttemptForbidden
		}

		now := s.now()
		if !a.AcceptsAnswersAt(now) {
			return ErrAttemptNotActive
		}

		exam, err := tx.Exams().GetByID(ctx, a.ExamID)
		if err != nil {
			return fmt.Errorf("get exam: %w", err)
		}

		items, err := s.papers.Items(ctx, exam.PaperID)
		if err != nil {
			return fmt.Errorf("load paper: %w", err)
		}
		var item *model.PaperItem
		for i := range items {
			if items[i].ID == req.ItemID {
				item = &items[i]
				break
			}
		}
		if item == nil {
			return ErrItemNotInPaper
		}

		var catalog map[uuid.UUID]*model.CatalogQuestion
		if !item.IsCustom && item.QuestionID != nil {
			catalog, err = s.papers.CatalogQuestions(ctx, []uuid.UUID{*item.QuestionID})
			if err != nil {
				return fmt.Errorf("load catalog question: %w", err)
			}
		}
		q, err := resolveQuestion(item, catalog)
		if err != nil {
			return err
		}

		isCorrect, marks, negative := gradeAnswer(item, exam.PenaltyFraction(), req.SelectedOption, q.correct)
		ans := &model.Answer{
			AttemptID:        a.ID,
			ItemID:           item.ID,
			SelectedOption:   req.SelectedOption,
			IsCorrect:        isCorrect,
			MarksObtained:    marks,
			NegativeMarks:    negative,
			Flagged:          req.Flagged,
			Reviewed:         req.Reviewed,
			TimeSpentSeconds: req.TimeSpentSeconds,
			UpdatedAt:        now,
		}
		if err := tx.Answers().Upsert(ctx, ans); err != nil {
			return fmt.Errorf("upsert answer: %w", err)
		}

		counts, err := tx.Answers().Recount(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("recount answers: %w", err)
		}
		if err := tx.Attempts().UpdateProgress(ctx, a.ID, counts); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}

		switch {
		case !ans.Answered():
			outcome = "blank"
		case isCorrect:
			outcome = "correct"
		default:
			outcome = "incorrect"
		}

		receipt = &model.AnswerReceipt{
			ItemID:             item.ID,
			SelectedOption:     ans.SelectedOption,
			Flagged:            ans.Flagged,
			AttemptedQuestions: counts.Attempted,
			TotalQuestions:     a.TotalQuestions,
			RemainingSeconds:   a.RemainingSeconds(now),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AnswersGraded.WithLabelValues(outcome).Inc()
	s.log.Debug().
		Str("attempt_id", attemptID.String()).
		Str("item_id", req.ItemID.String()).
		Str("outcome", outcome).
		Msg("Answer graded")
	return receipt, nil
}
