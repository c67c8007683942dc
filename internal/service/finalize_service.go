package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/metrics"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/repository"
)

// Notifier is told about attempts that were just finalized.
type Notifier interface {
	AttemptSubmitted(a *model.Attempt)
}

// FinalizeService performs the one-way in_progress -> submitted transition
// and everything derived from it.
type FinalizeService struct {
	store    repository.Store
	papers   repository.PaperReader
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time
}

// NewFinalizeService creates a new FinalizeService. notifier may be nil.
func NewFinalizeService(store repository.Store, papers repository.PaperReader, notifier Notifier, log zerolog.Logger) *FinalizeService {
	return &FinalizeService{
		store:    store,
		papers:   papers,
		notifier: notifier,
		log:      log.With().Str("component", "finalize_service").Logger(),
		now:      time.Now,
	}
}

// Finalize submits an attempt and computes its score, rank, the exam
// aggregates and the leaderboard entry, all in one transaction serialized
// per exam. A submitted attempt is returned unchanged.
func (s *FinalizeService) Finalize(ctx context.Context, attemptID uuid.UUID, reason model.SubmitReason) (*model.Attempt, error) {
	current, err := s.store.Attempts().GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if current.IsSubmitted() {
		return current, nil
	}

	var final *model.Attempt
	finalized := false

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.LockExam(ctx, current.ExamID); err != nil {
			return fmt.Errorf("lock exam: %w", err)
		}

		a, err := tx.Attempts().GetForUpdate(ctx, attemptID)
		if err != nil {
			return fmt.Errorf("lock attempt: %w", err)
		}
		if a.IsSubmitted() {
			final = a
			return nil
		}

		exam, err := tx.Exams().GetByID(ctx, a.ExamID)
		if err != nil {
			return fmt.Errorf("get exam: %w", err)
		}

		counts, err := tx.Answers().Recount(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("recount answers: %w", err)
		}
		total, negative, err := tx.Answers().SumMarks(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("sum marks: %w", err)
		}

		items, err := s.papers.Items(ctx, exam.PaperID)
		if err != nil {
			return fmt.Errorf("load paper: %w", err)
		}

		now := s.now()
		out := computeOutcome(exam, a, counts, total, negative, maxMarks(items))
		out.SubmittedAt = now
		out.Reason = reason

		if err := tx.Attempts().Finalize(ctx, a.ID, out); err != nil {
			return fmt.Errorf("finalize attempt: %w", err)
		}

		var nextRetake *time.Time
		if d := exam.RetakeDelay(); d > 0 {
			t := now.Add(d)
			nextRetake = &t
		}
		if err := tx.Registrations().RecordAttempt(ctx, a.RegistrationID, nextRetake); err != nil {
			return fmt.Errorf("record attempt on registration: %w", err)
		}

		scores, err := tx.Attempts().ListSubmittedScores(ctx, exam.ID)
		if err != nil {
			return fmt.Errorf("list submitted scores: %w", err)
		}
		standing, average := computeStanding(scores, a.ID)
		if err := tx.Attempts().SetStanding(ctx, a.ID, standing); err != nil {
			return fmt.Errorf("store standing: %w", err)
		}

		if err := tx.Exams().RecordSubmission(ctx, exam.ID, average); err != nil {
			return fmt.Errorf("update exam stats: %w", err)
		}

		entry := &model.LeaderboardEntry{
			ExamID:           exam.ID,
			UserID:           a.UserID,
			AttemptID:        a.ID,
			Score:            out.FinalScore,
			Rank:             standing.Rank,
			Percentile:       standing.Percentile,
			Accuracy:         accuracy(out.Counts),
			TimeSpentSeconds: out.Counts.TimeSpentSeconds,
			UpdatedAt:        now,
		}
		if _, err := tx.Leaderboard().Upsert(ctx, entry); err != nil {
			return fmt.Errorf("upsert leaderboard: %w", err)
		}

		final, err = tx.Attempts().GetByID(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("reload attempt: %w", err)
		}
		finalized = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if finalized {
		metrics.AttemptsFinalized.WithLabelValues(string(reason)).Inc()
		s.log.Info().
			Str("exam_id", final.ExamID.String()).
			Str("attempt_id", final.ID.String()).
			Str("user_id", final.UserID.String()).
			Str("reason", string(reason)).
			Float64("final_score", deref(final.FinalScore)).
			Msg("Attempt finalized")
		if s.notifier != nil {
			s.notifier.AttemptSubmitted(final)
		}
	}
	return final, nil
}

// computeOutcome derives the immutable results of an attempt. The
// percentage is taken against the paper's maximum marks; with one mark per
// item that is the number of questions.
func computeOutcome(exam *model.Exam, a *model.Attempt, counts model.AnswerCounts, total, negative, possible float64) model.Outcome {
	final := math.Max(0, total-negative)

	if possible <= 0 {
		possible = float64(a.TotalQuestions)
	}
	var percentage float64
	if possible > 0 {
		percentage = math.Round(final / possible * 100)
	}

	result := model.ResultFail
	if final >= exam.PassingScore {
		result = model.ResultPass
	}

	skipped := a.TotalQuestions - counts.Attempted
	if skipped < 0 {
		skipped = 0
	}

	return model.Outcome{
		TotalMarks:    total,
		NegativeMarks: negative,
		FinalScore:    final,
		Percentage:    percentage,
		Counts:        counts,
		Skipped:       skipped,
		Result:        result,
	}
}

// computeStanding ranks attemptID among all submitted attempts by score
// descending, then earlier submission, then id. It also returns the mean
// score rounded to two decimals.
func computeStanding(scores []model.ScoredAttempt, attemptID uuid.UUID) (model.Standing, float64) {
	if len(scores) == 0 {
		return model.Standing{}, 0
	}

	ranked := make([]model.ScoredAttempt, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.Before(b.SubmittedAt)
		}
		return a.AttemptID.String() < b.AttemptID.String()
	})

	var st model.Standing
	var sum float64
	n := len(ranked)
	for i, sc := range ranked {
		sum += sc.FinalScore
		if sc.AttemptID == attemptID {
			st.Rank = i + 1
			st.Percentile = math.Round(float64(n-st.Rank) / float64(n) * 100)
		}
	}
	return st, round2(sum / float64(n))
}

func maxMarks(items []model.PaperItem) float64 {
	var sum float64
	for i := range items {
		sum += items[i].Marks
	}
	return sum
}

func accuracy(c model.AnswerCounts) float64 {
	if c.Attempted == 0 {
		return 0
	}
	return round2(float64(c.Correct) / float64(c.Attempted) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
