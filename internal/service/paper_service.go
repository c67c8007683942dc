package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/repository"
)

// paperInvalidator is implemented by caching paper readers.
type paperInvalidator interface {
	Invalidate(ctx context.Context, paperID uuid.UUID) error
}

// PaperService keeps the paper cache warm for live exams.
type PaperService struct {
	store  repository.Store
	papers repository.PaperReader
	log    zerolog.Logger
}

// NewPaperService creates a new PaperService.
func NewPaperService(store repository.Store, papers repository.PaperReader, log zerolog.Logger) *PaperService {
	return &PaperService{
		store:  store,
		papers: papers,
		log:    log.With().Str("component", "paper_service").Logger(),
	}
}

// Warm loads an exam's paper items and catalog questions through the cache.
func (s *PaperService) Warm(ctx context.Context, exam *model.Exam) (int, error) {
	items, err := s.papers.Items(ctx, exam.PaperID)
	if err != nil {
		return 0, fmt.Errorf("load paper items: %w", err)
	}
	if _, err := s.papers.CatalogQuestions(ctx, catalogRefs(items)); err != nil {
		return 0, fmt.Errorf("load catalog questions: %w", err)
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("items", len(items)).
		Msg("Paper warmed")
	return len(items), nil
}

// PrewarmLive warms every live exam's paper before traffic arrives, so the
// first wave of starts does not stampede PostgreSQL.
func (s *PaperService) PrewarmLive(ctx context.Context) error {
	exams, err := s.store.Exams().ListLive(ctx)
	if err != nil {
		return fmt.Errorf("list live exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No live exams to prewarm")
		return nil
	}

	warmed := 0
	for i := range exams {
		if _, err := s.Warm(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

// Refresh drops and reloads an exam's cached paper.
func (s *PaperService) Refresh(ctx context.Context, examID uuid.UUID) (int, error) {
	exam, err := s.store.Exams().GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrExamNotFound
		}
		return 0, fmt.Errorf("get exam: %w", err)
	}

	if inv, ok := s.papers.(paperInvalidator); ok {
		if err := inv.Invalidate(ctx, exam.PaperID); err != nil {
			return 0, fmt.Errorf("invalidate paper cache: %w", err)
		}
	}

	n, err := s.Warm(ctx, exam)
	if err != nil {
		return 0, err
	}
	s.log.Info().Str("exam_id", examID.String()).Msg("Cache refreshed")
	return n, nil
}
