package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// RegistrationService manages the registration ledger from the student side.
type RegistrationService struct {
	store repository.Store
	log   zerolog.Logger
	now   func() time.Time
	cost  int
}

// NewRegistrationService creates a new RegistrationService.
func NewRegistrationService(store repository.Store, log zerolog.Logger) *RegistrationService {
	return &RegistrationService{
		store: store,
		log:   log.With().Str("component", "registration_service").Logger(),
		now:   time.Now,
		cost:  bcrypt.DefaultCost,
	}
}

// initialStatus decides how a new registration starts. Public exams and
// password-protected private exams approve themselves; invite-only exams and
// private exams without a password wait for an organiser.
func initialStatus(exam *model.Exam, password string) (model.RegistrationStatus, error) {
	switch exam.AccessPolicy {
	case model.AccessPublic:
		return model.RegistrationApproved, nil
	case model.AccessPrivate:
		if exam.PasswordHash == "" {
			return model.RegistrationPending, nil
		}
		if err := bcrypt.CompareHashAndPassword([]byte(exam.PasswordHash), []byte(password)); err != nil {
			return "", ErrInvalidExamPassword
		}
		return model.RegistrationApproved, nil
	default:
		return model.RegistrationPending, nil
	}
}

// Register enrols userID in an exam. An existing registration is returned
// as-is; the boolean reports whether a new one was created.
func (s *RegistrationService) Register(ctx context.Context, userID, examID uuid.UUID, password string) (*model.Registration, bool, error) {
	exam, err := s.store.Exams().GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, ErrExamNotFound
		}
		return nil, false, fmt.Errorf("get exam: %w", err)
	}

	existing, err := s.store.Registrations().Get(ctx, examID, userID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("check registration: %w", err)
	}

	if exam.Status != model.ExamStatusScheduled && exam.Status != model.ExamStatusLive {
		return nil, false, ErrRegistrationClosed
	}

	status, err := initialStatus(exam, password)
	if err != nil {
		return nil, false, err
	}

	reg := &model.Registration{
		ExamID:       examID,
		UserID:       userID,
		Status:       status,
		RegisteredAt: s.now(),
	}

	created := true
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Registrations().Create(ctx, reg); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				created = false
				return nil
			}
			return fmt.Errorf("create registration: %w", err)
		}
		if err := tx.Exams().IncrementRegistered(ctx, examID); err != nil {
			return fmt.Errorf("increment registered count: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if !created {
		// Concurrent register won the unique (exam_id, user_id) constraint.
		winner, err := s.store.Registrations().Get(ctx, examID, userID)
		if err != nil {
			return nil, false, fmt.Errorf("concurrent registration detected, but fetch failed: %w", err)
		}
		return winner, false, nil
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Str("user_id", userID.String()).
		Str("status", string(status)).
		Msg("Registered")
	return reg, true, nil
}

// Get returns the caller's registration for an exam.
func (s *RegistrationService) Get(ctx context.Context, userID, examID uuid.UUID) (*model.Registration, error) {
	reg, err := s.store.Registrations().Get(ctx, examID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotRegistered
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// SetExamPassword stores the bcrypt hash guarding a private exam. An empty
// password clears it, after which new registrations wait for approval.
func (s *RegistrationService) SetExamPassword(ctx context.Context, examID uuid.UUID, password string) error {
	hash := ""
	if password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
		if err != nil {
			return fmt.Errorf("hash exam password: %w", err)
		}
		hash = string(h)
	}

	if err := s.store.Exams().SetPasswordHash(ctx, examID, hash); err != nil {
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return ErrExamNotFound
		}
		return fmt.Errorf("set exam password: %w", err)
	}

	s.log.Info().Str("exam_id", examID.String()).Bool("cleared", hash == "").Msg("Exam password updated")
	return nil
}
