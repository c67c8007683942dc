package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/repository"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// ErrNotRanked is returned when a user has no leaderboard entry for an exam.
var ErrNotRanked = errors.New("user has no leaderboard entry for this exam")

// LeaderboardService serves leaderboard reads.
type LeaderboardService struct {
	store repository.Store
}

// NewLeaderboardService creates a new LeaderboardService.
func NewLeaderboardService(store repository.Store) *LeaderboardService {
	return &LeaderboardService{store: store}
}

// Top returns up to limit best entries ordered by score, then time spent.
func (s *LeaderboardService) Top(ctx context.Context, examID uuid.UUID, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	if _, err := s.store.Exams().GetByID(ctx, examID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	entries, err := s.store.Leaderboard().Top(ctx, examID, limit)
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	return entries, nil
}

// ForUser returns one user's entry with its current position.
func (s *LeaderboardService) ForUser(ctx context.Context, examID, userID uuid.UUID) (*model.LeaderboardEntry, error) {
	e, err := s.store.Leaderboard().Get(ctx, examID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotRanked
		}
		return nil, fmt.Errorf("get leaderboard entry: %w", err)
	}
	return e, nil
}
