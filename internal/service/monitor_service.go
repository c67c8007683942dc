package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/repository"
	"golang.org/x/sync/errgroup"
)

// Presence reports which users hold an open proctoring connection in an exam room.
type Presence interface {
	OnlineUsers(ctx context.Context, examID uuid.UUID) ([]uuid.UUID, error)
}

// MonitorService builds the proctor's live view of an exam.
type MonitorService struct {
	store    repository.Store
	presence Presence
	now      func() time.Time
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(store repository.Store, presence Presence) *MonitorService {
	return &MonitorService{store: store, presence: presence, now: time.Now}
}

// RosterEntry is one running attempt as seen by a proctor.
type RosterEntry struct {
	AttemptID          uuid.UUID `json:"attempt_id"`
	UserID             uuid.UUID `json:"user_id"`
	AttemptNumber      int       `json:"attempt_number"`
	StartedAt          time.Time `json:"started_at"`
	ScheduledEndAt     time.Time `json:"scheduled_end_at"`
	RemainingSeconds   int64     `json:"remaining_seconds"`
	AttemptedQuestions int       `json:"attempted_questions"`
	TotalQuestions     int       `json:"total_questions"`
	Online             bool      `json:"online"`
}

// Roster returns the running attempts of an exam with their connection state.
// Attempts and presence are fetched concurrently.
func (s *MonitorService) Roster(ctx context.Context, examID uuid.UUID) ([]RosterEntry, error) {
	var (
		attempts []model.Attempt
		online   []uuid.UUID
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		attempts, err = s.store.Attempts().ListInProgressByExam(gctx, examID)
		if err != nil {
			return fmt.Errorf("list running attempts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		online, err = s.presence.OnlineUsers(gctx, examID)
		if err != nil {
			return fmt.Errorf("query presence: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	isOnline := make(map[uuid.UUID]bool, len(online))
	for _, id := range online {
		isOnline[id] = true
	}

	now := s.now()
	roster := make([]RosterEntry, 0, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		roster = append(roster, RosterEntry{
			AttemptID:          a.ID,
			UserID:             a.UserID,
			AttemptNumber:      a.AttemptNumber,
			StartedAt:          a.StartedAt,
			ScheduledEndAt:     a.ScheduledEndAt,
			RemainingSeconds:   a.RemainingSeconds(now),
			AttemptedQuestions: a.AttemptedQuestions,
			TotalQuestions:     a.TotalQuestions,
			Online:             isOnline[a.UserID],
		})
	}
	return roster, nil
}
