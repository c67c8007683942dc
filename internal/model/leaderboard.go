package model

import (
	"time"

	"github.com/google/uuid"
)

// LeaderboardEntry holds a user's best submitted score for an exam.
type LeaderboardEntry struct {
	ExamID           uuid.UUID `json:"exam_id"`
	UserID           uuid.UUID `json:"user_id"`
	AttemptID        uuid.UUID `json:"attempt_id"`
	Score            float64   `json:"score"`
	Rank             int       `json:"rank"`
	Percentile       float64   `json:"percentile"`
	Accuracy         float64   `json:"accuracy"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	UpdatedAt        time.Time `json:"updated_at"`
}
