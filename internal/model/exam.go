package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "draft"
	ExamStatusScheduled ExamStatus = "scheduled"
	ExamStatusLive      ExamStatus = "live"
	ExamStatusCompleted ExamStatus = "completed"
	ExamStatusArchived  ExamStatus = "archived"
)

// AccessPolicy controls how registrations for an exam are approved.
type AccessPolicy string

const (
	AccessPublic  AccessPolicy = "public"
	AccessPrivate AccessPolicy = "private"
	AccessInvite  AccessPolicy = "invite"
)

// Exam is the exam definition. Everything except the aggregate counters
// is owned by exam authoring.
type Exam struct {
	ID                      uuid.UUID    `json:"id"`
	Title                   string       `json:"title"`
	PaperID                 uuid.UUID    `json:"paper_id"`
	ScheduledStart          time.Time    `json:"scheduled_start"`
	ScheduledEnd            time.Time    `json:"scheduled_end"`
	DurationMinutes         int          `json:"duration_minutes"`
	BufferMinutes           int          `json:"buffer_minutes"`
	AccessPolicy            AccessPolicy `json:"access_policy"`
	PasswordHash            string       `json:"-"`
	MaxAttempts             int          `json:"max_attempts"`
	RetakeDelayMinutes      int          `json:"retake_delay_minutes"`
	NegativeMarking         bool         `json:"negative_marking"`
	NegativeMarkingFraction float64      `json:"negative_marking_fraction"`
	PassingScore            float64      `json:"passing_score"`
	ShuffleQuestions        bool         `json:"shuffle_questions"`
	ShuffleOptions          bool         `json:"shuffle_options"`
	AllowNavigation         bool         `json:"allow_navigation"`
	AllowReview             bool         `json:"allow_review"`
	Status                  ExamStatus   `json:"status"`
	RegisteredCount         int          `json:"registered_count"`
	AttemptedCount          int          `json:"attempted_count"`
	AverageScore            float64      `json:"average_score"`
	CreatedAt               time.Time    `json:"created_at"`
	UpdatedAt               time.Time    `json:"updated_at"`
}

// Duration returns the per-attempt time allowance.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// Buffer returns the grace period after an attempt's deadline before the
// sweeper finalizes it.
func (e *Exam) Buffer() time.Duration {
	return time.Duration(e.BufferMinutes) * time.Minute
}

// RetakeDelay returns the wait imposed between two attempts, zero when unset.
func (e *Exam) RetakeDelay() time.Duration {
	return time.Duration(e.RetakeDelayMinutes) * time.Minute
}

// PenaltyFraction is the share of an item's marks deducted for a wrong answer.
func (e *Exam) PenaltyFraction() float64 {
	if !e.NegativeMarking || e.NegativeMarkingFraction < 0 {
		return 0
	}
	return e.NegativeMarkingFraction
}

// AcceptingAttempts reports whether a new attempt may start at t.
func (e *Exam) AcceptingAttempts(t time.Time) bool {
	if e.Status != ExamStatusLive {
		return false
	}
	return !t.Before(e.ScheduledStart) && !t.After(e.ScheduledEnd)
}
