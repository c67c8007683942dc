package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt states. in_progress -> submitted is the
// only transition.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// SubmitReason records which path finalized an attempt.
type SubmitReason string

const (
	SubmitManual  SubmitReason = "manual"
	SubmitTimeout SubmitReason = "timeout"
	SubmitProctor SubmitReason = "proctor"
	SubmitSweep   SubmitReason = "sweep"
)

// AttemptResult is the pass/fail outcome of a submitted attempt.
type AttemptResult string

const (
	ResultPass AttemptResult = "pass"
	ResultFail AttemptResult = "fail"
)

// Attempt is one student's timed run through an exam's paper.
type Attempt struct {
	ID                 uuid.UUID     `json:"id"`
	ExamID             uuid.UUID     `json:"exam_id"`
	UserID             uuid.UUID     `json:"user_id"`
	RegistrationID     uuid.UUID     `json:"registration_id"`
	AttemptNumber      int           `json:"attempt_number"`
	Status             AttemptStatus `json:"status"`
	StartedAt          time.Time     `json:"started_at"`
	ScheduledEndAt     time.Time     `json:"scheduled_end_at"`
	SubmittedAt        *time.Time    `json:"submitted_at,omitempty"`
	SubmitReason       *SubmitReason `json:"submit_reason,omitempty"`
	ShuffleSeed        int64         `json:"-"`
	TotalQuestions     int           `json:"total_questions"`
	AttemptedQuestions int           `json:"attempted_questions"`
	CorrectAnswers     int           `json:"correct_answers"`
	IncorrectAnswers   int           `json:"incorrect_answers"`
	SkippedQuestions   int           `json:"skipped_questions"`
	TimeSpentSeconds   int           `json:"time_spent_seconds"`

	// Populated once, by finalization.
	TotalMarks    *float64       `json:"total_marks,omitempty"`
	NegativeMarks *float64       `json:"negative_marks,omitempty"`
	FinalScore    *float64       `json:"final_score,omitempty"`
	Percentage    *float64       `json:"percentage,omitempty"`
	Rank          *int           `json:"rank,omitempty"`
	Percentile    *float64       `json:"percentile,omitempty"`
	Result        *AttemptResult `json:"result,omitempty"`
}

// IsSubmitted reports whether the attempt reached its terminal state.
func (a *Attempt) IsSubmitted() bool {
	return a.Status == AttemptSubmitted
}

// AcceptsAnswersAt reports whether an answer may be graded at t. The
// attempt's own deadline governs, not the exam window.
func (a *Attempt) AcceptsAnswersAt(t time.Time) bool {
	return a.Status == AttemptInProgress && !t.After(a.ScheduledEndAt)
}

// RemainingSeconds returns the time left before the attempt deadline.
func (a *Attempt) RemainingSeconds(now time.Time) int64 {
	if a.Status != AttemptInProgress {
		return 0
	}
	left := a.ScheduledEndAt.Sub(now)
	if left < 0 {
		return 0
	}
	return int64(left / time.Second)
}

// AnswerCounts is a fresh recount of an attempt's answers.
type AnswerCounts struct {
	Attempted        int
	Correct          int
	Incorrect        int
	TimeSpentSeconds int
}

// Outcome carries the computed, immutable results written at finalization.
type Outcome struct {
	TotalMarks    float64
	NegativeMarks float64
	FinalScore    float64
	Percentage    float64
	Counts        AnswerCounts
	Skipped       int
	Result        AttemptResult
	SubmittedAt   time.Time
	Reason        SubmitReason
}

// Standing is an attempt's position among all submitted attempts of an exam.
type Standing struct {
	Rank       int
	Percentile float64
}

// ScoredAttempt is the projection used to rank submitted attempts.
type ScoredAttempt struct {
	AttemptID   uuid.UUID
	FinalScore  float64
	SubmittedAt time.Time
}

// AttemptView is returned to clients: the attempt plus its remaining time.
type AttemptView struct {
	Attempt
	RemainingSeconds int64 `json:"remaining_seconds"`
}
