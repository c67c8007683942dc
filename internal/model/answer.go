package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer is one row per (attempt, paper item); re-answers overwrite grading.
type Answer struct {
	ID               uuid.UUID `json:"id"`
	AttemptID        uuid.UUID `json:"attempt_id"`
	ItemID           uuid.UUID `json:"item_id"`
	SelectedOption   string    `json:"selected_option"`
	IsCorrect        bool      `json:"is_correct"`
	MarksObtained    float64   `json:"marks_obtained"`
	NegativeMarks    float64   `json:"negative_marks"`
	Flagged          bool      `json:"flagged"`
	Reviewed         bool      `json:"reviewed"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	FirstViewedAt    time.Time `json:"first_viewed_at"`
	LastViewedAt     time.Time `json:"last_viewed_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Answered reports whether the student picked an option.
func (a *Answer) Answered() bool {
	return a.SelectedOption != ""
}

// SubmitAnswerRequest is the payload for answering (or clearing) one item.
type SubmitAnswerRequest struct {
	ItemID           uuid.UUID `json:"item_id" binding:"required"`
	SelectedOption   string    `json:"selected_option" binding:"omitempty,option_key"`
	TimeSpentSeconds int       `json:"time_spent_seconds" binding:"min=0,max=86400"`
	Flagged          bool      `json:"flagged"`
	Reviewed         bool      `json:"reviewed"`
}

// AnswerReceipt is returned after an answer is graded. Correctness is not
// disclosed while the attempt is running.
type AnswerReceipt struct {
	ItemID             uuid.UUID `json:"item_id"`
	SelectedOption     string    `json:"selected_option"`
	Flagged            bool      `json:"flagged"`
	AttemptedQuestions int       `json:"attempted_questions"`
	TotalQuestions     int       `json:"total_questions"`
	RemainingSeconds   int64     `json:"remaining_seconds"`
}
