package model

import (
	"github.com/google/uuid"
)

// OptionKeys are the fixed option labels of a multiple-choice question.
var OptionKeys = []string{"A", "B", "C", "D"}

// ValidOption reports whether s is blank or one of OptionKeys.
func ValidOption(s string) bool {
	if s == "" {
		return true
	}
	for _, k := range OptionKeys {
		if s == k {
			return true
		}
	}
	return false
}

// Options holds option texts keyed A–D.
type Options struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
	D string `json:"D"`
}

// Text returns the option text for key.
func (o Options) Text(key string) string {
	switch key {
	case "A":
		return o.A
	case "B":
		return o.B
	case "C":
		return o.C
	case "D":
		return o.D
	}
	return ""
}

// CustomQuestion is a question authored directly on the paper.
type CustomQuestion struct {
	Text          string  `json:"text"`
	Options       Options `json:"options"`
	CorrectAnswer string  `json:"correct_answer"`
	ImageURL      string  `json:"image_url,omitempty"`
}

// PaperItem is one ordered entry of a question paper.
type PaperItem struct {
	ID               uuid.UUID       `json:"id"`
	PaperID          uuid.UUID       `json:"paper_id"`
	Position         int             `json:"position"`
	Marks            float64         `json:"marks"`
	TimeLimitSeconds int             `json:"time_limit_seconds"`
	IsCustom         bool            `json:"is_custom"`
	QuestionID       *uuid.UUID      `json:"question_id,omitempty"`
	Custom           *CustomQuestion `json:"custom,omitempty"`
}

// CatalogQuestion is a question-bank entry referenced by paper items.
type CatalogQuestion struct {
	ID            uuid.UUID `json:"id"`
	Text          string    `json:"text"`
	Options       Options   `json:"options"`
	CorrectAnswer string    `json:"correct_answer"`
	HasImage      bool      `json:"has_image"`
	ImageURL      string    `json:"image_url,omitempty"`
}

// PresentedOption is an option as rendered to the student.
type PresentedOption struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// PresentedItem is a paper item in attempt order, without the answer key.
type PresentedItem struct {
	ItemID           uuid.UUID         `json:"item_id"`
	Sequence         int               `json:"sequence"`
	Position         int               `json:"position"`
	Marks            float64           `json:"marks"`
	TimeLimitSeconds int               `json:"time_limit_seconds"`
	Text             string            `json:"text"`
	ImageURL         string            `json:"image_url,omitempty"`
	Options          []PresentedOption `json:"options"`
	SelectedOption   string            `json:"selected_option,omitempty"`
	Flagged          bool              `json:"flagged,omitempty"`
}

// PresentedPaper is the attempt-specific paper payload.
type PresentedPaper struct {
	AttemptID        uuid.UUID       `json:"attempt_id"`
	ExamID           uuid.UUID       `json:"exam_id"`
	Title            string          `json:"title"`
	AllowNavigation  bool            `json:"allow_navigation"`
	AllowReview      bool            `json:"allow_review"`
	RemainingSeconds int64           `json:"remaining_seconds"`
	Items            []PresentedItem `json:"items"`
}
