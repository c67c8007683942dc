package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/shuffle"
)

// question is the resolved content of a paper item.
type question struct {
	text    string
	options model.Options
	correct string
	image   string
}

// resolveQuestion picks the custom payload or the catalog entry behind an item.
func resolveQuestion(item *model.PaperItem, catalog map[uuid.UUID]*model.CatalogQuestion) (*question, error) {
	if item.IsCustom {
		if item.Custom == nil {
			return nil, fmt.Errorf("item %s: %w", item.ID, ErrQuestionUnavailable)
		}
		return &question{
			text:    item.Custom.Text,
			options: item.Custom.Options,
			correct: item.Custom.CorrectAnswer,
			image:   item.Custom.ImageURL,
		}, nil
	}
	if item.QuestionID == nil {
		return nil, fmt.Errorf("item %s: %w", item.ID, ErrQuestionUnavailable)
	}
	q, ok := catalog[*item.QuestionID]
	if !ok || q == nil {
		return nil, fmt.Errorf("item %s: %w", item.ID, ErrQuestionUnavailable)
	}
	img := ""
	if q.HasImage {
		img = q.ImageURL
	}
	return &question{text: q.Text, options: q.Options, correct: q.CorrectAnswer, image: img}, nil
}

// catalogRefs lists the catalog question ids referenced by items.
func catalogRefs(items []model.PaperItem) []uuid.UUID {
	refs := make([]uuid.UUID, 0, len(items))
	for i := range items {
		if !items[i].IsCustom && items[i].QuestionID != nil {
			refs = append(refs, *items[i].QuestionID)
		}
	}
	return refs
}

// Present renders items in the attempt's order. The question order comes
// from the attempt seed and each item's option order from seed+position, so
// the same attempt always renders identically. Option keys keep their
// authored labels; only their display order moves.
func Present(attempt *model.Attempt, exam *model.Exam, items []model.PaperItem, catalog map[uuid.UUID]*model.CatalogQuestion) ([]model.PresentedItem, error) {
	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	if exam.ShuffleQuestions {
		order = shuffle.Permute(attempt.ShuffleSeed, len(items))
	}

	out := make([]model.PresentedItem, 0, len(items))
	for seq, idx := range order {
		item := &items[idx]
		q, err := resolveQuestion(item, catalog)
		if err != nil {
			return nil, err
		}

		keys := model.OptionKeys
		if exam.ShuffleOptions {
			perm := shuffle.Permute(attempt.ShuffleSeed+int64(item.Position), len(model.OptionKeys))
			keys = make([]string, len(perm))
			for i, p := range perm {
				keys[i] = model.OptionKeys[p]
			}
		}

		opts := make([]model.PresentedOption, len(keys))
		for i, k := range keys {
			opts[i] = model.PresentedOption{Key: k, Text: q.options.Text(k)}
		}

		out = append(out, model.PresentedItem{
			ItemID:           item.ID,
			Sequence:         seq + 1,
			Position:         item.Position,
			Marks:            item.Marks,
			TimeLimitSeconds: item.TimeLimitSeconds,
			Text:             q.text,
			ImageURL:         q.image,
			Options:          opts,
		})
	}
	return out, nil
}
