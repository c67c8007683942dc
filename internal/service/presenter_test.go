package service

import (
	"errors"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exam-engine/internal/model"
)

func presenterItems(n int) []model.PaperItem {
	items := make([]model.PaperItem, n)
	for i := range items {
		items[i] = model.PaperItem{
			ID:       uuid.New(),
			Position: i + 1,
			Marks:    1,
			IsCustom: true,
			Custom: &model.CustomQuestion{
				Text:          "Q",
				Options:       model.Options{A: "a", B: "b", C: "c", D: "d"},
				CorrectAnswer: "A",
			},
		}
	}
	return items
}

func order(p []model.PresentedItem) []uuid.UUID {
	ids := make([]uuid.UUID, len(p))
	for i := range p {
		ids[i] = p[i].ItemID
	}
	return ids
}

func sameOrder(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPresentIsReproducible(t *testing.T) {
	items := presenterItems(10)
	exam := &model.Exam{ShuffleQuestions: true, ShuffleOptions: true}
	a := &model.Attempt{ShuffleSeed: 12345}

	p1, err := Present(a, exam, items, nil)
	if err != nil {
		t.Fatalf("Present: %v", err)
	}
	p2, _ := Present(a, exam, items, nil)
	if !sameOrder(order(p1), order(p2)) {
		t.Fatal("question order differs for the same attempt")
	}
	for i := range p1 {
		for j := range p1[i].Options {
			if p1[i].Options[j] != p2[i].Options[j] {
				t.Fatalf("option order differs for item %d", i)
			}
		}
	}
}

func TestPresentDifferentSeedsDiffer(t *testing.T) {
	items := presenterItems(5)
	exam := &model.Exam{ShuffleQuestions: true}
	base, _ := Present(&model.Attempt{ShuffleSeed: 1}, exam, items, nil)

	differ := 0
	for seed := int64(2); seed < 22; seed++ {
		p, _ := Present(&model.Attempt{ShuffleSeed: seed}, exam, items, nil)
		if !sameOrder(order(base), order(p)) {
			differ++
		}
	}
	// 5 items give 120 orders; a shared order is a 1 in 120 event.
	if differ < 17 {
		t.Fatalf("only %d of 20 seeds produced a different order", differ)
	}
}

func TestPresentWithoutShuffleKeepsAuthoredOrder(t *testing.T) {
	items := presenterItems(6)
	p, err := Present(&model.Attempt{ShuffleSeed: 99}, &model.Exam{}, items, nil)
	if err != nil {
		t.Fatalf("Present: %v", err)
	}
	for i := range p {
		if p[i].ItemID != items[i].ID || p[i].Sequence != i+1 {
			t.Fatalf("item %d moved", i)
		}
		for j, opt := range p[i].Options {
			if opt.Key != model.OptionKeys[j] {
				t.Fatalf("option %d of item %d moved", j, i)
			}
		}
	}
}

func TestPresentOptionShuffleKeepsLabels(t *testing.T) {
	items := presenterItems(8)
	p, _ := Present(&model.Attempt{ShuffleSeed: 7}, &model.Exam{ShuffleOptions: true}, items, nil)

	moved := false
	for i := range p {
		keys := make([]string, 0, 4)
		for j, opt := range p[i].Options {
			if opt.Text != items[i].Custom.Options.Text(opt.Key) {
				t.Fatalf("option %s lost its text", opt.Key)
			}
			if opt.Key != model.OptionKeys[j] {
				moved = true
			}
			keys = append(keys, opt.Key)
		}
		sort.Strings(keys)
		if !sameStrings(keys, model.OptionKeys) {
			t.Fatalf("item %d options = %v", i, keys)
		}
	}
	if !moved {
		t.Error("option shuffle left every item in authored order")
	}
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPresentMissingCatalogQuestion(t *testing.T) {
	qid := uuid.New()
	items := []model.PaperItem{{ID: uuid.New(), Position: 1, QuestionID: &qid}}
	_, err := Present(&model.Attempt{}, &model.Exam{}, items, map[uuid.UUID]*model.CatalogQuestion{})
	if !errors.Is(err, ErrQuestionUnavailable) {
		t.Fatalf("err = %v, want ErrQuestionUnavailable", err)
	}
}

func TestPresentHidesImageUnlessFlagged(t *testing.T) {
	qid := uuid.New()
	catalog := map[uuid.UUID]*model.CatalogQuestion{
		qid: {ID: qid, Text: "Q", CorrectAnswer: "A", HasImage: false, ImageURL: "/stale.png"},
	}
	items := []model.PaperItem{{ID: uuid.New(), Position: 1, QuestionID: &qid}}
	p, err := Present(&model.Attempt{}, &model.Exam{}, items, catalog)
	if err != nil {
		t.Fatalf("Present: %v", err)
	}
	if p[0].ImageURL != "" {
		t.Errorf("image_url = %q, want empty", p[0].ImageURL)
	}
}
