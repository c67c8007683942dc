package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/model"
	"golang.org/x/crypto/bcrypt"
)

var bg = context.Background()

// examDay is the reference window used throughout the tests: 10:00–12:00.
var examDay = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(examDay.Year(), examDay.Month(), examDay.Day(), hour, minute, 0, 0, time.UTC)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu       sync.Mutex
	attempts []*model.Attempt
}

func (n *recordingNotifier) AttemptSubmitted(a *model.Attempt) {
	n.mu.Lock()
	n.attempts = append(n.attempts, a)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.attempts)
}

type fixture struct {
	t      *testing.T
	db     *memDB
	store  *memStore
	papers *memPapers
	clock  *testClock
	notes  *recordingNotifier

	lifecycle    *LifecycleService
	grading      *GradingService
	finalizer    *FinalizeService
	registration *RegistrationService
	leaderboard  *LeaderboardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newMemDB()
	store := &memStore{db: db}
	papers := &memPapers{
		items:   map[uuid.UUID][]model.PaperItem{},
		catalog: map[uuid.UUID]*model.CatalogQuestion{},
	}
	clock := &testClock{now: at(10, 0)}
	notes := &recordingNotifier{}
	log := zerolog.Nop()

	finalizer := NewFinalizeService(store, papers, notes, log)
	finalizer.now = clock.Now
	lifecycle := NewLifecycleService(store, papers, finalizer, log)
	lifecycle.now = clock.Now
	grading := NewGradingService(store, papers, log)
	grading.now = clock.Now
	registration := NewRegistrationService(store, log)
	registration.now = clock.Now
	registration.cost = bcrypt.MinCost

	return &fixture{
		t:            t,
		db:           db,
		store:        store,
		papers:       papers,
		clock:        clock,
		notes:        notes,
		lifecycle:    lifecycle,
		grading:      grading,
		finalizer:    finalizer,
		registration: registration,
		leaderboard:  NewLeaderboardService(store),
	}
}

// addPaper stores a paper of custom items whose correct answer is "A",
// one per entry of marks.
func (f *fixture) addPaper(marks ...float64) (uuid.UUID, []model.PaperItem) {
	f.t.Helper()
	paperID := uuid.New()
	items := make([]model.PaperItem, len(marks))
	for i, m := range marks {
		items[i] = model.PaperItem{
			ID:       uuid.New(),
			PaperID:  paperID,
			Position: i + 1,
			Marks:    m,
			IsCustom: true,
			Custom: &model.CustomQuestion{
				Text:          "Question",
				Options:       model.Options{A: "alpha", B: "beta", C: "gamma", D: "delta"},
				CorrectAnswer: "A",
			},
		}
	}
	f.papers.items[paperID] = items
	return paperID, items
}

// addExam stores a live exam over the reference window with a five item,
// one mark per item paper. mutate adjusts the defaults.
func (f *fixture) addExam(mutate func(e *model.Exam)) (*model.Exam, []model.PaperItem) {
	f.t.Helper()
	paperID, items := f.addPaper(1, 1, 1, 1, 1)
	e := model.Exam{
		ID:              uuid.New(),
		Title:           "Algebra midterm",
		PaperID:         paperID,
		ScheduledStart:  at(10, 0),
		ScheduledEnd:    at(12, 0),
		DurationMinutes: 60,
		AccessPolicy:    model.AccessPublic,
		MaxAttempts:     1,
		PassingScore:    3,
		AllowReview:     true,
		AllowNavigation: true,
		Status:          model.ExamStatusLive,
	}
	if mutate != nil {
		mutate(&e)
	}
	if e.PaperID != paperID {
		items = f.papers.items[e.PaperID]
	}
	f.db.mu.Lock()
	f.db.data.exams[e.ID] = e
	f.db.mu.Unlock()
	return &e, items
}

// approve writes an approved registration directly.
func (f *fixture) approve(examID, userID uuid.UUID) {
	f.t.Helper()
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.data.regs[pairKey{examID, userID}] = model.Registration{
		ID:           uuid.New(),
		ExamID:       examID,
		UserID:       userID,
		Status:       model.RegistrationApproved,
		RegisteredAt: f.clock.Now(),
	}
}

func (f *fixture) registrationOf(examID, userID uuid.UUID) model.Registration {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.data.regs[pairKey{examID, userID}]
}

func (f *fixture) exam(id uuid.UUID) model.Exam {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.data.exams[id]
}

func (f *fixture) answerRows(attemptID uuid.UUID) []model.Answer {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Answer
	for k, a := range f.db.data.answers {
		if k.a == attemptID {
			out = append(out, a)
		}
	}
	return out
}

func (f *fixture) start(userID, examID uuid.UUID) *model.Attempt {
	f.t.Helper()
	a, err := f.lifecycle.Start(bg, userID, examID)
	if err != nil {
		f.t.Fatalf("Start: %v", err)
	}
	return a
}

func (f *fixture) answer(a *model.Attempt, itemID uuid.UUID, option string) *model.AnswerReceipt {
	f.t.Helper()
	r, err := f.grading.SubmitAnswer(bg, a.ID, a.UserID, model.SubmitAnswerRequest{
		ItemID:           itemID,
		SelectedOption:   option,
		TimeSpentSeconds: 10,
	})
	if err != nil {
		f.t.Fatalf("SubmitAnswer(%s): %v", option, err)
	}
	return r
}

func (f *fixture) submit(a *model.Attempt) *model.Attempt {
	f.t.Helper()
	out, err := f.lifecycle.Submit(bg, a.ID, a.UserID)
	if err != nil {
		f.t.Fatalf("Submit: %v", err)
	}
	return out
}
