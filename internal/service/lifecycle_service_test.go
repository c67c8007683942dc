package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exam-engine/internal/model"
)

func TestStartCreatesThenResumes(t *testing.T) {
	f := newFixture(t)
	exam, items := f.addExam(nil)
	user := uuid.New()
	f.approve(exam.ID, user)

	f.clock.Set(at(10, 15))
	first := f.start(user, exam.ID)
	if first.Status != model.AttemptInProgress {
		t.Fatalf("status = %s, want in_progress", first.Status)
	}
	if first.TotalQuestions != len(items) {
		t.Errorf("total_questions = %d, want %d", first.TotalQuestions, len(items))
	}
	if want := at(11, 15); !first.ScheduledEndAt.Equal(want) {
		t.Errorf("scheduled_end_at = %v, want %v", first.ScheduledEndAt, want)
	}
	if first.AttemptNumber != 1 {
		t.Errorf("attempt_number = %d, want 1", first.AttemptNumber)
	}

	f.clock.Advance(time.Minute)
	second := f.start(user, exam.ID)
	if second.ID != first.ID {
		t.Fatalf("second start returned %s, want resume of %s", second.ID, first.ID)
	}
	if second.ShuffleSeed != first.ShuffleSeed {
		t.Error("resume changed the shuffle seed")
	}
}

func TestStartResumesAfterWindowCloses(t *testing.T) {
	f := newFixture(t)
	exam, _ := f.addExam(nil)
	user := uuid.New()
	f.approve(exam.ID, user)

	f.clock.Set(at(11, 30))
	first := f.start(user, exam.ID)

	f.clock.Set(at(12, 10))
	again, err := f.lifecycle.Start(bg, user, exam.ID)
	if err != nil {
		t.Fatalf("reload after window close: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("got attempt %s, want %s", again.ID, first.ID)
	}
}

func TestStartConcurrentCallsShareOneAttempt(t *testing.T) {
	f := newFixture(t)
	exam, _ := f.addExam(nil)
	user := uuid.New()
	f.approve(exam.ID, user)
	f.clock.Set(at(10, 5))

	const callers = 8
	ids := make([]uuid.UUID, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := f.lifecycle.Start(bg, user, exam.ID)
			errs[i] = err
			if a != nil {
				ids[i] = a.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("caller %d got %s, caller 0 got %s", i, ids[i], ids[0])
		}
	}
	running, _ := f.lifecycle.ListRunning(bg, exam.ID)
	if len(running) != 1 {
		t.Fatalf("running attempts = %d, want 1", len(running))
	}
}

func TestStartRejections(t *testing.T) {
	user := uuid.New()
	retakeAt := at(11, 0)

	tests := []struct {
		name    string
		mutate  func(e *model.Exam)
		reg     func(r *model.Registration)
		noReg   bool
		now     time.Time
		wantErr error
	}{
		{name: "not registered", noReg: true, now: at(10, 30), wantErr: ErrNotRegistered},
		{name: "pending registration", reg: func(r *model.Registration) { r.Status = model.RegistrationPending }, now: at(10, 30), wantErr: ErrNotRegistered},
		{name: "before window", now: at(9, 59), wantErr: ErrWindowClosed},
		{name: "after window", now: at(12, 1), wantErr: ErrWindowClosed},
		{name: "exam not live", mutate: func(e *model.Exam) { e.Status = model.ExamStatusScheduled }, now: at(10, 30), wantErr: ErrWindowClosed},
		{name: "attempts exhausted", reg: func(r *model.Registration) { r.AttemptsUsed = 1 }, now: at(10, 30), wantErr: ErrAttemptsExhausted},
		{
			name:    "retake locked",
			mutate:  func(e *model.Exam) { e.MaxAttempts = 3 },
			reg:     func(r *model.Registration) { r.AttemptsUsed = 1; r.NextRetakeAt = &retakeAt },
			now:     at(10, 30),
			wantErr: ErrRetakeLocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			exam, _ := f.addExam(tt.mutate)
			if !tt.noReg {
				f.approve(exam.ID, user)
				if tt.reg != nil {
					r := f.registrationOf(exam.ID, user)
					tt.reg(&r)
					f.db.mu.Lock()
					f.db.data.regs[pairKey{exam.ID, user}] = r
					f.db.mu.Unlock()
				}
			}
			f.clock.Set(tt.now)

			_, err := f.lifecycle.Start(bg, user, exam.ID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStartUnknownExam(t *testing.T) {
	f := newFixture(t)
	_, err := f.lifecycle.Start(bg, uuid.New(), uuid.New())
	if !errors.Is(err, ErrExamNotFound) {
		t.Fatalf("err = %v, want ErrExamNotFound", err)
	}
}

func TestRetakeDelayThenNewAttempt(t *testing.T) {
	f := newFixture(t)
	exam, _ := f.addExam(func(e *model.Exam) {
		e.MaxAttempts = 2
		e.RetakeDelayMinutes = 15
	})
	user := uuid.New()
	f.approve(exam.ID, user)

	f.clock.Set(at(10, 0))
	first := f.start(user, exam.ID)
	f.clock.Set(at(10, 20))
	f.submit(first)

	f.clock.Set(at(10, 30))
	if _, err := f.lifecycle.Start(bg, user, exam.ID); !errors.Is(err, ErrRetakeLocked) {
		t.Fatalf("err = %v, want ErrRetakeLocked", err)
	}

	f.clock.Set(at(10, 35))
	second := f.start(user, exam.ID)
	if second.ID == first.ID {
		t.Fatal("expected a new attempt")
	}
	if second.AttemptNumber != 2 {
		t.Errorf("attempt_number = %d, want 2", second.AttemptNumber)
	}

	f.clock.Set(at(10, 50))
	f.submit(second)
	f.clock.Set(at(11, 30))
	if _, err := f.lifecycle.Start(bg, user, exam.ID); !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("err = %v, want ErrAttemptsExhausted", err)
	}
}

func TestOwnershipChecks(t *testing.T) {
	f := newFixture(t)
	exam, _ := f.addExam(nil)
	owner, other := uuid.New(), uuid.New()
	f.approve(exam.ID, owner)
	f.clock.Set(at(10, 10))
	a := f.start(owner, exam.ID)

	if _, err := f.lifecycle.Get(bg, a.ID, other); !errors.Is(err, ErrAttemptForbidden) {
		t.Errorf("Get by other: err = %v", err)
	}
	if _, err := f.lifecycle.Submit(bg, a.ID, other); !errors.Is(err, ErrAttemptForbidden) {
		t.Errorf("Submit by other: err = %v", err)
	}
	if _, err := f.lifecycle.Paper(bg, a.ID, other); !errors.Is(err, ErrAttemptForbidden) {
		t.Errorf("Paper by other: err = %v", err)
	}
	if _, err := f.lifecycle.Get(bg, uuid.New(), owner); !errors.Is(err, ErrAttemptNotFound) {
		t.Errorf("Get unknown: err = %v", err)
	}

	view, err := f.lifecycle.Get(bg, a.ID, owner)
	if err != nil {
		t.Fatalf("Get by owner: %v", err)
	}
	if view.RemainingSeconds != 3600 {
		t.Errorf("remaining = %d, want 3600", view.RemainingSeconds)
	}
}

func TestVerifyAttempt(t *testing.T) {
	f := newFixture(t)
	exam, _ := f.addExam(nil)
	otherExam, _ := f.addExam(nil)
	user := uuid.New()
	f.approve(exam.ID, user)
	f.clock.Set(at(10, 10))
	a := f.start(user, exam.ID)

	if _, err := f.lifecycle.VerifyAttempt(bg, a.ID, user, exam.ID); err != nil {
		t.Fatalf("owner verify: %v", err)
	}
	if _, err := f.lifecycle.VerifyAttempt(bg, a.ID, uuid.New(), exam.ID); !errors.Is(err, ErrAttemptForbidden) {
		t.Errorf("impostor: err = %v", err)
	}
	if _, err := f.lifecycle.VerifyAttempt(bg, a.ID, user, otherExam.ID); !errors.Is(err, ErrAttemptForbidden) {
		t.Errorf("wrong exam: err = %v", err)
	}

	f.submit(a)
	if _, err := f.lifecycle.VerifyAttempt(bg, a.ID, user, exam.ID); !errors.Is(err, ErrAttemptNotActive) {
		t.Errorf("submitted: err = %v", err)
	}
}

func TestPaperIsStableAndPrefilled(t *testing.T) {
	f := newFixture(t)
	exam, items := f.addExam(func(e *model.Exam) {
		e.ShuffleQuestions = true
		e.ShuffleOptions = true
	})
	user := uuid.New()
	f.approve(exam.ID, user)
	f.clock.Set(at(10, 10))
	a := f.start(user, exam.ID)
	f.answer(a, items[2].ID, "C")

	p1, err := f.lifecycle.Paper(bg, a.ID, user)
	if err != nil {
		t.Fatalf("Paper: %v", err)
	}
	p2, err := f.lifecycle.Paper(bg, a.ID, user)
	if err != nil {
		t.Fatalf("Paper: %v", err)
	}
	if len(p1.Items) != len(items) {
		t.Fatalf("items = %d, want %d", len(p1.Items), len(items))
	}
	for i := range p1.Items {
		if p1.Items[i].ItemID != p2.Items[i].ItemID {
			t.Fatalf("position %d differs between reloads", i)
		}
		for j := range p1.Items[i].Options {
			if p1.Items[i].Options[j] != p2.Items[i].Options[j] {
				t.Fatalf("option order of item %d differs between reloads", i)
			}
		}
		if p1.Items[i].ItemID == items[2].ID && p1.Items[i].SelectedOption != "C" {
			t.Errorf("answered item not prefilled: %+v", p1.Items[i])
		}
	}
}

func TestPaperReviewAfterSubmit(t *testing.T) {
	f := newFixture(t)
	exam, _ := f.addExam(func(e *model.Exam) { e.AllowReview = false })
	user := uuid.New()
	f.approve(exam.ID, user)
	f.clock.Set(at(10, 10))
	a := f.start(user, exam.ID)
	f.submit(a)

	if _, err := f.lifecycle.Paper(bg, a.ID, user); !errors.Is(err, ErrAttemptNotActive) {
		t.Fatalf("err = %v, want ErrAttemptNotActive", err)
	}
}
