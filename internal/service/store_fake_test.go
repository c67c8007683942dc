package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/repository"
)

type pairKey struct{ a, b uuid.UUID }

// memData is the state of the fake database.
type memData struct {
	exams    map[uuid.UUID]model.Exam
	regs     map[pairKey]model.Registration
	attempts map[uuid.UUID]model.Attempt
	answers  map[pairKey]model.Answer
	board    map[pairKey]model.LeaderboardEntry
}

func (d *memData) clone() memData {
	c := memData{
		exams:    make(map[uuid.UUID]model.Exam, len(d.exams)),
		regs:     make(map[pairKey]model.Registration, len(d.regs)),
		attempts: make(map[uuid.UUID]model.Attempt, len(d.attempts)),
		answers:  make(map[pairKey]model.Answer, len(d.answers)),
		board:    make(map[pairKey]model.LeaderboardEntry, len(d.board)),
	}
	for k, v := range d.exams {
		c.exams[k] = v
	}
	for k, v := range d.regs {
		c.regs[k] = v
	}
	for k, v := range d.attempts {
		c.attempts[k] = v
	}
	for k, v := range d.answers {
		c.answers[k] = v
	}
	for k, v := range d.board {
		c.board[k] = v
	}
	return c
}

// memDB is an in-memory repository.Store. Transactions are serialized by
// txMu and rolled back by restoring a snapshot.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data memData
}

func newMemDB() *memDB {
	return &memDB{data: memData{
		exams:    map[uuid.UUID]model.Exam{},
		regs:     map[pairKey]model.Registration{},
		attempts: map[uuid.UUID]model.Attempt{},
		answers:  map[pairKey]model.Answer{},
		board:    map[pairKey]model.LeaderboardEntry{},
	}}
}

type memStore struct {
	db   *memDB
	inTx bool
}

func (s *memStore) Exams() repository.ExamStore                 { return memExams{s.db} }
func (s *memStore) Registrations() repository.RegistrationStore { return memRegs{s.db} }
func (s *memStore) Attempts() repository.AttemptStore           { return memAttempts{s.db} }
func (s *memStore) Answers() repository.AnswerStore             { return memAnswers{s.db} }
func (s *memStore) Leaderboard() repository.LeaderboardStore    { return memBoard{s.db} }

func (s *memStore) LockExam(ctx context.Context, examID uuid.UUID) error { return nil }

func (s *memStore) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.db.txMu.Lock()
	defer s.db.txMu.Unlock()

	s.db.mu.Lock()
	snapshot := s.db.data.clone()
	s.db.mu.Unlock()

	if err := fn(&memStore{db: s.db, inTx: true}); err != nil {
		s.db.mu.Lock()
		s.db.data = snapshot
		s.db.mu.Unlock()
		return err
	}
	return nil
}

// ─── exams ──────────────────────────────────────────────────────────

type memExams struct{ db *memDB }

func (r memExams) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.data.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &e, nil
}

func (r memExams) ListLive(ctx context.Context) ([]model.Exam, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Exam
	for _, e := range r.db.data.exams {
		if e.Status == model.ExamStatusLive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r memExams) IncrementRegistered(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e := r.db.data.exams[id]
	e.RegisteredCount++
	r.db.data.exams[id] = e
	return nil
}

func (r memExams) RecordSubmission(ctx context.Context, id uuid.UUID, avg float64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e := r.db.data.exams[id]
	e.AttemptedCount++
	e.AverageScore = avg
	r.db.data.exams[id] = e
	return nil
}

func (r memExams) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	e, ok := r.db.data.exams[id]
	if !ok {
		return repository.ErrNoRowsAffected
	}
	e.PasswordHash = hash
	r.db.data.exams[id] = e
	return nil
}

// ─── registrations ──────────────────────────────────────────────────

type memRegs struct{ db *memDB }

func (r memRegs) Get(ctx context.Context, examID, userID uuid.UUID) (*model.Registration, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	reg, ok := r.db.data.regs[pairKey{examID, userID}]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &reg, nil
}

func (r memRegs) Create(ctx context.Context, reg *model.Registration) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k := pairKey{reg.ExamID, reg.UserID}
	if _, ok := r.db.data.regs[k]; ok {
		return pgx.ErrNoRows
	}
	reg.ID = uuid.New()
	r.db.data.regs[k] = *reg
	return nil
}

func (r memRegs) RecordAttempt(ctx context.Context, id uuid.UUID, next *time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for k, reg := range r.db.data.regs {
		if reg.ID == id {
			reg.AttemptsUsed++
			reg.NextRetakeAt = next
			r.db.data.regs[k] = reg
			return nil
		}
	}
	return pgx.ErrNoRows
}

// ─── attempts ───────────────────────────────────────────────────────

type memAttempts struct{ db *memDB }

func (r memAttempts) get(id uuid.UUID) (*model.Attempt, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.data.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (r memAttempts) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return r.get(id)
}

func (r memAttempts) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return r.get(id)
}

func (r memAttempts) GetForGrading(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return r.get(id)
}

func (r memAttempts) GetInProgress(ctx context.Context, examID, userID uuid.UUID) (*model.Attempt, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, a := range r.db.data.attempts {
		if a.ExamID == examID && a.UserID == userID && a.Status == model.AttemptInProgress {
			return &a, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memAttempts) Create(ctx context.Context, a *model.Attempt) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, other := range r.db.data.attempts {
		if other.ExamID == a.ExamID && other.UserID == a.UserID && other.Status == model.AttemptInProgress {
			return pgx.ErrNoRows
		}
	}
	a.ID = uuid.New()
	a.Status = model.AttemptInProgress
	a.SkippedQuestions = a.TotalQuestions
	r.db.data.attempts[a.ID] = *a
	return nil
}

func (r memAttempts) UpdateProgress(ctx context.Context, id uuid.UUID, c model.AnswerCounts) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.data.attempts[id]
	if !ok || a.Status != model.AttemptInProgress {
		return nil
	}
	a.AttemptedQuestions = c.Attempted
	a.CorrectAnswers = c.Correct
	a.IncorrectAnswers = c.Incorrect
	a.SkippedQuestions = max(a.TotalQuestions-c.Attempted, 0)
	a.TimeSpentSeconds = c.TimeSpentSeconds
	r.db.data.attempts[id] = a
	return nil
}

func (r memAttempts) Finalize(ctx context.Context, id uuid.UUID, out model.Outcome) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.data.attempts[id]
	if !ok || a.Status != model.AttemptInProgress {
		return repository.ErrNoRowsAffected
	}
	submitted, reason, result := out.SubmittedAt, out.Reason, out.Result
	total, neg, final, pct := out.TotalMarks, out.NegativeMarks, out.FinalScore, out.Percentage
	a.Status = model.AttemptSubmitted
	a.SubmittedAt = &submitted
	a.SubmitReason = &reason
	a.AttemptedQuestions = out.Counts.Attempted
	a.CorrectAnswers = out.Counts.Correct
	a.IncorrectAnswers = out.Counts.Incorrect
	a.SkippedQuestions = out.Skipped
	a.TimeSpentSeconds = out.Counts.TimeSpentSeconds
	a.TotalMarks, a.NegativeMarks, a.FinalScore, a.Percentage = &total, &neg, &final, &pct
	a.Result = &result
	r.db.data.attempts[id] = a
	return nil
}

func (r memAttempts) SetStanding(ctx context.Context, id uuid.UUID, st model.Standing) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a := r.db.data.attempts[id]
	rank, pct := st.Rank, st.Percentile
	a.Rank, a.Percentile = &rank, &pct
	r.db.data.attempts[id] = a
	return nil
}

func (r memAttempts) ListSubmittedScores(ctx context.Context, examID uuid.UUID) ([]model.ScoredAttempt, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.ScoredAttempt
	for _, a := range r.db.data.attempts {
		if a.ExamID == examID && a.Status == model.AttemptSubmitted {
			out = append(out, model.ScoredAttempt{AttemptID: a.ID, FinalScore: *a.FinalScore, SubmittedAt: *a.SubmittedAt})
		}
	}
	return out, nil
}

func (r memAttempts) ListOverdue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []uuid.UUID
	for _, a := range r.db.data.attempts {
		if a.Status != model.AttemptInProgress {
			continue
		}
		e := r.db.data.exams[a.ExamID]
		if a.ScheduledEndAt.Add(e.Buffer()).Before(now) {
			out = append(out, a.ID)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memAttempts) ListInProgressByExam(ctx context.Context, examID uuid.UUID) ([]model.Attempt, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Attempt
	for _, a := range r.db.data.attempts {
		if a.ExamID == examID && a.Status == model.AttemptInProgress {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// ─── answers ────────────────────────────────────────────────────────

type memAnswers struct{ db *memDB }

func (r memAnswers) Upsert(ctx context.Context, a *model.Answer) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k := pairKey{a.AttemptID, a.ItemID}
	if prev, ok := r.db.data.answers[k]; ok {
		a.ID = prev.ID
		a.FirstViewedAt = prev.FirstViewedAt
	} else {
		a.ID = uuid.New()
		a.FirstViewedAt = a.UpdatedAt
	}
	a.LastViewedAt = a.UpdatedAt
	r.db.data.answers[k] = *a
	return nil
}

func (r memAnswers) Recount(ctx context.Context, attemptID uuid.UUID) (model.AnswerCounts, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var c model.AnswerCounts
	for k, a := range r.db.data.answers {
		if k.a != attemptID {
			continue
		}
		c.TimeSpentSeconds += a.TimeSpentSeconds
		if a.SelectedOption == "" {
			continue
		}
		c.Attempted++
		if a.IsCorrect {
			c.Correct++
		} else {
			c.Incorrect++
		}
	}
	return c, nil
}

func (r memAnswers) SumMarks(ctx context.Context, attemptID uuid.UUID) (float64, float64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var total, neg float64
	for k, a := range r.db.data.answers {
		if k.a == attemptID {
			total += a.MarksObtained
			neg += a.NegativeMarks
		}
	}
	return total, neg, nil
}

func (r memAnswers) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []model.Answer
	for k, a := range r.db.data.answers {
		if k.a == attemptID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ─── leaderboard ────────────────────────────────────────────────────

type memBoard struct{ db *memDB }

func (r memBoard) Upsert(ctx context.Context, e *model.LeaderboardEntry) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	k := pairKey{e.ExamID, e.UserID}
	if prev, ok := r.db.data.board[k]; ok && prev.Score >= e.Score {
		return false, nil
	}
	r.db.data.board[k] = *e
	return true, nil
}

func (r memBoard) sorted(examID uuid.UUID) []model.LeaderboardEntry {
	var out []model.LeaderboardEntry
	for _, e := range r.db.data.board {
		if e.ExamID == examID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].TimeSpentSeconds != out[j].TimeSpentSeconds {
			return out[i].TimeSpentSeconds < out[j].TimeSpentSeconds
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func (r memBoard) Top(ctx context.Context, examID uuid.UUID, limit int) ([]model.LeaderboardEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := r.sorted(examID)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memBoard) Get(ctx context.Context, examID, userID uuid.UUID) (*model.LeaderboardEntry, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, e := range r.sorted(examID) {
		if e.UserID == userID {
			return &e, nil
		}
	}
	return nil, pgx.ErrNoRows
}

// ─── papers ─────────────────────────────────────────────────────────

type memPapers struct {
	items   map[uuid.UUID][]model.PaperItem
	catalog map[uuid.UUID]*model.CatalogQuestion
}

func (p *memPapers) Items(ctx context.Context, paperID uuid.UUID) ([]model.PaperItem, error) {
	items := p.items[paperID]
	out := make([]model.PaperItem, len(items))
	copy(out, items)
	return out, nil
}

func (p *memPapers) CatalogQuestions(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.CatalogQuestion, error) {
	out := make(map[uuid.UUID]*model.CatalogQuestion, len(ids))
	for _, id := range ids {
		if q, ok := p.catalog[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}
