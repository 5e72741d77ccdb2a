package datasource

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/drivetest-backend/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// Demo accounts available in fixture mode.
const (
	DemoStudentEmail = "student@demo.local"
	DemoAdminEmail   = "admin@demo.local"
	DemoPassword     = "demo1234"
)

type responseKey struct {
	exam     uuid.UUID
	question uuid.UUID
}

// Fixture is an in-memory Source preloaded with the sample bank and demo
// users. Nothing survives a restart.
type Fixture struct {
	mu            sync.RWMutex
	now           func() time.Time
	questions     map[uuid.UUID]model.Question
	users         map[uuid.UUID]model.User
	exams         map[uuid.UUID]model.Exam
	responses     map[responseKey]model.ExamResponse
	subscriptions map[uuid.UUID]model.Subscription
	payments      map[uuid.UUID]model.Payment
}

var _ Source = (*Fixture)(nil)

// NewFixture returns a fixture with the sample bank and demo accounts.
func NewFixture() *Fixture {
	f := &Fixture{
		now:           time.Now,
		questions:     make(map[uuid.UUID]model.Question),
		users:         make(map[uuid.UUID]model.User),
		exams:         make(map[uuid.UUID]model.Exam),
		responses:     make(map[responseKey]model.ExamResponse),
		subscriptions: make(map[uuid.UUID]model.Subscription),
		payments:      make(map[uuid.UUID]model.Payment),
	}

	created := f.now().UTC()
	for i, q := range SampleQuestions() {
		// Spread timestamps so listings have a stable order.
		q.CreatedAt = created.Add(time.Duration(i) * time.Second)
		q.UpdatedAt = q.CreatedAt
		f.questions[q.ID] = q
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.MinCost)
	if err != nil {
		panic("datasource: hash demo password: " + err.Error())
	}
	for _, u := range []model.User{
		{Email: DemoStudentEmail, FullName: "Demo Student"},
		{Email: DemoAdminEmail, FullName: "Demo Admin", IsAdmin: true},
	} {
		u.ID = uuid.NewSHA1(sampleNamespace, []byte(u.Email))
		u.PasswordHash = string(hash)
		u.CreatedAt = created
		f.users[u.ID] = u
	}
	return f
}

func (f *Fixture) Name() string { return "fixture" }

// ─── QuestionBank ───

func (f *Fixture) ListQuestions(_ context.Context, filter model.QuestionFilter) ([]model.Question, int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	matched := make([]model.Question, 0, len(f.questions))
	for _, q := range f.questions {
		if filter.Category != "" && q.Category != filter.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(q.Text), search) {
			continue
		}
		matched = append(matched, q.Clone())
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	return page(matched, filter.Limit, filter.Offset), int64(len(matched)), nil
}

func (f *Fixture) GetQuestion(_ context.Context, id uuid.UUID) (*model.Question, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	q, ok := f.questions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := q.Clone()
	return &out, nil
}

func (f *Fixture) CreateQuestion(_ context.Context, q *model.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if _, exists := f.questions[q.ID]; exists {
		return ErrDuplicate
	}
	q.CreatedAt = f.now()
	q.UpdatedAt = q.CreatedAt
	assignAnswerIDs(q)
	f.questions[q.ID] = q.Clone()
	return nil
}

func (f *Fixture) UpdateQuestion(_ context.Context, q *model.Question) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing, ok := f.questions[q.ID]
	if !ok {
		return ErrNotFound
	}
	q.CreatedAt = existing.CreatedAt
	q.UpdatedAt = f.now()
	for i := range q.Answers {
		q.Answers[i].ID = uuid.Nil
	}
	assignAnswerIDs(q)
	f.questions[q.ID] = q.Clone()
	return nil
}

func (f *Fixture) DeleteQuestion(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.questions[id]; !ok {
		return ErrNotFound
	}
	delete(f.questions, id)
	return nil
}

func (f *Fixture) CountByCategory(_ context.Context) (map[model.Category]int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	counts := make(map[model.Category]int)
	for _, q := range f.questions {
		counts[q.Category]++
	}
	return counts, nil
}

func (f *Fixture) QuestionPool(_ context.Context) ([]model.Question, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	pool := make([]model.Question, 0, len(f.questions))
	for _, q := range f.questions {
		pool = append(pool, q.Clone())
	}
	return pool, nil
}

func assignAnswerIDs(q *model.Question) {
	for i := range q.Answers {
		if q.Answers[i].ID == uuid.Nil {
			q.Answers[i].ID = uuid.New()
		}
		q.Answers[i].QuestionID = q.ID
	}
}

// ─── ExamStore ───

func (f *Fixture) CreateExam(_ context.Context, e *model.Exam) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e.ID = uuid.New()
	e.StartedAt = f.now()
	f.exams[e.ID] = *e
	return nil
}

func (f *Fixture) FinalizeExam(_ context.Context, id uuid.UUID, o model.ExamOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.exams[id]
	if !ok || e.Completed() {
		return ErrNotFound
	}
	e.EndedAt = &o.EndedAt
	e.Score = &o.Score
	e.CorrectCount = &o.CorrectCount
	e.Passed = &o.Passed
	f.exams[id] = e
	return nil
}

func (f *Fixture) GetExam(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	e, ok := f.exams[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (f *Fixture) ListExamsByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]model.Exam, int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var exams []model.Exam
	for _, e := range f.exams {
		if e.UserID == userID {
			exams = append(exams, e)
		}
	}
	sort.Slice(exams, func(i, j int) bool { return exams[i].StartedAt.After(exams[j].StartedAt) })

	return page(exams, limit, offset), int64(len(exams)), nil
}

func (f *Fixture) UpsertResponses(_ context.Context, rs []model.ExamResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range rs {
		if _, ok := f.exams[r.ExamID]; !ok {
			return ErrNotFound
		}
	}
	for _, r := range rs {
		f.responses[responseKey{r.ExamID, r.QuestionID}] = r
	}
	return nil
}

func (f *Fixture) ListResponses(_ context.Context, examID uuid.UUID) ([]model.ExamResponse, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := []model.ExamResponse{}
	for k, r := range f.responses {
		if k.exam == examID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *Fixture) ExamStats(_ context.Context) (model.ExamStats, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var s model.ExamStats
	var sum int
	for _, e := range f.exams {
		s.TotalExams++
		if !e.Completed() {
			continue
		}
		s.CompletedExams++
		if e.Passed != nil && *e.Passed {
			s.PassedExams++
		}
		if e.Score != nil {
			sum += *e.Score
		}
	}
	if s.CompletedExams > 0 {
		s.AverageScore = float64(sum) / float64(s.CompletedExams)
	}
	return s, nil
}

// ─── UserStore ───

func (f *Fixture) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (f *Fixture) GetUserByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (f *Fixture) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	u.ID = uuid.New()
	u.CreatedAt = f.now()
	f.users[u.ID] = *u
	return nil
}

// ─── BillingStore ───

func (f *Fixture) CreateSubscription(_ context.Context, s *model.Subscription, p *model.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	s.ID = uuid.New()
	s.CreatedAt = now
	p.ID = uuid.New()
	p.SubscriptionID = s.ID
	p.CreatedAt = now

	f.subscriptions[s.ID] = *s
	f.payments[p.ID] = *p
	return nil
}

func (f *Fixture) ActiveSubscription(_ context.Context, userID uuid.UUID, now time.Time) (*model.Subscription, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var best *model.Subscription
	for _, s := range f.subscriptions {
		if s.UserID != userID || s.Status == model.BillingStatusFailed {
			continue
		}
		if s.StartsAt.After(now) || !s.EndsAt.After(now) {
			continue
		}
		if best == nil || s.EndsAt.After(best.EndsAt) {
			s := s
			best = &s
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	return best, nil
}

func (f *Fixture) ListPayments(_ context.Context, userID uuid.UUID, limit, offset int) ([]model.Payment, int64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var payments []model.Payment
	for _, p := range f.payments {
		if p.UserID == userID {
			payments = append(payments, p)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.After(payments[j].CreatedAt) })

	return page(payments, limit, offset), int64(len(payments)), nil
}

// page applies limit/offset; a non-positive limit returns everything after offset.
func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return slices.Clone(items[offset:end])
}
