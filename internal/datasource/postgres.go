package datasource

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/drivetest-backend/internal/model"
	"github.com/stemsi/drivetest-backend/internal/repository"
)

// pgUniqueViolation is the SQLSTATE for unique constraint failures.
const pgUniqueViolation = "23505"

// Postgres is the live Source backed by pgx repositories.
type Postgres struct {
	questions *repository.QuestionRepository
	exams     *repository.ExamRepository
	responses *repository.ExamResponseRepository
	users     *repository.UserRepository
	billing   *repository.BillingRepository
}

var _ Source = (*Postgres)(nil)

// NewPostgres composes the repositories over one pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		questions: repository.NewQuestionRepository(pool),
		exams:     repository.NewExamRepository(pool),
		responses: repository.NewExamResponseRepository(pool),
		users:     repository.NewUserRepository(pool),
		billing:   repository.NewBillingRepository(pool),
	}
}

func (p *Postgres) Name() string { return "postgres" }

// mapErr translates driver errors into store errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

// ─── QuestionBank ───

func (p *Postgres) ListQuestions(ctx context.Context, f model.QuestionFilter) ([]model.Question, int64, error) {
	qs, total, err := p.questions.List(ctx, f)
	return qs, total, mapErr(err)
}

func (p *Postgres) GetQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := p.questions.GetByID(ctx, id)
	return q, mapErr(err)
}

func (p *Postgres) CreateQuestion(ctx context.Context, q *model.Question) error {
	return mapErr(p.questions.Create(ctx, q))
}

func (p *Postgres) UpdateQuestion(ctx context.Context, q *model.Question) error {
	return mapErr(p.questions.Update(ctx, q))
}

func (p *Postgres) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	return mapErr(p.questions.Delete(ctx, id))
}

func (p *Postgres) CountByCategory(ctx context.Context) (map[model.Category]int, error) {
	counts, err := p.questions.CountByCategory(ctx)
	return counts, mapErr(err)
}

func (p *Postgres) QuestionPool(ctx context.Context) ([]model.Question, error) {
	qs, err := p.questions.ListAll(ctx)
	return qs, mapErr(err)
}

// ─── ExamStore ───

func (p *Postgres) CreateExam(ctx context.Context, e *model.Exam) error {
	return mapErr(p.exams.Create(ctx, e))
}

func (p *Postgres) FinalizeExam(ctx context.Context, id uuid.UUID, o model.ExamOutcome) error {
	return mapErr(p.exams.Finalize(ctx, id, o))
}

func (p *Postgres) GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e, err := p.exams.GetByID(ctx, id)
	return e, mapErr(err)
}

func (p *Postgres) ListExamsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Exam, int64, error) {
	exams, total, err := p.exams.ListByUser(ctx, userID, limit, offset)
	return exams, total, mapErr(err)
}

func (p *Postgres) UpsertResponses(ctx context.Context, rs []model.ExamResponse) error {
	return mapErr(p.responses.UpsertBatch(ctx, rs))
}

func (p *Postgres) ListResponses(ctx context.Context, examID uuid.UUID) ([]model.ExamResponse, error) {
	rs, err := p.responses.ListByExam(ctx, examID)
	return rs, mapErr(err)
}

func (p *Postgres) ExamStats(ctx context.Context) (model.ExamStats, error) {
	s, err := p.exams.Stats(ctx)
	return s, mapErr(err)
}

// ─── UserStore ───

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := p.users.GetByEmail(ctx, email)
	return u, mapErr(err)
}

func (p *Postgres) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := p.users.GetByID(ctx, id)
	return u, mapErr(err)
}

func (p *Postgres) CreateUser(ctx context.Context, u *model.User) error {
	return mapErr(p.users.Create(ctx, u))
}

// ─── BillingStore ───

func (p *Postgres) CreateSubscription(ctx context.Context, s *model.Subscription, pay *model.Payment) error {
	return mapErr(p.billing.CreateSubscription(ctx, s, pay))
}

func (p *Postgres) ActiveSubscription(ctx context.Context, userID uuid.UUID, now time.Time) (*model.Subscription, error) {
	s, err := p.billing.ActiveSubscription(ctx, userID, now)
	return s, mapErr(err)
}

func (p *Postgres) ListPayments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Payment, int64, error) {
	ps, total, err := p.billing.ListPayments(ctx, userID, limit, offset)
	return ps, total, mapErr(err)
}
