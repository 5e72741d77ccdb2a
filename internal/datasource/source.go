// Package datasource defines the storage backend the application runs
// against. A Source is chosen once at process start: PostgreSQL for live
// deployments or an in-memory fixture with sample data.
package datasource

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/drivetest-backend/internal/model"
)

// Store errors shared by every implementation.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// QuestionBank stores questions together with their answer options.
type QuestionBank interface {
	ListQuestions(ctx context.Context, f model.QuestionFilter) ([]model.Question, int64, error)
	GetQuestion(ctx context.Context, id uuid.UUID) (*model.Question, error)
	// CreateQuestion assigns ids to q and its answers.
	CreateQuestion(ctx context.Context, q *model.Question) error
	// UpdateQuestion replaces the question fields and its full answer list atomically.
	UpdateQuestion(ctx context.Context, q *model.Question) error
	DeleteQuestion(ctx context.Context, id uuid.UUID) error
	CountByCategory(ctx context.Context) (map[model.Category]int, error)
	// QuestionPool returns every question with answers, for session loading.
	QuestionPool(ctx context.Context) ([]model.Question, error)
}

// ExamStore stores sessions and their per-question responses.
type ExamStore interface {
	CreateExam(ctx context.Context, e *model.Exam) error
	// FinalizeExam closes an open exam; an unknown or closed one is ErrNotFound.
	FinalizeExam(ctx context.Context, id uuid.UUID, o model.ExamOutcome) error
	GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	ListExamsByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Exam, int64, error)
	// UpsertResponses writes records keyed by (exam_id, question_id); a later
	// record for the same question replaces the earlier one.
	UpsertResponses(ctx context.Context, rs []model.ExamResponse) error
	ListResponses(ctx context.Context, examID uuid.UUID) ([]model.ExamResponse, error)
	ExamStats(ctx context.Context) (model.ExamStats, error)
}

// UserStore stores accounts.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// CreateUser returns ErrDuplicate when the email is taken.
	CreateUser(ctx context.Context, u *model.User) error
}

// BillingStore stores subscriptions and mobile money payment records.
type BillingStore interface {
	// CreateSubscription writes a subscription and the payment for it together.
	CreateSubscription(ctx context.Context, s *model.Subscription, p *model.Payment) error
	// ActiveSubscription returns the latest non-failed subscription that has
	// not ended at now.
	ActiveSubscription(ctx context.Context, userID uuid.UUID, now time.Time) (*model.Subscription, error)
	ListPayments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Payment, int64, error)
}

// Source is the full backend the services depend on.
type Source interface {
	QuestionBank
	ExamStore
	UserStore
	BillingStore
	// Name identifies the implementation in logs.
	Name() string
}
