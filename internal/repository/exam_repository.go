package repository

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/drivetest-backend/internal/model"
)

// ExamRepository handles the exams table (one row per session).
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// Create inserts a new exam row and fills its id and start time.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (user_id, mode, total_questions)
		 VALUES ($1, $2, $3)
		 RETURNING id, started_at`,
		e.UserID, e.Mode, e.TotalQuestions,
	).Scan(&e.ID, &e.StartedAt)
}

// Finalize stores the outcome of a session. It only touches open exams, so a
// session is finalized at most once.
func (r *ExamRepository) Finalize(ctx context.Context, id uuid.UUID, o model.ExamOutcome) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams
		 SET ended_at = $1, score = $2, correct_count = $3, passed = $4
		 WHERE id = $5 AND ended_at IS NULL`,
		o.EndedAt, o.Score, o.CorrectCount, o.Passed, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// GetByID retrieves an exam by id.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, mode, total_questions, started_at, ended_at, score, correct_count, passed
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.UserID, &e.Mode, &e.TotalQuestions, &e.StartedAt, &e.EndedAt, &e.Score, &e.CorrectCount, &e.Passed)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// ListByUser returns a page of a user's exams, newest first, and the total count.
func (r *ExamRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Exam, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM exams WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, mode, total_questions, started_at, ended_at, score, correct_count, passed
		 FROM exams WHERE user_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	exams := []model.Exam{}
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.UserID, &e.Mode, &e.TotalQuestions, &e.StartedAt, &e.EndedAt, &e.Score, &e.CorrectCount, &e.Passed); err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

// Stats aggregates outcomes across all exams.
func (r *ExamRepository) Stats(ctx context.Context) (model.ExamStats, error) {
	var s model.ExamStats
	err := r.pool.QueryRow(ctx,
		`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE ended_at IS NOT NULL),
			COUNT(*) FILTER (WHERE passed),
			COALESCE(AVG(score) FILTER (WHERE ended_at IS NOT NULL), 0)
		 FROM exams`,
	).Scan(&s.TotalExams, &s.CompletedExams, &s.PassedExams, &s.AverageScore)
	return s, err
}

func formatInt(n int) string {
	return strconv.Itoa(n)
}
