package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/drivetest-backend/internal/model"
)

// ExamResponseRepository handles per-question response records.
type ExamResponseRepository struct {
	pool *pgxpool.Pool
}

// NewExamResponseRepository creates a new ExamResponseRepository.
func NewExamResponseRepository(pool *pgxpool.Pool) *ExamResponseRepository {
	return &ExamResponseRepository{pool: pool}
}

// UpsertBatch writes all records in one statement using UNNEST.
// Records for the same (exam_id, question_id) replace each other.
func (r *ExamResponseRepository) UpsertBatch(ctx context.Context, rs []model.ExamResponse) error {
	if len(rs) == 0 {
		return nil
	}

	rs = dedupeResponses(rs)
	n := len(rs)

	examIDs := make([]uuid.UUID, n)
	questionIDs := make([]uuid.UUID, n)
	answerIDs := make([]*uuid.UUID, n)
	corrects := make([]*bool, n)
	createdAts := make([]time.Time, n)
	for i, resp := range rs {
		examIDs[i] = resp.ExamID
		questionIDs[i] = resp.QuestionID
		answerIDs[i] = resp.AnswerID
		corrects[i] = resp.IsCorrect
		createdAts[i] = resp.CreatedAt
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_responses (exam_id, question_id, answer_id, is_correct, created_at)
		 SELECT u.exam_id, u.question_id, u.answer_id, u.is_correct, u.created_at
		 FROM UNNEST(
			$1::uuid[],
			$2::uuid[],
			$3::uuid[],
			$4::bool[],
			$5::timestamptz[]
		 ) AS u (exam_id, question_id, answer_id, is_correct, created_at)
		 ON CONFLICT (exam_id, question_id) DO UPDATE
		 SET answer_id = EXCLUDED.answer_id,
		     is_correct = EXCLUDED.is_correct,
		     created_at = EXCLUDED.created_at`,
		examIDs, questionIDs, answerIDs, corrects, createdAts)
	return err
}

// ListByExam returns the response records of one exam.
func (r *ExamResponseRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamResponse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_id, question_id, answer_id, is_correct, created_at
		 FROM exam_responses WHERE exam_id = $1
		 ORDER BY created_at`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ExamResponse{}
	for rows.Next() {
		var resp model.ExamResponse
		if err := rows.Scan(&resp.ExamID, &resp.QuestionID, &resp.AnswerID, &resp.IsCorrect, &resp.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

// dedupeResponses keeps the last record per (exam, question); a single
// INSERT ... ON CONFLICT cannot touch the same row twice.
func dedupeResponses(rs []model.ExamResponse) []model.ExamResponse {
	type key struct{ exam, question uuid.UUID }

	last := make(map[key]int, len(rs))
	for i, resp := range rs {
		last[key{resp.ExamID, resp.QuestionID}] = i
	}
	if len(last) == len(rs) {
		return rs
	}

	out := make([]model.ExamResponse, 0, len(last))
	for i, resp := range rs {
		if last[key{resp.ExamID, resp.QuestionID}] == i {
			out = append(out, resp)
		}
	}
	return out
}
