package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/drivetest-backend/internal/model"
)

// QuestionRepository handles questions and their answers.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// List returns a page of questions matching f, with answers, plus the total match count.
func (r *QuestionRepository) List(ctx context.Context, f model.QuestionFilter) ([]model.Question, int64, error) {
	where := ` WHERE 1=1`
	args := []any{}

	if f.Category != "" {
		args = append(args, f.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(" AND question_text ILIKE $%d", len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, question_text, image_url, category, created_at, updated_at
		FROM questions` + where + `
		ORDER BY created_at DESC, id
		LIMIT $` + formatInt(len(args)+1) + ` OFFSET $` + formatInt(len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	questions, err := scanQuestions(rows)
	if err != nil {
		return nil, 0, err
	}

	if err := r.attachAnswers(ctx, questions); err != nil {
		return nil, 0, err
	}
	return questions, total, nil
}

// GetByID retrieves a question with its answers.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, question_text, image_url, category, created_at, updated_at
		 FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.Text, &q.ImageURL, &q.Category, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}

	qs := []model.Question{*q}
	if err := r.attachAnswers(ctx, qs); err != nil {
		return nil, err
	}
	return &qs[0], nil
}

// ListAll returns the whole bank with answers.
func (r *QuestionRepository) ListAll(ctx context.Context) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question_text, image_url, category, created_at, updated_at
		 FROM questions ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	questions, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}
	if err := r.attachAnswers(ctx, questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// Create inserts a question and its answers in one transaction.
// A nil q.ID is generated by the database; answer ids likewise.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO questions (id, question_text, image_url, category)
		 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		nullUUID(q.ID), q.Text, q.ImageURL, q.Category,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return err
	}

	if err := insertAnswers(ctx, tx, q); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateIfAbsent inserts q with its fixed ids unless a question with that id exists.
// It reports whether a row was written.
func (r *QuestionRepository) CreateIfAbsent(ctx context.Context, q *model.Question) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO questions (id, question_text, image_url, category)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		q.ID, q.Text, q.ImageURL, q.Category)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if err := insertAnswers(ctx, tx, q); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// Update replaces the question fields and its answers in one transaction.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`UPDATE questions
		 SET question_text = $1, image_url = $2, category = $3, updated_at = NOW()
		 WHERE id = $4
		 RETURNING created_at, updated_at`,
		q.Text, q.ImageURL, q.Category, q.ID,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM answers WHERE question_id = $1`, q.ID); err != nil {
		return err
	}
	if err := insertAnswers(ctx, tx, q); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Delete removes a question; answers cascade.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// CountByCategory returns the number of questions per category.
func (r *QuestionRepository) CountByCategory(ctx context.Context) (map[model.Category]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT category, COUNT(*) FROM questions GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.Category]int)
	for rows.Next() {
		var c model.Category
		var n int
		if err := rows.Scan(&c, &n); err != nil {
			return nil, err
		}
		counts[c] = n
	}
	return counts, rows.Err()
}

func (r *QuestionRepository) attachAnswers(ctx context.Context, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(questions))
	index := make(map[uuid.UUID]int, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
		index[q.ID] = i
		questions[i].Answers = []model.Answer{}
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, question_id, answer_text, image_url, is_correct
		 FROM answers WHERE question_id = ANY($1::uuid[])
		 ORDER BY question_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.ImageURL, &a.IsCorrect); err != nil {
			return err
		}
		i := index[a.QuestionID]
		questions[i].Answers = append(questions[i].Answers, a)
	}
	return rows.Err()
}

func insertAnswers(ctx context.Context, tx pgx.Tx, q *model.Question) error {
	for i := range q.Answers {
		a := &q.Answers[i]
		a.QuestionID = q.ID
		err := tx.QueryRow(ctx,
			`INSERT INTO answers (id, question_id, answer_text, image_url, is_correct, position)
			 VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6)
			 RETURNING id`,
			nullUUID(a.ID), q.ID, a.Text, a.ImageURL, a.IsCorrect, i,
		).Scan(&a.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func scanQuestions(rows pgx.Rows) ([]model.Question, error) {
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.ImageURL, &q.Category, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// nullUUID maps uuid.Nil to SQL NULL.
func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
