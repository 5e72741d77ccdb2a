package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/drivetest-backend/internal/datasource"
	"github.com/stemsi/drivetest-backend/internal/logger"
	"github.com/stemsi/drivetest-backend/internal/model"
	"github.com/stemsi/drivetest-backend/internal/response"
)

// Question bank errors.
var (
	ErrQuestionNotFound    = errors.New("question not found")
	ErrSingleCorrectAnswer = errors.New("exactly one answer must be marked correct")
	ErrInvalidCategory     = errors.New("invalid category")
)

// QuestionService handles question bank administration.
type QuestionService struct {
	bank datasource.QuestionBank
	log  zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(bank datasource.QuestionBank, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		bank: bank,
		log:  logger.Component(log, "question_service"),
	}
}

// normalizePage clamps pagination input to 1..100 items per page.
func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

// List returns a page of questions filtered by category and text search.
func (s *QuestionService) List(ctx context.Context, category model.Category, search string, page, perPage int) ([]model.Question, *response.Pagination, error) {
	if category != "" && !category.Valid() {
		return nil, nil, ErrInvalidCategory
	}
	page, perPage = normalizePage(page, perPage)

	questions, total, err := s.bank.ListQuestions(ctx, model.QuestionFilter{
		Category: category,
		Search:   strings.TrimSpace(search),
		Limit:    perPage,
		Offset:   (page - 1) * perPage,
	})
	if err != nil {
		return nil, nil, err
	}
	return questions, response.NewPagination(page, perPage, total), nil
}

// Get returns one question with its answers.
func (s *QuestionService) Get(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q, err := s.bank.GetQuestion(ctx, id)
	if err != nil {
		if errors.Is(err, datasource.ErrNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return q, nil
}

// Create adds a question to the bank.
func (s *QuestionService) Create(ctx context.Context, req model.SaveQuestionRequest) (*model.Question, error) {
	q, err := buildQuestion(uuid.Nil, req)
	if err != nil {
		return nil, err
	}
	if err := s.bank.CreateQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}

	s.log.Info().Str("question_id", q.ID.String()).Str("category", string(q.Category)).Msg("Question created")
	return q, nil
}

// Update replaces a question and its full answer list.
func (s *QuestionService) Update(ctx context.Context, id uuid.UUID, req model.SaveQuestionRequest) (*model.Question, error) {
	q, err := buildQuestion(id, req)
	if err != nil {
		return nil, err
	}
	if err := s.bank.UpdateQuestion(ctx, q); err != nil {
		if errors.Is(err, datasource.ErrNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("update question: %w", err)
	}

	s.log.Info().Str("question_id", q.ID.String()).Msg("Question updated")
	return q, nil
}

// Delete removes a question and its answers.
func (s *QuestionService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.bank.DeleteQuestion(ctx, id); err != nil {
		if errors.Is(err, datasource.ErrNotFound) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("delete question: %w", err)
	}

	s.log.Info().Str("question_id", id.String()).Msg("Question deleted")
	return nil
}

// buildQuestion maps a payload to a question, enforcing the single correct
// answer rule regardless of how the payload was produced.
func buildQuestion(id uuid.UUID, req model.SaveQuestionRequest) (*model.Question, error) {
	if !req.Category.Valid() {
		return nil, ErrInvalidCategory
	}

	correct := 0
	answers := make([]model.Answer, len(req.Answers))
	for i, in := range req.Answers {
		if in.IsCorrect {
			correct++
		}
		answers[i] = model.Answer{
			QuestionID: id,
			Text:       strings.TrimSpace(in.Text),
			ImageURL:   in.ImageURL,
			IsCorrect:  in.IsCorrect,
		}
	}
	if correct != 1 {
		return nil, ErrSingleCorrectAnswer
	}

	return &model.Question{
		ID:       id,
		Text:     strings.TrimSpace(req.Text),
		ImageURL: req.ImageURL,
		Category: req.Category,
		Answers:  answers,
	}, nil
}
