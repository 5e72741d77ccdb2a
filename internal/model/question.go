package model

import (
	"time"

	"github.com/google/uuid"
)

// Category groups questions in the bank.
type Category string

const (
	CategoryRoadSign Category = "road_sign"
	CategoryRoadRule Category = "road_rule"
	CategoryGeneral  Category = "general"
)

// Categories lists every valid category in display order.
var Categories = []Category{CategoryRoadSign, CategoryRoadRule, CategoryGeneral}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryRoadSign, CategoryRoadRule, CategoryGeneral:
		return true
	}
	return false
}

// Question is a multiple-choice question from the bank together with its answer options.
type Question struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"question_text"`
	ImageURL  *string   `json:"image_url,omitempty"`
	Category  Category  `json:"category"`
	Answers   []Answer  `json:"answers"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Answer is one option of a question.
type Answer struct {
	ID         uuid.UUID `json:"id"`
	QuestionID uuid.UUID `json:"question_id"`
	Text       string    `json:"answer_text"`
	ImageURL   *string   `json:"image_url,omitempty"`
	IsCorrect  bool      `json:"is_correct"`
}

// CorrectAnswerID returns the id of the first answer flagged correct.
// The second result is false when no answer carries the flag.
func (q *Question) CorrectAnswerID() (uuid.UUID, bool) {
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a.ID, true
		}
	}
	return uuid.Nil, false
}

// HasAnswer reports whether answerID is one of the question's options.
func (q *Question) HasAnswer(answerID uuid.UUID) bool {
	for _, a := range q.Answers {
		if a.ID == answerID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers may reorder answers freely.
func (q Question) Clone() Question {
	out := q
	out.Answers = make([]Answer, len(q.Answers))
	copy(out.Answers, q.Answers)
	return out
}

// QuestionFilter narrows question bank listings.
type QuestionFilter struct {
	Category Category
	Search   string
	Limit    int
	Offset   int
}

// AnswerInput is one answer option in a create/update payload.
type AnswerInput struct {
	Text      string  `json:"answer_text" binding:"required,min=1,max=500"`
	ImageURL  *string `json:"image_url" binding:"omitempty,max=1024"`
	IsCorrect bool    `json:"is_correct"`
}

// SaveQuestionRequest is the payload for creating or updating a question.
// Exactly one answer must be flagged correct.
type SaveQuestionRequest struct {
	Text     string        `json:"question_text" binding:"required,min=3,max=2000"`
	ImageURL *string       `json:"image_url" binding:"omitempty,max=1024"`
	Category Category      `json:"category" binding:"required,oneof=road_sign road_rule general"`
	Answers  []AnswerInput `json:"answers" binding:"required,min=2,max=6,single_correct,dive"`
}

// Correct reports the correctness flag; used by the single_correct rule.
func (a AnswerInput) Correct() bool {
	return a.IsCorrect
}
