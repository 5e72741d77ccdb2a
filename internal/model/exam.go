package model

import (
	"time"

	"github.com/google/uuid"
)

// Mode selects how an exam session behaves.
type Mode string

const (
	ModePractice Mode = "practice"
	ModeMockTest Mode = "mock_test"
	ModeLearning Mode = "learning"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModePractice, ModeMockTest, ModeLearning:
		return true
	}
	return false
}

// Exam is the persisted record of one session (row of the exams table).
type Exam struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	Mode           Mode       `json:"mode"`
	TotalQuestions int        `json:"total_questions"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Score          *int       `json:"score,omitempty"`
	CorrectCount   *int       `json:"correct_count,omitempty"`
	Passed         *bool      `json:"passed,omitempty"`
}

// ExamOutcome is what finalizing a session writes to its exam row.
type ExamOutcome struct {
	EndedAt      time.Time
	Score        int
	CorrectCount int
	Passed       bool
}

// Completed reports whether the exam has been finalized.
func (e *Exam) Completed() bool {
	return e.EndedAt != nil
}

// ExamResponse is the persisted outcome of one question within a session.
type ExamResponse struct {
	ExamID     uuid.UUID  `json:"exam_id"`
	QuestionID uuid.UUID  `json:"question_id"`
	AnswerID   *uuid.UUID `json:"answer_id,omitempty"`
	IsCorrect  *bool      `json:"is_correct,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ExamStats aggregates exam outcomes for the admin dashboard.
type ExamStats struct {
	TotalExams     int     `json:"total_exams"`
	CompletedExams int     `json:"completed_exams"`
	PassedExams    int     `json:"passed_exams"`
	AverageScore   float64 `json:"average_score"`
}

// StartExamRequest is the payload for starting a session.
type StartExamRequest struct {
	Mode Mode `json:"mode" binding:"required,oneof=practice mock_test learning"`
}

// SelectAnswerRequest is the payload for choosing an answer on the current question.
type SelectAnswerRequest struct {
	AnswerID uuid.UUID `json:"answer_id" binding:"required"`
}
