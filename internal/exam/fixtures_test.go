package exam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/drivetest-backend/internal/model"
)

// makeQuestions builds n questions with three answers each; the first answer
// is the correct one.
func makeQuestions(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qID := uuid.New()
		qs[i] = model.Question{
			ID:       qID,
			Text:     fmt.Sprintf("Question %d", i+1),
			Category: model.CategoryRoadRule,
			Answers: []model.Answer{
				{ID: uuid.New(), QuestionID: qID, Text: "right", IsCorrect: true},
				{ID: uuid.New(), QuestionID: qID, Text: "wrong 1"},
				{ID: uuid.New(), QuestionID: qID, Text: "wrong 2"},
			},
		}
	}
	return qs
}

func correctOf(q model.Question) uuid.UUID {
	id, _ := q.CorrectAnswerID()
	return id
}

func wrongOf(q model.Question) uuid.UUID {
	for _, a := range q.Answers {
		if !a.IsCorrect {
			return a.ID
		}
	}
	return uuid.Nil
}

type finalizeCall struct {
	sessionID uuid.UUID
	outcome   model.ExamOutcome
}

type fakeReporter struct {
	mu            sync.Mutex
	createErr     error
	recordErr     error
	recordGate    chan struct{}
	recordEntered chan struct{}
	attempts      int
	finalizeErr   error
	finalizeDelay time.Duration
	sessionID     uuid.UUID
	responses     []model.ExamResponse
	finalized     []finalizeCall
}

func newFakeReporter() *fakeReporter {
	return &fakeReporter{sessionID: uuid.New()}
}

func (f *fakeReporter) CreateSession(_ context.Context, _ uuid.UUID, _ model.Mode, _ int) (uuid.UUID, error) {
	if f.createErr != nil {
		return uuid.Nil, f.createErr
	}
	return f.sessionID, nil
}

func (f *fakeReporter) RecordResponse(_ context.Context, resp model.ExamResponse) error {
	if f.recordEntered != nil {
		f.recordEntered <- struct{}{}
	}
	if f.recordGate != nil {
		<-f.recordGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.recordErr != nil {
		return f.recordErr
	}
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeReporter) FinalizeSession(_ context.Context, id uuid.UUID, outcome model.ExamOutcome) error {
	if f.finalizeDelay > 0 {
		time.Sleep(f.finalizeDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = append(f.finalized, finalizeCall{sessionID: id, outcome: outcome})
	return f.finalizeErr
}

func (f *fakeReporter) finalizeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.finalized)
}

func (f *fakeReporter) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *fakeReporter) responseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.responses)
}

type stubPool struct {
	questions []model.Question
	err       error
}

func (s stubPool) QuestionPool(context.Context) ([]model.Question, error) {
	return s.questions, s.err
}

var errBackendDown = errors.New("backend down")
