package exam

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/drivetest-backend/internal/model"
)

func TestLoader_QuestionCountPerMode(t *testing.T) {
	pool := makeQuestions(30)

	tests := []struct {
		mode model.Mode
		want int
	}{
		{mode: model.ModePractice, want: 10},
		{mode: model.ModeLearning, want: 10},
		{mode: model.ModeMockTest, want: 20},
	}

	for _, tc := range tests {
		t.Run(string(tc.mode), func(t *testing.T) {
			l := NewLoader(stubPool{questions: pool}, rand.New(rand.NewPCG(1, 2)))
			got, err := l.Load(context.Background(), tc.mode)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(got) != tc.want {
				t.Fatalf("expected %d questions, got %d", tc.want, len(got))
			}

			seen := map[uuid.UUID]bool{}
			for _, q := range got {
				if seen[q.ID] {
					t.Fatalf("question %s drawn twice", q.ID)
				}
				seen[q.ID] = true
			}
		})
	}
}

func TestLoader_SmallPoolReturnsEverything(t *testing.T) {
	pool := makeQuestions(7)
	l := NewLoader(stubPool{questions: pool}, nil)

	got, err := l.Load(context.Background(), model.ModeMockTest)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 7 {
		t.Fatalf("expected 7 questions, got %d", len(got))
	}
}

func TestLoader_ShufflesWithoutMutatingPool(t *testing.T) {
	pool := makeQuestions(20)
	firstAnswers := make([]uuid.UUID, len(pool))
	for i, q := range pool {
		firstAnswers[i] = q.Answers[0].ID
	}

	l := NewLoader(stubPool{questions: pool}, rand.New(rand.NewPCG(42, 7)))
	got, err := l.Load(context.Background(), model.ModeMockTest)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	moved := false
	for i, q := range got {
		if q.ID != pool[i].ID {
			moved = true
		}
		if len(q.Answers) != 3 {
			t.Fatalf("expected 3 answers, got %d", len(q.Answers))
		}
	}
	if !moved {
		t.Fatal("expected question order to change")
	}

	for i, q := range pool {
		if q.Answers[0].ID != firstAnswers[i] {
			t.Fatal("pool answers were reordered in place")
		}
	}
}

func TestLoader_Failures(t *testing.T) {
	malformed := makeQuestions(3)
	malformed[1].Text = ""

	missingAnswerID := makeQuestions(2)
	missingAnswerID[0].Answers[1].ID = uuid.Nil

	tests := []struct {
		name string
		pool stubPool
	}{
		{name: "source unreachable", pool: stubPool{err: errBackendDown}},
		{name: "empty text", pool: stubPool{questions: malformed}},
		{name: "answer without id", pool: stubPool{questions: missingAnswerID}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewLoader(tc.pool, nil).Load(context.Background(), model.ModePractice)
			if !errors.Is(err, ErrQuestionSetUnavailable) {
				t.Fatalf("expected ErrQuestionSetUnavailable, got %v", err)
			}
			if got == nil || len(got) != 0 {
				t.Fatalf("expected empty non-nil slice, got %#v", got)
			}
		})
	}
}
