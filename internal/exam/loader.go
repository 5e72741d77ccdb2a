package exam

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/drivetest-backend/internal/model"
)

// ErrQuestionSetUnavailable is returned when the question pool cannot be
// fetched or contains malformed data.
var ErrQuestionSetUnavailable = errors.New("question set unavailable")

// QuestionPool supplies every question eligible for a session, answers included.
type QuestionPool interface {
	QuestionPool(ctx context.Context) ([]model.Question, error)
}

// Loader builds the randomized question sequence for a new session.
type Loader struct {
	pool QuestionPool

	mu  sync.Mutex
	rng *rand.Rand
}

// NewLoader creates a Loader. A nil rng uses a randomly seeded generator.
func NewLoader(pool QuestionPool, rng *rand.Rand) *Loader {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Loader{pool: pool, rng: rng}
}

// Load returns QuestionCount(mode) questions in random order, each with its
// answers shuffled. A smaller pool yields every question it has.
// On failure the returned slice is empty, never nil.
func (l *Loader) Load(ctx context.Context, mode model.Mode) ([]model.Question, error) {
	pool, err := l.pool.QuestionPool(ctx)
	if err != nil {
		return []model.Question{}, fmt.Errorf("%w: %v", ErrQuestionSetUnavailable, err)
	}
	if err := validatePool(pool); err != nil {
		return []model.Question{}, fmt.Errorf("%w: %v", ErrQuestionSetUnavailable, err)
	}

	questions := make([]model.Question, len(pool))
	for i := range pool {
		questions[i] = pool[i].Clone()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rng.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})

	if n := QuestionCount(mode); len(questions) > n {
		questions = questions[:n]
	}

	for i := range questions {
		answers := questions[i].Answers
		l.rng.Shuffle(len(answers), func(a, b int) {
			answers[a], answers[b] = answers[b], answers[a]
		})
	}

	return questions, nil
}

func validatePool(pool []model.Question) error {
	for i, q := range pool {
		if q.ID == uuid.Nil {
			return fmt.Errorf("question %d has no id", i)
		}
		if q.Text == "" {
			return fmt.Errorf("question %s has no text", q.ID)
		}
		for _, a := range q.Answers {
			if a.ID == uuid.Nil {
				return fmt.Errorf("question %s has an answer without id", q.ID)
			}
		}
	}
	return nil
}
