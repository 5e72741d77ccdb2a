package service

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/drivetest-backend/internal/config"
	"github.com/stemsi/drivetest-backend/internal/datasource"
	"github.com/stemsi/drivetest-backend/internal/exam"
	"github.com/stemsi/drivetest-backend/internal/messaging"
	"github.com/stemsi/drivetest-backend/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:  "test-secret",
		JWTExpiry:  time.Hour,
		BcryptCost: 4,
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []messaging.ExamCompletedEvent
}

func (p *recordingPublisher) PublishExamCompleted(_ context.Context, evt messaging.ExamCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type sessionEnv struct {
	source    *datasource.Fixture
	publisher *recordingPublisher
	svc       *ExamSessionService
}

func newSessionEnv(t *testing.T, source *datasource.Fixture, opts ...exam.Option) *sessionEnv {
	t.Helper()
	if source == nil {
		source = datasource.NewFixture()
	}
	pub := &recordingPublisher{}
	reporter := NewResultReporter(source, NewDirectResponseSink(source), pub, zerolog.Nop())
	loader := exam.NewLoader(source, rand.New(rand.NewPCG(7, 11)))
	svc := NewExamSessionService(loader, reporter, source, zerolog.Nop(), opts...)
	t.Cleanup(svc.Close)
	return &sessionEnv{source: source, publisher: pub, svc: svc}
}

// correctAnswer looks up the flagged answer of the snapshot's current question.
func (e *sessionEnv) correctAnswer(t *testing.T, snap exam.Snapshot) uuid.UUID {
	t.Helper()
	q, err := e.source.GetQuestion(context.Background(), snap.Question.ID)
	if err != nil {
		t.Fatalf("GetQuestion: %v", err)
	}
	id, ok := q.CorrectAnswerID()
	if !ok {
		t.Fatalf("question %s has no correct answer", q.ID)
	}
	return id
}

func (e *sessionEnv) wrongAnswer(t *testing.T, snap exam.Snapshot) uuid.UUID {
	t.Helper()
	for _, a := range snap.Question.Answers {
		if a.ID != e.correctAnswer(t, snap) {
			return a.ID
		}
	}
	t.Fatal("no wrong answer available")
	return uuid.Nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func demoStudent(t *testing.T, f *datasource.Fixture) *model.User {
	t.Helper()
	u, err := f.GetUserByEmail(context.Background(), datasource.DemoStudentEmail)
	if err != nil {
		t.Fatalf("demo student: %v", err)
	}
	return u
}

func nopLogger() zerolog.Logger { return zerolog.Nop() }
