package exam

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/drivetest-backend/internal/model"
)

func startController(t *testing.T, mode model.Mode, n int, rep *fakeReporter, opts ...Option) (*Controller, []model.Question) {
	t.Helper()
	qs := makeQuestions(n)
	c := NewController(uuid.New(), mode, qs, rep, opts...)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(c.Close)
	return c, qs
}

func TestController_StartFailure(t *testing.T) {
	rep := newFakeReporter()
	rep.createErr = errBackendDown

	c := NewController(uuid.New(), model.ModePractice, makeQuestions(3), rep)
	err := c.Start(context.Background())
	if !errors.Is(err, ErrStartFailed) {
		t.Fatalf("expected ErrStartFailed, got %v", err)
	}
	if c.State() != StateLoading {
		t.Fatalf("expected loading, got %s", c.State())
	}
	if err := c.SelectAnswer(uuid.New()); !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
	if _, err := c.Submit(context.Background()); !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
}

func TestController_SelectTwiceKeepsLast(t *testing.T) {
	rep := newFakeReporter()
	c, qs := startController(t, model.ModePractice, 2, rep)

	if err := c.SelectAnswer(wrongOf(qs[0])); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if err := c.SelectAnswer(correctOf(qs[0])); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}

	snap := c.Snapshot()
	if snap.SelectedAnswerID == nil || *snap.SelectedAnswerID != correctOf(qs[0]) {
		t.Fatalf("expected last selection to win, got %v", snap.SelectedAnswerID)
	}
	if snap.Answered != 1 {
		t.Fatalf("expected 1 answered, got %d", snap.Answered)
	}
	if snap.Position != 0 {
		t.Fatalf("selecting must not advance, position=%d", snap.Position)
	}
}

func TestController_SelectForeignAnswer(t *testing.T) {
	c, qs := startController(t, model.ModePractice, 2, newFakeReporter())

	if err := c.SelectAnswer(correctOf(qs[1])); !errors.Is(err, ErrUnknownAnswer) {
		t.Fatalf("expected ErrUnknownAnswer, got %v", err)
	}
}

func TestController_RetreatAtFirstIsNoop(t *testing.T) {
	c, qs := startController(t, model.ModePractice, 3, newFakeReporter())

	if err := c.SelectAnswer(correctOf(qs[0])); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if err := c.Retreat(); err != nil {
		t.Fatalf("Retreat: %v", err)
	}

	snap := c.Snapshot()
	if snap.Position != 0 {
		t.Fatalf("expected position 0, got %d", snap.Position)
	}
	if snap.SelectedAnswerID == nil {
		t.Fatal("retreat must not clear answers")
	}
}

func TestController_AdvanceAndRetreat(t *testing.T) {
	rep := newFakeReporter()
	c, qs := startController(t, model.ModePractice, 3, rep)

	// Unanswered question: nothing recorded.
	if res, err := c.Advance(context.Background()); err != nil || res != nil {
		t.Fatalf("Advance: res=%v err=%v", res, err)
	}
	if rep.responseCount() != 0 {
		t.Fatalf("expected no response for a skipped question, got %d", rep.responseCount())
	}

	if err := c.SelectAnswer(correctOf(qs[1])); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if _, err := c.Advance(context.Background()); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if rep.responseCount() != 1 {
		t.Fatalf("expected 1 response, got %d", rep.responseCount())
	}
	resp := rep.responses[0]
	if resp.QuestionID != qs[1].ID || resp.IsCorrect == nil || !*resp.IsCorrect {
		t.Fatalf("unexpected response record %+v", resp)
	}
	if resp.ExamID != rep.sessionID {
		t.Fatalf("expected exam id %s, got %s", rep.sessionID, resp.ExamID)
	}

	if err := c.Retreat(); err != nil {
		t.Fatalf("Retreat: %v", err)
	}
	if got := c.Snapshot().Position; got != 1 {
		t.Fatalf("expected position 1, got %d", got)
	}
}

func TestController_AdvancePastLastSubmits(t *testing.T) {
	rep := newFakeReporter()
	c, qs := startController(t, model.ModePractice, 5, rep)

	var res *Result
	for i, q := range qs {
		answer := correctOf(q)
		if i == 4 {
			answer = wrongOf(q)
		}
		if err := c.SelectAnswer(answer); err != nil {
			t.Fatalf("SelectAnswer: %v", err)
		}
		r, err := c.Advance(context.Background())
		if err != nil {
			t.Fatalf("Advance: %v", err)
		}
		if i < 4 && r != nil {
			t.Fatalf("unexpected result before the last question")
		}
		res = r
	}

	if res == nil {
		t.Fatal("expected result after advancing past the last question")
	}
	if res.Score.Score != 80 || !res.Passed {
		t.Fatalf("expected 80 passed, got %d passed=%v", res.Score.Score, res.Passed)
	}
	if c.State() != StateCompleted {
		t.Fatalf("expected completed, got %s", c.State())
	}
	if got := c.Snapshot().Position; got != 4 {
		t.Fatalf("position moved past the end: %d", got)
	}
	if rep.finalizeCount() != 1 {
		t.Fatalf("expected one finalize, got %d", rep.finalizeCount())
	}
	if rep.responseCount() != 5 {
		t.Fatalf("expected 5 responses, got %d", rep.responseCount())
	}

	if _, err := c.Advance(context.Background()); !errors.Is(err, ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive after completion, got %v", err)
	}
}

func TestController_LearningMode(t *testing.T) {
	rep := newFakeReporter()
	c, qs := startController(t, model.ModeLearning, 2, rep)

	before := c.Snapshot()
	if before.ExplanationVisible || before.CorrectAnswerID != nil {
		t.Fatal("explanation visible before selecting")
	}
	for _, a := range before.Question.Answers {
		if a.IsCorrect != nil {
			t.Fatal("correctness leaked before reveal")
		}
	}

	if err := c.SelectAnswer(wrongOf(qs[0])); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	after := c.Snapshot()
	if !after.ExplanationVisible {
		t.Fatal("expected explanation after selecting in learning mode")
	}
	if after.CorrectAnswerID == nil || *after.CorrectAnswerID != correctOf(qs[0]) {
		t.Fatal("expected correct answer to be revealed")
	}

	if _, err := c.Advance(context.Background()); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if c.Snapshot().ExplanationVisible {
		t.Fatal("expected explanation reset after advancing")
	}

	if err := c.SelectAnswer(correctOf(qs[1])); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	res, err := c.Advance(context.Background())
	if err != nil || res == nil {
		t.Fatalf("expected result, got res=%v err=%v", res, err)
	}
	if rep.responseCount() != 0 {
		t.Fatalf("learning mode must not persist responses, got %d", rep.responseCount())
	}
	if res.Score.Score != 50 {
		t.Fatalf("expected 50, got %d", res.Score.Score)
	}
}

func TestController_PracticeHidesCorrectness(t *testing.T) {
	c, qs := startController(t, model.ModePractice, 1, newFakeReporter())

	if err := c.SelectAnswer(correctOf(qs[0])); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	snap := c.Snapshot()
	if snap.ExplanationVisible || snap.CorrectAnswerID != nil {
		t.Fatal("practice mode must not reveal answers while in progress")
	}
	if snap.RemainingSeconds != nil {
		t.Fatal("practice mode has no timer")
	}

	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if c.Snapshot().CorrectAnswerID == nil {
		t.Fatal("expected answers revealed after completion")
	}
}

func TestController_SubmitIsIdempotent(t *testing.T) {
	rep := newFakeReporter()
	c, _ := startController(t, model.ModePractice, 3, rep)

	first, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	second, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if first != second {
		t.Fatal("expected the same result on repeated submit")
	}
	if rep.finalizeCount() != 1 {
		t.Fatalf("expected one finalize, got %d", rep.finalizeCount())
	}
}

func TestController_SubmitFlushesUnrecordedAnswers(t *testing.T) {
	rep := newFakeReporter()
	c, qs := startController(t, model.ModePractice, 3, rep)

	if err := c.SelectAnswer(correctOf(qs[0])); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rep.responseCount() != 1 {
		t.Fatalf("expected the pending answer to be recorded, got %d", rep.responseCount())
	}
}

func TestController_FinalizeFailureKeepsResult(t *testing.T) {
	rep := newFakeReporter()
	rep.finalizeErr = errBackendDown
	c, qs := startController(t, model.ModePractice, 1, rep)

	if err := c.SelectAnswer(correctOf(qs[0])); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	res, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !errors.Is(res.ReportErr, errBackendDown) {
		t.Fatalf("expected ReportErr, got %v", res.ReportErr)
	}
	if res.Score.Score != 100 || c.State() != StateCompleted {
		t.Fatalf("expected completed 100, got %d in %s", res.Score.Score, c.State())
	}
}

func TestController_RecordFailureDoesNotBlock(t *testing.T) {
	rep := newFakeReporter()
	rep.recordErr = errBackendDown
	c, qs := startController(t, model.ModePractice, 2, rep)

	if err := c.SelectAnswer(correctOf(qs[0])); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if _, err := c.Advance(context.Background()); err != nil {
		t.Fatalf("Advance must not fail on record errors: %v", err)
	}
	if got := c.Snapshot().Position; got != 1 {
		t.Fatalf("expected position 1, got %d", got)
	}
}

func TestController_FailedRecordIsNotRetried(t *testing.T) {
	rep := newFakeReporter()
	rep.recordErr = errBackendDown
	c, qs := startController(t, model.ModePractice, 3, rep)

	for _, q := range qs {
		if err := c.SelectAnswer(correctOf(q)); err != nil {
			t.Fatalf("SelectAnswer: %v", err)
		}
		if _, err := c.Advance(context.Background()); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}

	if c.State() != StateCompleted {
		t.Fatalf("expected completed, got %s", c.State())
	}
	if got := rep.attemptCount(); got != len(qs) {
		t.Fatalf("expected one record attempt per answered question, got %d", got)
	}
}

func TestController_ChangedAnswerIsRecordedAgain(t *testing.T) {
	rep := newFakeReporter()
	c, qs := startController(t, model.ModePractice, 3, rep)

	if err := c.SelectAnswer(wrongOf(qs[0])); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if _, err := c.Advance(context.Background()); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := c.Retreat(); err != nil {
		t.Fatalf("Retreat: %v", err)
	}

	// Same answer again: nothing new to record.
	if _, err := c.Advance(context.Background()); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if got := rep.attemptCount(); got != 1 {
		t.Fatalf("expected 1 attempt for an unchanged answer, got %d", got)
	}

	if err := c.Retreat(); err != nil {
		t.Fatalf("Retreat: %v", err)
	}
	if err := c.SelectAnswer(correctOf(qs[0])); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if _, err := c.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := rep.attemptCount(); got != 2 {
		t.Fatalf("expected the changed answer to be recorded, got %d attempts", got)
	}
	last := rep.responses[len(rep.responses)-1]
	if *last.AnswerID != correctOf(qs[0]) || !*last.IsCorrect {
		t.Fatalf("unexpected last record %+v", last)
	}
}

func TestController_SlowRecordDoesNotHoldSession(t *testing.T) {
	rep := newFakeReporter()
	rep.recordGate = make(chan struct{})
	rep.recordEntered = make(chan struct{}, 1)
	c, qs := startController(t, model.ModePractice, 3, rep)

	if err := c.SelectAnswer(correctOf(qs[0])); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}

	advanced := make(chan error, 1)
	go func() {
		_, err := c.Advance(context.Background())
		advanced <- err
	}()

	select {
	case <-rep.recordEntered:
	case <-time.After(time.Second):
		t.Fatal("record was never attempted")
	}

	// The sink is stuck; the session must still answer.
	snapshot := make(chan Snapshot, 1)
	go func() { snapshot <- c.Snapshot() }()
	select {
	case snap := <-snapshot:
		if snap.Position != 1 {
			t.Fatalf("expected position 1 while the record is in flight, got %d", snap.Position)
		}
	case <-time.After(time.Second):
		t.Fatal("Snapshot blocked behind a pending record")
	}

	close(rep.recordGate)
	if err := <-advanced; err != nil {
		t.Fatalf("Advance: %v", err)
	}
}

func TestController_FinalizeCarriesCorrectCount(t *testing.T) {
	rep := newFakeReporter()
	c, qs := startController(t, model.ModeLearning, 4, rep)

	for i, q := range qs {
		answer := correctOf(q)
		if i == 0 {
			answer = wrongOf(q)
		}
		if err := c.SelectAnswer(answer); err != nil {
			t.Fatalf("SelectAnswer: %v", err)
		}
		if _, err := c.Advance(context.Background()); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}

	if rep.finalizeCount() != 1 {
		t.Fatalf("expected one finalize, got %d", rep.finalizeCount())
	}
	got := rep.finalized[0].outcome
	if got.CorrectCount != 3 || got.Score != 75 || !got.Passed || got.EndedAt.IsZero() {
		t.Fatalf("unexpected outcome %+v", got)
	}
}

func TestController_MockTestTimerExpiry(t *testing.T) {
	rep := newFakeReporter()
	c, qs := startController(t, model.ModeMockTest, 20, rep, WithDuration(150*time.Millisecond))

	// Answer 12 questions: 9 correct, 3 wrong.
	for i := 0; i < 12; i++ {
		answer := correctOf(qs[i])
		if i >= 9 {
			answer = wrongOf(qs[i])
		}
		if err := c.SelectAnswer(answer); err != nil {
			t.Fatalf("SelectAnswer: %v", err)
		}
		if _, err := c.Advance(context.Background()); err != nil {
			t.Fatalf("Advance: %v", err)
		}
	}

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not submit the session")
	}

	res := c.Result()
	if res == nil {
		t.Fatal("expected a result after expiry")
	}
	// round(100*9/20) = 45
	if res.Score.Score != 45 || res.Passed || res.Total != 20 {
		t.Fatalf("unexpected result %+v", res.Score)
	}
	if rep.finalizeCount() != 1 {
		t.Fatalf("expected one finalize, got %d", rep.finalizeCount())
	}
	if rem := c.Snapshot().RemainingSeconds; rem == nil || *rem != 0 {
		t.Fatalf("expected 0 remaining seconds, got %v", rem)
	}
}

func TestController_TimerRacesManualSubmit(t *testing.T) {
	rep := newFakeReporter()
	rep.finalizeDelay = 20 * time.Millisecond
	c, _ := startController(t, model.ModeMockTest, 20, rep, WithDuration(5*time.Millisecond))

	var wg sync.WaitGroup
	results := make([]*Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			time.Sleep(time.Duration(i) * time.Millisecond)
			res, err := c.Submit(context.Background())
			if err != nil {
				t.Errorf("Submit: %v", err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	<-c.Done()
	if rep.finalizeCount() != 1 {
		t.Fatalf("expected exactly one finalize, got %d", rep.finalizeCount())
	}
	for _, r := range results {
		if r != c.Result() {
			t.Fatal("every caller must observe the same result")
		}
	}
}

func TestController_MockTestRemainingSeconds(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	c, _ := startController(t, model.ModeMockTest, 20, newFakeReporter(), WithClock(clock))

	snap := c.Snapshot()
	if snap.RemainingSeconds == nil || *snap.RemainingSeconds != 1200 {
		t.Fatalf("expected 1200 remaining, got %v", snap.RemainingSeconds)
	}

	now = now.Add(90*time.Second + 500*time.Millisecond)
	if got := *c.Snapshot().RemainingSeconds; got != 1110 {
		t.Fatalf("expected 1110 remaining, got %d", got)
	}
}

func TestController_EmptyQuestionSet(t *testing.T) {
	rep := newFakeReporter()
	c := NewController(uuid.New(), model.ModePractice, []model.Question{}, rep)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := c.SelectAnswer(uuid.New()); !errors.Is(err, ErrUnknownAnswer) {
		t.Fatalf("expected ErrUnknownAnswer, got %v", err)
	}
	res, err := c.Advance(context.Background())
	if err != nil || res == nil {
		t.Fatalf("expected immediate submit, got res=%v err=%v", res, err)
	}
	if res.Score.Score != 0 || res.Passed {
		t.Fatalf("expected 0 not passed, got %+v", res.Score)
	}
}
