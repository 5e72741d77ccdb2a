package exam

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/drivetest-backend/internal/model"
)

// State is the lifecycle position of a session.
type State string

const (
	StateLoading    State = "loading"
	StateInProgress State = "in_progress"
	StateSubmitting State = "submitting"
	StateCompleted  State = "completed"
)

// Controller errors.
var (
	ErrStartFailed      = errors.New("failed to start exam session")
	ErrSessionNotActive = errors.New("exam session is not in progress")
	ErrUnknownAnswer    = errors.New("answer does not belong to the current question")
)

// finalizeTimeout bounds the finalize call made when the mock test timer fires.
const finalizeTimeout = 10 * time.Second

// Result is the finalized outcome of a session.
type Result struct {
	SessionID uuid.UUID  `json:"session_id"`
	Mode      model.Mode `json:"mode"`
	Score
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	// ReportErr is set when the finalized result could not be persisted.
	// The in-memory result stays authoritative for the user.
	ReportErr error `json:"-"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithDuration overrides the mock test countdown.
func WithDuration(d time.Duration) Option {
	return func(c *Controller) { c.duration = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger attaches a logger for persistence failures.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// Controller drives one exam session through
// loading -> in_progress -> submitting -> completed.
// All methods are safe for concurrent use; only the first submit path
// (manual, advance past the last question, or timer expiry) scores and
// finalizes the session.
type Controller struct {
	reporter Reporter
	log      zerolog.Logger
	now      func() time.Time
	duration time.Duration

	userID    uuid.UUID
	mode      model.Mode
	questions []model.Question

	mu          sync.Mutex
	id          uuid.UUID
	state       State
	pos         int
	chosen      map[uuid.UUID]uuid.UUID
	attempted   map[uuid.UUID]uuid.UUID
	explanation bool
	startedAt   time.Time
	deadline    time.Time
	timer       *time.Timer
	result      *Result
	done        chan struct{}
}

// NewController creates a controller in the loading state over a fixed
// question sequence.
func NewController(userID uuid.UUID, mode model.Mode, questions []model.Question, reporter Reporter, opts ...Option) *Controller {
	c := &Controller{
		reporter:  reporter,
		log:       zerolog.Nop(),
		now:       time.Now,
		duration:  MockTestDuration,
		userID:    userID,
		mode:      mode,
		questions: questions,
		state:     StateLoading,
		chosen:    make(map[uuid.UUID]uuid.UUID, len(questions)),
		attempted: make(map[uuid.UUID]uuid.UUID, len(questions)),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start registers the session with the reporter and enters in_progress.
// A mock test arms its countdown here. If the session cannot be created the
// controller stays in loading and is not usable.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateLoading {
		return ErrSessionNotActive
	}

	id, err := c.reporter.CreateSession(ctx, c.userID, c.mode, len(c.questions))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	c.id = id
	c.startedAt = c.now()
	c.state = StateInProgress
	c.log = c.log.With().Str("session_id", id.String()).Str("mode", string(c.mode)).Logger()

	if c.mode == model.ModeMockTest {
		c.deadline = c.startedAt.Add(c.duration)
		c.timer = time.AfterFunc(c.duration, c.expire)
	}
	return nil
}

// SelectAnswer records answerID for the current question, replacing any
// earlier choice. In learning mode it also reveals the explanation.
func (c *Controller) SelectAnswer(answerID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInProgress {
		return ErrSessionNotActive
	}
	q := c.currentLocked()
	if q == nil || !q.HasAnswer(answerID) {
		return ErrUnknownAnswer
	}

	c.chosen[q.ID] = answerID
	if c.mode == model.ModeLearning {
		c.explanation = true
	}
	return nil
}

// Advance records the current response (outside learning mode) and moves to
// the next question. On the last question it submits the session and
// returns the result; otherwise the result is nil.
func (c *Controller) Advance(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	if c.state != StateInProgress {
		c.mu.Unlock()
		return nil, ErrSessionNotActive
	}

	if c.pos >= len(c.questions)-1 {
		// The last answer goes out with the submit flush.
		return c.finishLocked(ctx)
	}

	var pending []model.ExamResponse
	if c.mode != model.ModeLearning {
		pending = c.pendingLocked(&c.questions[c.pos])
	}
	c.pos++
	c.explanation = false
	c.mu.Unlock()

	c.record(ctx, pending)
	return nil, nil
}

// Retreat moves back one question. It is a no-op on the first question and
// never touches captured answers.
func (c *Controller) Retreat() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateInProgress {
		return ErrSessionNotActive
	}
	if c.pos > 0 {
		c.pos--
		c.explanation = false
	}
	return nil
}

// Submit scores and finalizes the session. It is idempotent: callers that
// arrive while another submit is running wait for it and receive the same
// result.
func (c *Controller) Submit(ctx context.Context) (*Result, error) {
	c.mu.Lock()
	switch c.state {
	case StateLoading:
		c.mu.Unlock()
		return nil, ErrSessionNotActive
	case StateSubmitting:
		done := c.done
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.mu.Lock()
		res := c.result
		c.mu.Unlock()
		return res, nil
	case StateCompleted:
		res := c.result
		c.mu.Unlock()
		return res, nil
	}
	return c.finishLocked(ctx)
}

// finishLocked must be called with c.mu held in StateInProgress. It releases
// the lock while the reporter finalizes the session.
func (c *Controller) finishLocked(ctx context.Context) (*Result, error) {
	c.state = StateSubmitting
	if c.timer != nil {
		c.timer.Stop()
	}

	var pending []model.ExamResponse
	if c.mode != model.ModeLearning {
		for i := range c.questions {
			pending = append(pending, c.pendingLocked(&c.questions[i])...)
		}
	}

	score := ScoreSession(c.questions, c.chosen)
	res := &Result{
		SessionID: c.id,
		Mode:      c.mode,
		Score:     score,
		StartedAt: c.startedAt,
		EndedAt:   c.now(),
	}
	c.mu.Unlock()

	c.record(ctx, pending)

	outcome := model.ExamOutcome{
		EndedAt:      res.EndedAt,
		Score:        score.Score,
		CorrectCount: score.Correct,
		Passed:       score.Passed,
	}
	if err := c.reporter.FinalizeSession(ctx, res.SessionID, outcome); err != nil {
		c.log.Error().Err(err).Int("score", score.Score).Msg("Finalize session failed")
		res.ReportErr = err
	}

	c.mu.Lock()
	c.result = res
	c.state = StateCompleted
	c.mu.Unlock()
	close(c.done)

	c.log.Info().
		Int("score", score.Score).
		Int("correct", score.Correct).
		Int("total", score.Total).
		Bool("passed", score.Passed).
		Msg("Exam session completed")
	return res, nil
}

// pendingLocked returns the response for q when its current answer has not
// been handed to the reporter yet, and marks it attempted. A failed attempt is
// never repeated; only a changed answer produces a new record.
func (c *Controller) pendingLocked(q *model.Question) []model.ExamResponse {
	answerID, ok := c.chosen[q.ID]
	if !ok {
		return nil
	}
	if prev, seen := c.attempted[q.ID]; seen && prev == answerID {
		return nil
	}
	c.attempted[q.ID] = answerID

	correct := IsCorrect(q, answerID)
	return []model.ExamResponse{{
		ExamID:     c.id,
		QuestionID: q.ID,
		AnswerID:   &answerID,
		IsCorrect:  &correct,
		CreatedAt:  c.now(),
	}}
}

// record hands responses to the reporter without holding c.mu.
// Failures are logged and otherwise ignored.
func (c *Controller) record(ctx context.Context, responses []model.ExamResponse) {
	for _, resp := range responses {
		if err := c.reporter.RecordResponse(ctx, resp); err != nil {
			c.log.Warn().Err(err).Str("question_id", resp.QuestionID.String()).Msg("Record response failed")
		}
	}
}

func (c *Controller) expire() {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	c.log.Info().Msg("Mock test time is up, submitting")
	if _, err := c.Submit(ctx); err != nil {
		c.log.Error().Err(err).Msg("Timed submit failed")
	}
}

func (c *Controller) currentLocked() *model.Question {
	if c.pos >= len(c.questions) {
		return nil
	}
	return &c.questions[c.pos]
}

// ID returns the session id assigned at Start.
func (c *Controller) ID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// UserID returns the owner of the session.
func (c *Controller) UserID() uuid.UUID { return c.userID }

// Mode returns the session mode.
func (c *Controller) Mode() model.Mode { return c.mode }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the session is completed.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Result returns the finalized result, or nil before completion.
func (c *Controller) Result() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Close stops the countdown of a session that is being abandoned.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
}

// AnswerView is an answer option as shown to the student.
type AnswerView struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"answer_text"`
	ImageURL  *string   `json:"image_url,omitempty"`
	IsCorrect *bool     `json:"is_correct,omitempty"`
}

// QuestionView is the current question as shown to the student.
type QuestionView struct {
	ID       uuid.UUID      `json:"id"`
	Text     string         `json:"question_text"`
	ImageURL *string        `json:"image_url,omitempty"`
	Category model.Category `json:"category"`
	Answers  []AnswerView   `json:"answers"`
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	SessionID          uuid.UUID     `json:"session_id"`
	Mode               model.Mode    `json:"mode"`
	State              State         `json:"state"`
	Position           int           `json:"position"`
	Total              int           `json:"total"`
	Answered           int           `json:"answered"`
	Question           *QuestionView `json:"question,omitempty"`
	SelectedAnswerID   *uuid.UUID    `json:"selected_answer_id,omitempty"`
	ExplanationVisible bool          `json:"explanation_visible"`
	CorrectAnswerID    *uuid.UUID    `json:"correct_answer_id,omitempty"`
	RemainingSeconds   *int          `json:"remaining_seconds,omitempty"`
	StartedAt          time.Time     `json:"started_at"`
	Result             *Result       `json:"result,omitempty"`
}

// Snapshot returns the current view of the session. Correct answers are only
// included once revealed in learning mode or after completion.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		SessionID:          c.id,
		Mode:               c.mode,
		State:              c.state,
		Position:           c.pos,
		Total:              len(c.questions),
		Answered:           len(c.chosen),
		ExplanationVisible: c.explanation,
		StartedAt:          c.startedAt,
		Result:             c.result,
	}

	if c.mode == model.ModeMockTest && !c.deadline.IsZero() {
		remaining := 0
		if c.state == StateInProgress {
			if d := c.deadline.Sub(c.now()); d > 0 {
				remaining = int(math.Ceil(d.Seconds()))
			}
		}
		snap.RemainingSeconds = &remaining
	}

	q := c.currentLocked()
	if q == nil {
		return snap
	}

	reveal := c.state == StateCompleted || (c.mode == model.ModeLearning && c.explanation)
	view := &QuestionView{
		ID:       q.ID,
		Text:     q.Text,
		ImageURL: q.ImageURL,
		Category: q.Category,
		Answers:  make([]AnswerView, len(q.Answers)),
	}
	for i, a := range q.Answers {
		view.Answers[i] = AnswerView{ID: a.ID, Text: a.Text, ImageURL: a.ImageURL}
		if reveal {
			correct := a.IsCorrect
			view.Answers[i].IsCorrect = &correct
		}
	}
	snap.Question = view

	if chosen, ok := c.chosen[q.ID]; ok {
		snap.SelectedAnswerID = &chosen
	}
	if reveal {
		if id, ok := q.CorrectAnswerID(); ok {
			snap.CorrectAnswerID = &id
		}
	}
	return snap
}
