package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/drivetest-backend/internal/datasource"
	"github.com/stemsi/drivetest-backend/internal/exam"
	"github.com/stemsi/drivetest-backend/internal/logger"
	"github.com/stemsi/drivetest-backend/internal/model"
	"github.com/stemsi/drivetest-backend/internal/response"
)

// Exam session errors.
var (
	ErrSessionNotFound    = errors.New("exam session not found")
	ErrSessionNotFinished = errors.New("exam session not finished")
	ErrInvalidMode        = errors.New("invalid exam mode")
)

const (
	// sessionIdleTimeout drops live sessions nobody has touched for this long.
	sessionIdleTimeout   = 2 * time.Hour
	sessionSweepInterval = time.Minute
	// finalizeTimeout bounds persistence done on behalf of a request.
	finalizeTimeout = 10 * time.Second
)

type liveSession struct {
	ctrl       *exam.Controller
	lastActive time.Time
	stop       chan struct{}
}

// ExamReport is a persisted, finished session with its response records.
type ExamReport struct {
	Exam      model.Exam           `json:"exam"`
	Correct   int                  `json:"correct"`
	Responses []model.ExamResponse `json:"responses"`
}

// ExamSessionService owns the live exam controllers of this process.
// Sessions are keyed by id and only reachable by their owner.
type ExamSessionService struct {
	loader   *exam.Loader
	reporter exam.Reporter
	exams    datasource.ExamStore
	log      zerolog.Logger
	opts     []exam.Option
	now      func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*liveSession
}

// NewExamSessionService creates a new ExamSessionService. opts are applied
// to every controller it creates.
func NewExamSessionService(loader *exam.Loader, reporter exam.Reporter, exams datasource.ExamStore, log zerolog.Logger, opts ...exam.Option) *ExamSessionService {
	return &ExamSessionService{
		loader:   loader,
		reporter: reporter,
		exams:    exams,
		log:      logger.Component(log, "exam_sessions"),
		opts:     opts,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*liveSession),
	}
}

// Start loads a question set for mode and starts a session for userID.
func (s *ExamSessionService) Start(ctx context.Context, userID uuid.UUID, mode model.Mode) (exam.Snapshot, error) {
	if !mode.Valid() {
		return exam.Snapshot{}, ErrInvalidMode
	}

	questions, err := s.loader.Load(ctx, mode)
	if err != nil {
		s.log.Error().Err(err).Str("mode", string(mode)).Msg("Load question set failed")
		return exam.Snapshot{}, err
	}

	opts := make([]exam.Option, 0, len(s.opts)+1)
	opts = append(opts, exam.WithLogger(s.log))
	opts = append(opts, s.opts...)

	ctrl := exam.NewController(userID, mode, questions, s.reporter, opts...)
	if err := ctrl.Start(ctx); err != nil {
		s.log.Error().Err(err).Str("user_id", userID.String()).Msg("Start session failed")
		return exam.Snapshot{}, err
	}

	entry := &liveSession{ctrl: ctrl, lastActive: s.now(), stop: make(chan struct{})}
	s.mu.Lock()
	s.sessions[ctrl.ID()] = entry
	s.mu.Unlock()

	go s.evictOnDone(ctrl.ID(), entry)

	s.log.Info().
		Str("session_id", ctrl.ID().String()).
		Str("user_id", userID.String()).
		Str("mode", string(mode)).
		Int("questions", len(questions)).
		Msg("Exam session started")
	return ctrl.Snapshot(), nil
}

// Live returns the running controller of a session owned by userID.
func (s *ExamSessionService) Live(ctx context.Context, userID, id uuid.UUID) (*exam.Controller, error) {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	if ok && entry.ctrl.UserID() == userID {
		entry.lastActive = s.now()
		s.mu.Unlock()
		return entry.ctrl, nil
	}
	s.mu.Unlock()

	// Not live: tell a finished or abandoned session apart from a foreign one.
	if _, err := s.ownedExam(ctx, userID, id); err != nil {
		return nil, err
	}
	return nil, exam.ErrSessionNotActive
}

// Snapshot returns the live view of a session, or a view rebuilt from the
// store once the session has left memory.
func (s *ExamSessionService) Snapshot(ctx context.Context, userID, id uuid.UUID) (exam.Snapshot, error) {
	ctrl, err := s.Live(ctx, userID, id)
	if err == nil {
		return ctrl.Snapshot(), nil
	}
	if !errors.Is(err, exam.ErrSessionNotActive) {
		return exam.Snapshot{}, err
	}

	e, err := s.ownedExam(ctx, userID, id)
	if err != nil {
		return exam.Snapshot{}, err
	}
	if !e.Completed() {
		return exam.Snapshot{}, exam.ErrSessionNotActive
	}

	responses, err := s.exams.ListResponses(ctx, id)
	if err != nil {
		return exam.Snapshot{}, fmt.Errorf("list responses: %w", err)
	}
	return storedSnapshot(e, responses), nil
}

// SelectAnswer chooses answerID on the current question.
func (s *ExamSessionService) SelectAnswer(ctx context.Context, userID, id, answerID uuid.UUID) (exam.Snapshot, error) {
	ctrl, err := s.Live(ctx, userID, id)
	if err != nil {
		return exam.Snapshot{}, err
	}
	if err := ctrl.SelectAnswer(answerID); err != nil {
		return exam.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// Advance moves to the next question, submitting after the last one.
func (s *ExamSessionService) Advance(ctx context.Context, userID, id uuid.UUID) (exam.Snapshot, error) {
	ctrl, err := s.Live(ctx, userID, id)
	if err != nil {
		return exam.Snapshot{}, err
	}

	ctx, cancel := detach(ctx)
	defer cancel()

	if _, err := ctrl.Advance(ctx); err != nil {
		return exam.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// Retreat moves back one question.
func (s *ExamSessionService) Retreat(ctx context.Context, userID, id uuid.UUID) (exam.Snapshot, error) {
	ctrl, err := s.Live(ctx, userID, id)
	if err != nil {
		return exam.Snapshot{}, err
	}
	if err := ctrl.Retreat(); err != nil {
		return exam.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// Submit finishes the session. Repeated calls return the same result.
func (s *ExamSessionService) Submit(ctx context.Context, userID, id uuid.UUID) (exam.Snapshot, error) {
	ctrl, err := s.Live(ctx, userID, id)
	if err != nil {
		if errors.Is(err, exam.ErrSessionNotActive) {
			// Already finished and evicted: answer from the store.
			return s.Snapshot(ctx, userID, id)
		}
		return exam.Snapshot{}, err
	}

	ctx, cancel := detach(ctx)
	defer cancel()

	if _, err := ctrl.Submit(ctx); err != nil {
		return exam.Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// History lists a user's sessions, newest first.
func (s *ExamSessionService) History(ctx context.Context, userID uuid.UUID, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)

	exams, total, err := s.exams.ListExamsByUser(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	return exams, response.NewPagination(page, perPage, total), nil
}

// Report returns a finished session with its persisted responses.
func (s *ExamSessionService) Report(ctx context.Context, userID, id uuid.UUID) (*ExamReport, error) {
	e, err := s.ownedExam(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !e.Completed() {
		return nil, ErrSessionNotFinished
	}

	responses, err := s.exams.ListResponses(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return &ExamReport{Exam: *e, Correct: correctCount(e, responses), Responses: responses}, nil
}

// LiveCount returns the number of sessions held in memory.
func (s *ExamSessionService) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run sweeps idle sessions until ctx is cancelled. Call in a goroutine.
func (s *ExamSessionService) Run(ctx context.Context) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sweep(s.now().Add(-sessionIdleTimeout)); n > 0 {
				s.log.Info().Int("count", n).Msg("Dropped idle exam sessions")
			}
		}
	}
}

// Close stops every live session without finalizing it.
func (s *ExamSessionService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.sessions {
		s.dropLocked(id, entry)
	}
}

// sweep drops sessions last used before cutoff and returns how many.
func (s *ExamSessionService) sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for id, entry := range s.sessions {
		if entry.lastActive.Before(cutoff) {
			s.dropLocked(id, entry)
			dropped++
		}
	}
	return dropped
}

func (s *ExamSessionService) dropLocked(id uuid.UUID, entry *liveSession) {
	entry.ctrl.Close()
	close(entry.stop)
	delete(s.sessions, id)
}

func (s *ExamSessionService) evictOnDone(id uuid.UUID, entry *liveSession) {
	select {
	case <-entry.ctrl.Done():
	case <-entry.stop:
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[id] == entry {
		delete(s.sessions, id)
	}
}

func (s *ExamSessionService) ownedExam(ctx context.Context, userID, id uuid.UUID) (*model.Exam, error) {
	e, err := s.exams.GetExam(ctx, id)
	if err != nil {
		if errors.Is(err, datasource.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if e.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// detach keeps finalization running if the client goes away mid-request.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
}

func storedSnapshot(e *model.Exam, responses []model.ExamResponse) exam.Snapshot {
	snap := exam.Snapshot{
		SessionID: e.ID,
		Mode:      e.Mode,
		State:     exam.StateCompleted,
		Total:     e.TotalQuestions,
		Answered:  len(responses),
		StartedAt: e.StartedAt,
	}

	res := &exam.Result{
		SessionID: e.ID,
		Mode:      e.Mode,
		Score:     exam.Score{Correct: correctCount(e, responses), Total: e.TotalQuestions},
		StartedAt: e.StartedAt,
	}
	if e.Score != nil {
		res.Score.Score = *e.Score
	}
	if e.Passed != nil {
		res.Passed = *e.Passed
	}
	if e.EndedAt != nil {
		res.EndedAt = *e.EndedAt
	}
	snap.Result = res
	return snap
}

// correctCount prefers the count stored at finalize. Responses are not
// persisted in learning mode and may still be queued in the others.
func correctCount(e *model.Exam, responses []model.ExamResponse) int {
	if e.CorrectCount != nil {
		return *e.CorrectCount
	}
	return countCorrect(responses)
}

func countCorrect(responses []model.ExamResponse) int {
	n := 0
	for _, r := range responses {
		if r.IsCorrect != nil && *r.IsCorrect {
			n++
		}
	}
	return n
}
